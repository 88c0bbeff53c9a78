package mail

import (
	"context"
	"errors"
)

// ErrInvalidAddress はメールアドレスとして解釈できない値が渡されたことを表す。
var ErrInvalidAddress = errors.New("メールアドレスが不正です")

// Transport はメールを1通送信する。
type Transport interface {
	// Send は宛先toに件名subject、本文bodyのプレーンテキストメールを送信する。
	Send(ctx context.Context, to, subject, body string) error
}
