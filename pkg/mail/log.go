package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogTransport は送信する代わりに内容をログに出力する。ローカル開発用。
type LogTransport struct {
	logger logrus.FieldLogger
}

// NewLogTransport は新しいLogTransportを生成する。
func NewLogTransport(logger logrus.FieldLogger) *LogTransport {
	return &LogTransport{logger: logger}
}

// Send は宛先と件名、本文をログに出力する。
func (t *LogTransport) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("%w: 宛先が空です", ErrInvalidAddress)
	}
	t.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
		"body":    body,
	}).Info("メールを送信しました（ログ出力のみ）")
	return nil
}
