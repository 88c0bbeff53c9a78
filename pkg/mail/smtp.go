package mail

import (
	"context"
	"fmt"
	"strings"

	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig はSMTP送信の設定。
type SMTPConfig struct {
	// Host はSMTPサーバーのホスト名。
	Host string
	// Port はSMTPサーバーのポート番号。
	Port int
	// Username はSMTP認証のユーザー名。空の場合は認証しない。
	Username string
	// Password はSMTP認証のパスワード。
	Password string
	// Encryption は暗号化方式（"ssl_tls", "starttls", "none"）。
	Encryption string
	// FromAddress は送信元のメールアドレス。
	FromAddress string
	// FromName は送信元の表示名。
	FromName string
}

// SMTPTransport はgo-mailを用いてSMTPサーバー経由でメールを送信する。
type SMTPTransport struct {
	config SMTPConfig
}

// NewSMTPTransport は新しいSMTPTransportを生成する。
func NewSMTPTransport(config SMTPConfig) (*SMTPTransport, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("SMTPホストが未設定です")
	}
	if config.FromAddress == "" {
		return nil, fmt.Errorf("%w: 送信元アドレスが未設定です", ErrInvalidAddress)
	}
	if config.Port == 0 {
		config.Port = 587
	}
	return &SMTPTransport{config: config}, nil
}

// Send はSMTPサーバーに接続して1通送信する。
func (t *SMTPTransport) Send(ctx context.Context, to, subject, body string) error {
	m, err := t.buildMessage(to, subject, body)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(t.config.Port),
		gomail.WithTLSPolicy(tlsPolicyFromEncryption(t.config.Encryption)),
	}
	if t.config.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(t.config.Username),
			gomail.WithPassword(t.config.Password),
		)
	}

	c, err := gomail.NewClient(t.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("メールクライアントの作成に失敗: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("メールの送信に失敗: %w", err)
	}
	return nil
}

// buildMessage は送信するメッセージを組み立てる。
func (t *SMTPTransport) buildMessage(to, subject, body string) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if t.config.FromName != "" {
		if err := m.FromFormat(t.config.FromName, t.config.FromAddress); err != nil {
			return nil, fmt.Errorf("%w: from=%q: %v", ErrInvalidAddress, t.config.FromAddress, err)
		}
	} else if err := m.From(t.config.FromAddress); err != nil {
		return nil, fmt.Errorf("%w: from=%q: %v", ErrInvalidAddress, t.config.FromAddress, err)
	}

	to = strings.TrimSpace(to)
	if to == "" {
		return nil, fmt.Errorf("%w: 宛先が空です", ErrInvalidAddress)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("%w: to=%q: %v", ErrInvalidAddress, to, err)
	}

	m.Subject(subject)
	m.SetBodyString(gomail.TypeTextPlain, body)
	return m, nil
}

// tlsPolicyFromEncryption は暗号化方式の設定値をgo-mailのTLSPolicyに変換する。
func tlsPolicyFromEncryption(enc string) gomail.TLSPolicy {
	switch strings.ToLower(enc) {
	case "ssl_tls", "tls":
		return gomail.TLSMandatory
	case "starttls":
		return gomail.TLSOpportunistic
	default:
		return gomail.NoTLS
	}
}
