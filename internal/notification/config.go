package notification

import (
	"fmt"
	"time"

	"github.com/nao1215/blogpress/pkg/config"
)

// Config は通知サービスの設定。環境変数から読み込む。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `envconfig:"PORT" default:"8086"`
	// BusDriver はメッセージバスの実装（kafka, memory）。
	BusDriver string `envconfig:"BUS_DRIVER" default:"kafka"`
	// KafkaBrokers はKafkaブローカーのアドレス一覧。
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	// KafkaGroupID はコンシューマーグループID。
	KafkaGroupID string `envconfig:"KAFKA_GROUP_ID" default:"notification_group"`
	// ContentServiceURL はコンテンツサービスのベースURL。
	ContentServiceURL string `envconfig:"CONTENT_SERVICE_URL" default:"http://localhost:8082"`
	// IdentityServiceURL はアイデンティティサービスのベースURL。
	IdentityServiceURL string `envconfig:"IDENTITY_SERVICE_URL" default:"http://localhost:8080"`
	// LookupTimeout は1回のルックアップに許す時間。
	LookupTimeout time.Duration `envconfig:"LOOKUP_TIMEOUT" default:"3s"`
	// BreakerFailures はルックアップ先ごとのサーキットブレーカーが開く失敗回数。
	BreakerFailures uint `envconfig:"LOOKUP_BREAKER_FAILURES" default:"5"`
	// BreakerWindow は失敗率を評価する直近の呼び出し数。
	BreakerWindow uint `envconfig:"LOOKUP_BREAKER_WINDOW" default:"10"`
	// BreakerDelay はブレーカーが開いてから半開状態に移るまでの時間。
	BreakerDelay time.Duration `envconfig:"LOOKUP_BREAKER_DELAY" default:"15s"`
	// MailTimeout は1通の送信に許す時間。
	MailTimeout time.Duration `envconfig:"MAIL_TIMEOUT" default:"10s"`
	// MailDriver はメール送信の実装（smtp, log）。
	MailDriver string `envconfig:"MAIL_DRIVER" default:"smtp"`
	// SMTPHost はSMTPサーバーのホスト名。
	SMTPHost string `envconfig:"SMTP_HOST" default:"localhost"`
	// SMTPPort はSMTPサーバーのポート。
	SMTPPort int `envconfig:"SMTP_PORT" default:"587"`
	// SMTPUsername はSMTP認証のユーザー名。空の場合は認証しない。
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	// SMTPPassword はSMTP認証のパスワード。
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	// SMTPEncryption は暗号化方式（tls, ssl_tls, starttls, none）。
	SMTPEncryption string `envconfig:"SMTP_ENCRYPTION" default:"starttls"`
	// MailFromAddress は送信元アドレス。
	MailFromAddress string `envconfig:"MAIL_FROM_ADDRESS" default:"noreply@blogpress.local"`
	// MailFromName は送信元の表示名。
	MailFromName string `envconfig:"MAIL_FROM_NAME" default:"BlogPress Team"`
	// DedupRedisAddr は重複ガードに使うRedisのアドレス。空の場合は重複ガードを使わない。
	DedupRedisAddr string `envconfig:"DEDUP_REDIS_ADDR"`
	// DedupWindow は同じマイルストーンの通知を抑止する期間。
	DedupWindow time.Duration `envconfig:"DEDUP_WINDOW" default:"24h"`
	// LogLevel はログレベル。
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// LogFile はログの出力先ファイル。空の場合は標準エラー出力のみ。
	LogFile string `envconfig:"LOG_FILE"`
}

// LoadConfig は環境変数から設定を読み込む。
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	switch cfg.BusDriver {
	case "kafka", "memory":
	default:
		return Config{}, fmt.Errorf("BUS_DRIVERが不正です: %q", cfg.BusDriver)
	}
	switch cfg.MailDriver {
	case "smtp", "log":
	default:
		return Config{}, fmt.Errorf("MAIL_DRIVERが不正です: %q", cfg.MailDriver)
	}
	return cfg, nil
}

// ContentLookupConfig はコンテンツサービス用のルックアップ設定を返す。
func (c Config) ContentLookupConfig() LookupConfig {
	return c.lookupConfig(c.ContentServiceURL)
}

// IdentityLookupConfig はアイデンティティサービス用のルックアップ設定を返す。
func (c Config) IdentityLookupConfig() LookupConfig {
	return c.lookupConfig(c.IdentityServiceURL)
}

func (c Config) lookupConfig(baseURL string) LookupConfig {
	return LookupConfig{
		BaseURL:         baseURL,
		Timeout:         c.LookupTimeout,
		BreakerFailures: c.BreakerFailures,
		BreakerWindow:   c.BreakerWindow,
		BreakerDelay:    c.BreakerDelay,
	}
}
