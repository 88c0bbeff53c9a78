package engagement

import (
	"fmt"
	"time"

	"github.com/nao1215/blogpress/pkg/config"
)

// Config はエンゲージメントサービスの設定。環境変数から読み込む。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `envconfig:"PORT" default:"8081"`
	// DBPath はSQLiteデータベースファイルのパス。
	DBPath string `envconfig:"DB_PATH" default:"/data/engagement.db"`
	// JWTSecret はJWTの署名検証に使う共有鍵。
	JWTSecret string `envconfig:"JWT_SECRET" default:"dev-secret-key"`
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	// BusDriver はメッセージバスの実装（kafka, memory）。
	BusDriver string `envconfig:"BUS_DRIVER" default:"kafka"`
	// KafkaBrokers はKafkaブローカーのアドレス一覧。
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	// PublishTimeout はシグナル送信1回あたりのタイムアウト。
	PublishTimeout time.Duration `envconfig:"PUBLISH_TIMEOUT" default:"5s"`
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
	return cfg, nil
}
