// エンゲージメントサービスのエントリポイント。
// いいね・閲覧・コメントを記録し、件数が閾値に到達したら
// engagement-milestones チャネルにマイルストーンシグナルを送信する。
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/blogpress/internal/engagement"
	"github.com/nao1215/blogpress/internal/publisher"
	"github.com/nao1215/blogpress/pkg/bus"
	"github.com/nao1215/blogpress/pkg/config"
	"github.com/nao1215/blogpress/pkg/event"
	"github.com/nao1215/blogpress/pkg/logging"
	"github.com/nao1215/blogpress/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const serviceName = "engagement"

func main() {
	boot := logging.New(serviceName, logging.Options{})
	config.LoadEnvFiles(boot)
	cfg, err := engagement.LoadConfig()
	if err != nil {
		boot.WithError(err).Fatal("設定の読み込みに失敗")
	}
	logger := logging.New(serviceName, logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("エンゲージメントサービスが異常終了しました")
	}
}

func run(cfg engagement.Config, logger *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := engagement.OpenDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := engagement.InitSchema(ctx, db, logger); err != nil {
		return err
	}

	signalBus, err := newPublisherBus(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer signalBus.Close()

	collector := metrics.New(serviceName)
	store := engagement.NewSQLiteStore(db)
	detector := engagement.NewDetector(store, publisher.New(signalBus, serviceName, logger, collector), logger, collector)
	server := engagement.NewServer(cfg, engagement.NewService(store, detector), logger, collector)

	logger.WithField("port", cfg.Port).Info("エンゲージメントサービスを起動します")
	if err := server.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("エンゲージメントサービスを停止しました")
	return nil
}

// newPublisherBus は設定に応じたバスを生成する。
// memoryドライバでは同じプロセス内に購読者がいないため、送信されたシグナルをログに出して読み捨てる。
func newPublisherBus(ctx context.Context, cfg engagement.Config, logger logrus.FieldLogger) (bus.Publisher, error) {
	if cfg.BusDriver == "memory" {
		memBus := bus.NewMemoryBus(0, logger)
		logSignal := func(_ context.Context, msg bus.Message) error {
			logger.WithFields(logrus.Fields{
				"channel": msg.Channel,
				"payload": string(msg.Value),
			}).Info("シグナルを受信しました (memory)")
			return nil
		}
		memBus.Subscribe(string(event.ChannelEngagementMilestones), logSignal)
		go func() {
			_ = memBus.Run(ctx)
		}()
		return memBus, nil
	}

	kafka, err := bus.NewKafkaPublisher(cfg.KafkaBrokers, "blogpress-"+serviceName, cfg.PublishTimeout, logger)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PublishTimeout)
	defer cancel()
	if err := kafka.Ping(pingCtx); err != nil {
		// 起動時にブローカーへ到達できなくても、送信時に再接続する
		logger.WithError(err).Warn("Kafkaブローカーへの接続確認に失敗しました")
	}
	return kafka, nil
}
