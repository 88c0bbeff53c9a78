// 通知サービスのエントリポイント。
// new-content と engagement-milestones チャネルを購読し、
// 著者情報とタイトルを補完してからメールで通知する。
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/blogpress/internal/notification"
	"github.com/nao1215/blogpress/pkg/bus"
	"github.com/nao1215/blogpress/pkg/config"
	"github.com/nao1215/blogpress/pkg/logging"
	"github.com/nao1215/blogpress/pkg/mail"
	"github.com/nao1215/blogpress/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const serviceName = "notification"

func main() {
	boot := logging.New(serviceName, logging.Options{})
	config.LoadEnvFiles(boot)
	cfg, err := notification.LoadConfig()
	if err != nil {
		boot.WithError(err).Fatal("設定の読み込みに失敗")
	}
	logger := logging.New(serviceName, logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("通知サービスが異常終了しました")
	}
}

func run(cfg notification.Config, logger *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, err := newTransport(cfg, logger)
	if err != nil {
		return err
	}

	guard := newGuard(cfg, logger)
	if closer, ok := guard.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	collector := metrics.New(serviceName)
	resolver := notification.NewResolver(
		notification.NewContentClient(cfg.ContentLookupConfig(), logger),
		notification.NewIdentityClient(cfg.IdentityLookupConfig(), logger),
		cfg.LookupTimeout,
		logger,
	)
	sender := notification.NewSender(transport, cfg.MailTimeout, logger, collector)
	dispatcher := notification.NewDispatcher(resolver, sender, guard, logger, collector)

	subscriber := newSubscriber(cfg, logger)
	defer subscriber.Close()
	dispatcher.Register(subscriber)

	server := notification.NewServer(cfg.Port, subscriber, logger, collector)

	logger.WithFields(logrus.Fields{
		"port":     cfg.Port,
		"bus":      cfg.BusDriver,
		"mail":     cfg.MailDriver,
		"dedup":    cfg.DedupRedisAddr != "",
		"content":  cfg.ContentServiceURL,
		"identity": cfg.IdentityServiceURL,
		"group_id": cfg.KafkaGroupID,
	}).Info("通知サービスを起動します")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return subscriber.Run(ctx)
	})
	g.Go(func() error {
		if err := server.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("通知サービスを停止しました")
	return nil
}

// newTransport はMAIL_DRIVERに応じたメール送信の実装を生成する。
func newTransport(cfg notification.Config, logger logrus.FieldLogger) (mail.Transport, error) {
	if cfg.MailDriver == "log" {
		return mail.NewLogTransport(logger), nil
	}
	smtp, err := mail.NewSMTPTransport(mail.SMTPConfig{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUsername,
		Password:    cfg.SMTPPassword,
		Encryption:  cfg.SMTPEncryption,
		FromAddress: cfg.MailFromAddress,
		FromName:    cfg.MailFromName,
	})
	if err != nil {
		return nil, err
	}
	return smtp, nil
}

// newGuard はDEDUP_REDIS_ADDRが設定されていればRedisの重複ガードを生成する。
func newGuard(cfg notification.Config, logger logrus.FieldLogger) notification.Guard {
	if cfg.DedupRedisAddr == "" {
		return notification.NoopGuard{}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.DedupRedisAddr})
	return notification.NewRedisGuard(client, cfg.DedupWindow, logger)
}

// newSubscriber はBUS_DRIVERに応じた購読側のバスを生成する。
func newSubscriber(cfg notification.Config, logger logrus.FieldLogger) bus.Subscriber {
	if cfg.BusDriver == "memory" {
		return bus.NewMemoryBus(0, logger)
	}
	return bus.NewKafkaSubscriber(bus.KafkaSubscriberConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		ClientID: "blogpress-" + serviceName,
	}, logger)
}
