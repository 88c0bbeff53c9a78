package publisher

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nao1215/blogpress/pkg/bus"
	"github.com/nao1215/blogpress/pkg/event"
	"github.com/nao1215/blogpress/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// メッセージヘッダーのキー
const (
	// HeaderSignalType はシグナルの種類（チャネル名）。
	HeaderSignalType = "signal_type"
	// HeaderSource は送信元サービス名。
	HeaderSource = "source"
	// HeaderMessageID はメッセージごとに採番するID。重複配信の調査に使う。
	HeaderMessageID = "message_id"
)

// Publisher はシグナルをメッセージバスに送信する。
type Publisher struct {
	bus     bus.Publisher
	source  string
	logger  logrus.FieldLogger
	metrics *metrics.Collector
}

// New は新しいPublisherを生成する。sourceには送信元サービス名を指定する。
// collectorはnilでもよい。
func New(b bus.Publisher, source string, logger logrus.FieldLogger, collector *metrics.Collector) *Publisher {
	return &Publisher{
		bus:     b,
		source:  source,
		logger:  logger,
		metrics: collector,
	}
}

// PublishMilestone はマイルストーンシグナルをengagement-milestonesチャネルに送信する。
func (p *Publisher) PublishMilestone(ctx context.Context, s event.MilestoneSignal) error {
	return p.Publish(ctx, s)
}

// PublishNewContent は新規記事シグナルをnew-contentチャネルに送信する。
func (p *Publisher) PublishNewContent(ctx context.Context, s event.NewContentSignal) error {
	return p.Publish(ctx, s)
}

// Publish はシグナルを対応するチャネルに送信する。
func (p *Publisher) Publish(ctx context.Context, s event.Signal) error {
	channel := string(s.Channel())
	logger := p.logger.WithFields(logrus.Fields{
		"channel": channel,
		"key":     s.Key(),
	})

	payload, err := event.Encode(s)
	if err != nil {
		p.metrics.SignalPublished(channel, metrics.ResultError)
		logger.WithError(err).Error("シグナルのエンコードに失敗しました")
		return fmt.Errorf("シグナルのエンコードに失敗: %w", err)
	}

	msg := bus.Message{
		Key:   []byte(s.Key()),
		Value: payload,
		Headers: map[string]string{
			HeaderSignalType: channel,
			HeaderSource:     p.source,
			HeaderMessageID:  uuid.NewString(),
		},
	}
	if err := p.bus.Publish(ctx, channel, msg); err != nil {
		p.metrics.SignalPublished(channel, metrics.ResultError)
		logger.WithError(err).Error("シグナルの送信に失敗しました")
		return fmt.Errorf("シグナルの送信に失敗: %w", err)
	}

	p.metrics.SignalPublished(channel, metrics.ResultOK)
	logger.WithField("message_id", msg.Headers[HeaderMessageID]).Info("シグナルを送信しました")
	return nil
}
