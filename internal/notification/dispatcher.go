package notification

import (
	"context"

	"github.com/nao1215/blogpress/internal/publisher"
	"github.com/nao1215/blogpress/pkg/bus"
	"github.com/nao1215/blogpress/pkg/event"
	"github.com/nao1215/blogpress/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Dispatcher は購読したシグナルを補完してメール送信まで運ぶ。
//
// ハンドラはエラーを呼び出し元に返さない。不正なペイロード、補完できないシグナル、
// 送信の失敗はいずれもログに記録してそのメッセージを破棄し、チャネルの処理を続ける。
type Dispatcher struct {
	resolver *Resolver
	sender   *Sender
	guard    Guard
	logger   logrus.FieldLogger
	metrics  *metrics.Collector
}

// NewDispatcher は新しいDispatcherを生成する。guardがnilの場合は重複ガードを使わない。
func NewDispatcher(resolver *Resolver, sender *Sender, guard Guard, logger logrus.FieldLogger, collector *metrics.Collector) *Dispatcher {
	if guard == nil {
		guard = NoopGuard{}
	}
	return &Dispatcher{
		resolver: resolver,
		sender:   sender,
		guard:    guard,
		logger:   logger,
		metrics:  collector,
	}
}

// Register は両チャネルのハンドラを購読に登録する。
func (d *Dispatcher) Register(sub bus.Subscriber) {
	sub.Subscribe(string(event.ChannelNewContent), d.HandleNewContent)
	sub.Subscribe(string(event.ChannelEngagementMilestones), d.HandleMilestone)
}

// HandleNewContent はnew-contentチャネルのメッセージを処理する。
func (d *Dispatcher) HandleNewContent(ctx context.Context, msg bus.Message) error {
	channel := string(event.ChannelNewContent)
	logger := d.messageLogger(msg)

	signal, err := event.DecodeNewContent(msg.Value)
	if err != nil {
		logger.WithError(err).Warn("不正なペイロードを破棄しました")
		d.metrics.MessageConsumed(channel, metrics.ResultDropped)
		return nil
	}
	logger.WithFields(logrus.Fields{
		"blog_id":   signal.BlogID,
		"author_id": signal.AuthorID,
	}).Info("新着記事のシグナルを受信しました")

	result := d.resolver.ResolveNewContent(ctx, signal)
	enriched, ok := result.Get()
	if !ok {
		d.recordSkip(channel, result)
		return nil
	}

	d.finish(ctx, channel, logger, DecideNewContent(enriched))
	return nil
}

// HandleMilestone はengagement-milestonesチャネルのメッセージを処理する。
func (d *Dispatcher) HandleMilestone(ctx context.Context, msg bus.Message) error {
	channel := string(event.ChannelEngagementMilestones)
	logger := d.messageLogger(msg)

	signal, err := event.DecodeMilestone(msg.Value)
	if err != nil {
		logger.WithError(err).Warn("不正なペイロードを破棄しました")
		d.metrics.MessageConsumed(channel, metrics.ResultDropped)
		return nil
	}
	logger = logger.WithFields(logrus.Fields{
		"blog_id":        signal.BlogID,
		"milestone_type": signal.MilestoneType,
		"count":          signal.Count,
	})
	logger.Info("マイルストーンのシグナルを受信しました")

	result := d.resolver.ResolveMilestone(ctx, signal)
	enriched, ok := result.Get()
	if !ok {
		d.recordSkip(channel, result)
		return nil
	}

	if !d.guard.Allow(ctx, signal) {
		logger.Info("同じマイルストーンは通知済みのためスキップします")
		d.recordSkip(channel, Skipped[EnrichedMilestone](SkipDuplicate, nil))
		return nil
	}

	d.finish(ctx, channel, logger, DecideMilestone(enriched))
	return nil
}

// finish は送信して結果を記録する。
func (d *Dispatcher) finish(ctx context.Context, channel string, logger logrus.FieldLogger, instructions []Instruction) {
	report := d.sender.Deliver(ctx, instructions)
	fields := logrus.Fields{"sent": report.Sent, "failed": report.Failed}
	if report.Failed > 0 {
		logger.WithFields(fields).Warn("一部のメール送信に失敗しました")
		d.metrics.MessageConsumed(channel, metrics.ResultError)
		return
	}
	logger.WithFields(fields).Info("通知を送信しました")
	d.metrics.MessageConsumed(channel, metrics.ResultOK)
}

// recordSkip はスキップをメトリクスに記録する。ログはResolverが出力済み。
func (d *Dispatcher) recordSkip(channel string, result interface{ Skip() (Skip, bool) }) {
	skip, _ := result.Skip()
	d.metrics.EnrichmentSkipped(string(skip.Reason))
	d.metrics.MessageConsumed(channel, metrics.ResultSkipped)
}

func (d *Dispatcher) messageLogger(msg bus.Message) logrus.FieldLogger {
	fields := logrus.Fields{
		"channel":   msg.Channel,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	}
	if id := msg.Headers[publisher.HeaderMessageID]; id != "" {
		fields["message_id"] = id
	}
	return d.logger.WithFields(fields)
}
