package engagement

import (
	"context"
	"fmt"

	"github.com/nao1215/blogpress/pkg/event"
	"github.com/nao1215/blogpress/pkg/metrics"
	"github.com/nao1215/blogpress/pkg/milestone"
	"github.com/sirupsen/logrus"
)

// MilestonePublisher はマイルストーンシグナルを送信する。
type MilestonePublisher interface {
	// PublishMilestone はシグナルをengagement-milestonesチャネルに送信する。
	PublishMilestone(ctx context.Context, s event.MilestoneSignal) error
}

// Detector はエンゲージメント操作のたびに件数を読み直し、閾値への到達を検出する。
type Detector struct {
	counter   Counter
	publisher MilestonePublisher
	logger    logrus.FieldLogger
	metrics   *metrics.Collector
}

// NewDetector は新しいDetectorを生成する。collectorはnilでもよい。
func NewDetector(counter Counter, publisher MilestonePublisher, logger logrus.FieldLogger, collector *metrics.Collector) *Detector {
	return &Detector{
		counter:   counter,
		publisher: publisher,
		logger:    logger,
		metrics:   collector,
	}
}

// OnMutation はblogIDの記事のkind種別の現在件数を読み、閾値と一致すればシグナルを返す。
// 一致しなければNoneを返す。件数は毎回ストアから読み直す。
func (d *Detector) OnMutation(ctx context.Context, blogID string, kind event.Kind) (event.Optional[event.MilestoneSignal], error) {
	count, err := d.counter.Count(ctx, blogID, kind)
	if err != nil {
		return event.None[event.MilestoneSignal](), fmt.Errorf("件数の取得に失敗: %w", err)
	}
	if !milestone.IsMilestone(count) {
		return event.None[event.MilestoneSignal](), nil
	}
	return event.Some(event.MilestoneSignal{
		BlogID:        blogID,
		AuthorID:      event.None[string](),
		BlogTitle:     event.None[string](),
		MilestoneType: kind,
		Count:         count,
	}), nil
}

// Observe は操作の確定後に呼び出され、マイルストーンに到達していればシグナルを送信する。
// 検出と送信の失敗やパニックはログに記録して握りつぶし、呼び出し元には伝えない。
func (d *Detector) Observe(ctx context.Context, blogID string, kind event.Kind) {
	if d == nil {
		return
	}
	logger := d.logger.WithFields(logrus.Fields{
		"blog_id": blogID,
		"kind":    string(kind),
	})
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("マイルストーン検出中にパニックが発生しました")
		}
	}()

	// リクエストが切断されても送信は続ける
	ctx = context.WithoutCancel(ctx)

	found, err := d.OnMutation(ctx, blogID, kind)
	if err != nil {
		logger.WithError(err).Error("マイルストーンの判定に失敗しました")
		return
	}
	sig, ok := found.Get()
	if !ok {
		return
	}

	d.metrics.MilestoneDetected(string(kind))
	logger = logger.WithField("count", sig.Count)
	if err := d.publisher.PublishMilestone(ctx, sig); err != nil {
		logger.WithError(err).Error("マイルストーンシグナルの送信に失敗しました")
		return
	}
	logger.Info("マイルストーンに到達しました")
}
