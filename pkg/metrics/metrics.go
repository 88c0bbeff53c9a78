// Package metrics はパイプラインのPrometheusメトリクスを提供する。
//
// Collectorのメソッドはnilレシーバでも安全に呼び出せる。
// メトリクスを必要としないテストではnilを渡してよい。
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 処理結果のラベル値。
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
	ResultDropped = "dropped"
)

// Collector はサービスのメトリクスを保持する。
type Collector struct {
	registry *prometheus.Registry

	milestonesDetected *prometheus.CounterVec
	signalsPublished   *prometheus.CounterVec
	messagesConsumed   *prometheus.CounterVec
	enrichmentSkips    *prometheus.CounterVec
	notificationsSent  *prometheus.CounterVec
}

// New はサービス専用のレジストリを持つCollectorを生成する。
func New(service string) *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	constLabels := prometheus.Labels{"service": service}
	c := &Collector{
		registry: registry,
		milestonesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "blogpress_milestones_detected_total",
			Help:        "検出したマイルストーン数",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		signalsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "blogpress_signals_published_total",
			Help:        "メッセージバスへのシグナル送信数",
			ConstLabels: constLabels,
		}, []string{"channel", "result"}),
		messagesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "blogpress_messages_consumed_total",
			Help:        "メッセージバスから受信したメッセージ数",
			ConstLabels: constLabels,
		}, []string{"channel", "result"}),
		enrichmentSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "blogpress_enrichment_skips_total",
			Help:        "補完できずにスキップしたシグナル数",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "blogpress_notifications_sent_total",
			Help:        "メール送信の試行数",
			ConstLabels: constLabels,
		}, []string{"kind", "result"}),
	}
	registry.MustRegister(
		c.milestonesDetected,
		c.signalsPublished,
		c.messagesConsumed,
		c.enrichmentSkips,
		c.notificationsSent,
	)
	return c
}

// Registry は内部のレジストリを返す。
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler は/metrics用のGinハンドラを返す。
func (c *Collector) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}

// MilestoneDetected はマイルストーン検出を記録する。
func (c *Collector) MilestoneDetected(kind string) {
	if c == nil {
		return
	}
	c.milestonesDetected.WithLabelValues(kind).Inc()
}

// SignalPublished はシグナル送信結果を記録する。
func (c *Collector) SignalPublished(channel, result string) {
	if c == nil {
		return
	}
	c.signalsPublished.WithLabelValues(channel, result).Inc()
}

// MessageConsumed はメッセージ処理結果を記録する。
func (c *Collector) MessageConsumed(channel, result string) {
	if c == nil {
		return
	}
	c.messagesConsumed.WithLabelValues(channel, result).Inc()
}

// EnrichmentSkipped は補完スキップを記録する。
func (c *Collector) EnrichmentSkipped(reason string) {
	if c == nil {
		return
	}
	c.enrichmentSkips.WithLabelValues(reason).Inc()
}

// NotificationSent はメール送信結果を記録する。
func (c *Collector) NotificationSent(kind, result string) {
	if c == nil {
		return
	}
	c.notificationsSent.WithLabelValues(kind, result).Inc()
}
