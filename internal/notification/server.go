package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/blogpress/pkg/metrics"
	"github.com/nao1215/blogpress/pkg/middleware"
	"github.com/sirupsen/logrus"
)

// StatusReporter はチャネルごとの購読ループの稼働状況を返す。
type StatusReporter interface {
	Status() map[string]bool
}

// Server は通知サービスのHTTPサーバー。ヘルスチェックとメトリクスだけを公開する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// subscriptions は購読ループの稼働状況。
	subscriptions StatusReporter
}

// NewServer は新しい通知サーバーを生成する。
func NewServer(port string, subscriptions StatusReporter, logger logrus.FieldLogger, collector *metrics.Collector) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger, "/health", "/metrics"))

	s := &Server{
		router:        router,
		port:          port,
		subscriptions: subscriptions,
	}
	s.router.GET("/health", s.handleHealth())
	if collector != nil {
		s.router.GET("/metrics", collector.Handler())
	}
	return s
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされたら停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// handleHealth は購読ループがすべて稼働していれば200を、止まっていれば503を返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		subscriptions := map[string]bool{}
		if s.subscriptions != nil {
			subscriptions = s.subscriptions.Status()
		}

		status, code := "ok", http.StatusOK
		for _, running := range subscriptions {
			if !running {
				status, code = "degraded", http.StatusServiceUnavailable
				break
			}
		}
		c.JSON(code, gin.H{
			"status":        status,
			"service":       "notification",
			"subscriptions": subscriptions,
		})
	}
}
