package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger はリクエストごとに構造化ログを出力するGinミドルウェアを返す。
// skipPathsに含まれるパス（/health, /metrics など）は出力しない。
func RequestLogger(logger logrus.FieldLogger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if _, ok := skip[c.Request.URL.Path]; ok {
			return
		}

		entry := logger.WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
			"username":   GetUsername(c),
		})
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("HTTPリクエスト")
		case status >= 400:
			entry.Warn("HTTPリクエスト")
		default:
			entry.Info("HTTPリクエスト")
		}
	}
}
