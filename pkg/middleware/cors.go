package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// corsHeaders はengagement APIが許可するメソッドとヘッダー。
var corsHeaders = map[string]string{
	"Access-Control-Allow-Methods":     "GET, POST, PUT, DELETE, OPTIONS",
	"Access-Control-Allow-Headers":     "Authorization, Content-Type",
	"Access-Control-Allow-Credentials": "true",
	"Access-Control-Max-Age":           "86400",
}

// normalizeOrigin は設定値の前後の空白と末尾のスラッシュを取り除く。
func normalizeOrigin(origin string) string {
	return strings.TrimRight(strings.TrimSpace(origin), "/")
}

// CORS はブログのフロントエンド（FRONTEND_URL）からのクロスオリジンリクエストを許可する。
// OPTIONSはオリジンにかかわらず204で打ち切る。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = normalizeOrigin(o); o != "" {
			allowed[o] = true
		}
	}

	return func(c *gin.Context) {
		c.Header("Vary", "Origin")
		if origin := c.GetHeader("Origin"); allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			for k, v := range corsHeaders {
				c.Header(k, v)
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
