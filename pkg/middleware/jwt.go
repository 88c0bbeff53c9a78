package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
// いいねやコメントの所有者を特定するために使用する。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Username はユーザー名。いいね・閲覧・コメントの記録に使う。
	Username string `json:"username"`
}

// tokenIssuer はトークンの発行者。
const tokenIssuer = "blogpress"

// コンテキストキー
const (
	contextKeyUserID   = "user_id"
	contextKeyUsername = "username"
)

// GenerateJWT はユーザー情報からJWTトークンを生成する。
// 本来はアイデンティティサービスが発行するが、運用CLIやテストでも使用する。
func GenerateJWT(secret, userID, username string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		UserID:   userID,
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// parseBearer はAuthorizationヘッダーの値を検証してクレームを返す。
func parseBearer(secret, authHeader string) (*JWTClaims, string) {
	if authHeader == "" {
		return nil, "Authorizationヘッダーが必要です"
	}
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return nil, "Bearer トークン形式が不正です"
	}

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("想定外の署名方式: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid || claims.Username == "" {
		return nil, "トークンが無効です"
	}
	return claims, ""
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id" と "username" を設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, reason := parseBearer(secret, c.GetHeader("Authorization"))
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": reason})
			return
		}
		c.Set(contextKeyUserID, claims.UserID)
		c.Set(contextKeyUsername, claims.Username)
		c.Next()
	}
}

// OptionalJWTAuth はトークンがあれば検証してユーザー情報を設定するGinミドルウェアを返す。
// トークンが無い、または無効な場合も匿名として処理を続ける。
func OptionalJWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, _ := parseBearer(secret, c.GetHeader("Authorization")); claims != nil {
			c.Set(contextKeyUserID, claims.UserID)
			c.Set(contextKeyUsername, claims.Username)
		}
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
func GetUserID(c *gin.Context) string {
	return c.GetString(contextKeyUserID)
}

// GetUsername はGinコンテキストからユーザー名を取得する。
// 認証されていない場合は空文字列を返す。
func GetUsername(c *gin.Context) string {
	return c.GetString(contextKeyUsername)
}
