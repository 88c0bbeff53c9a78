package engagement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/blogpress/pkg/event"
	"github.com/nao1215/blogpress/pkg/metrics"
	"github.com/nao1215/blogpress/pkg/middleware"
	"github.com/sirupsen/logrus"
)

// Server はエンゲージメントサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// service はエンゲージメント操作。
	service *Service
	// logger はログ出力先。
	logger logrus.FieldLogger
}

// NewServer は新しいエンゲージメントサーバーを生成する。
func NewServer(cfg Config, service *Service, logger logrus.FieldLogger, collector *metrics.Collector) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger, "/health", "/metrics"))
	router.Use(middleware.CORS([]string{cfg.FrontendURL}))

	s := &Server{
		router:  router,
		port:    cfg.Port,
		service: service,
		logger:  logger,
	}
	s.setupRoutes(cfg.JWTSecret, collector)
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

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes(jwtSecret string, collector *metrics.Collector) {
	auth := middleware.JWTAuth(jwtSecret)
	optionalAuth := middleware.OptionalJWTAuth(jwtSecret)

	api := s.router.Group("/api/v1")
	{
		blogs := api.Group("/blogs/:blogId")
		{
			// いいね
			blogs.POST("/likes", auth, s.handleLike())
			blogs.DELETE("/likes", auth, s.handleUnlike())
			blogs.POST("/likes/toggle", auth, s.handleToggleLike())
			blogs.GET("/likes", optionalAuth, s.handleGetLikes())
			// 閲覧
			blogs.POST("/views", optionalAuth, s.handleRecordView())
			blogs.GET("/views", s.handleCount(event.KindViews))
			// コメント
			blogs.POST("/comments", auth, s.handleAddComment())
			blogs.GET("/comments/count", s.handleCount(event.KindComments))
		}

		comments := api.Group("/comments")
		comments.Use(auth)
		{
			comments.PUT("/:id", s.handleUpdateComment())
			comments.DELETE("/:id", s.handleDeleteComment())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "engagement"})
	})
	if collector != nil {
		s.router.GET("/metrics", collector.Handler())
	}
}

// commentRequest はコメント投稿リクエストのJSON構造。
type commentRequest struct {
	// Content は本文。
	Content string `json:"content" binding:"required"`
	// ParentID は返信先コメントのID。
	ParentID string `json:"parentId"`
}

// updateCommentRequest はコメント更新リクエストのJSON構造。
type updateCommentRequest struct {
	// Content は本文。
	Content string `json:"content" binding:"required"`
}

// internalError は500エラーを返し、詳細をログに残す。
func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.logger.WithError(err).WithField("path", c.Request.URL.Path).Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// likeState は操作後のいいね状態と件数を返す。
func (s *Server) likeState(c *gin.Context, status int, blogID string, liked, applied bool) {
	count, err := s.service.Count(c.Request.Context(), blogID, event.KindLikes)
	if err != nil {
		s.internalError(c, "いいね数の取得に失敗しました", err)
		return
	}
	c.JSON(status, gin.H{"blogId": blogID, "liked": liked, "applied": applied, "count": count})
}

// handleLike はいいねの追加を処理するハンドラを返す。
func (s *Server) handleLike() gin.HandlerFunc {
	return func(c *gin.Context) {
		blogID := c.Param("blogId")
		applied, err := s.service.Like(c.Request.Context(), blogID, middleware.GetUsername(c))
		if err != nil {
			s.internalError(c, "いいねに失敗しました", err)
			return
		}
		s.likeState(c, http.StatusOK, blogID, true, applied)
	}
}

// handleUnlike はいいねの取り消しを処理するハンドラを返す。
func (s *Server) handleUnlike() gin.HandlerFunc {
	return func(c *gin.Context) {
		blogID := c.Param("blogId")
		applied, err := s.service.Unlike(c.Request.Context(), blogID, middleware.GetUsername(c))
		if err != nil {
			s.internalError(c, "いいねの取り消しに失敗しました", err)
			return
		}
		s.likeState(c, http.StatusOK, blogID, false, applied)
	}
}

// handleToggleLike はいいねの切り替えを処理するハンドラを返す。
func (s *Server) handleToggleLike() gin.HandlerFunc {
	return func(c *gin.Context) {
		blogID := c.Param("blogId")
		liked, err := s.service.ToggleLike(c.Request.Context(), blogID, middleware.GetUsername(c))
		if err != nil {
			s.internalError(c, "いいねの切り替えに失敗しました", err)
			return
		}
		s.likeState(c, http.StatusOK, blogID, liked, true)
	}
}

// handleGetLikes はいいね数と、ログインしていれば自分のいいね状態を返すハンドラを返す。
func (s *Server) handleGetLikes() gin.HandlerFunc {
	return func(c *gin.Context) {
		blogID := c.Param("blogId")
		liked, err := s.service.IsLiked(c.Request.Context(), blogID, middleware.GetUsername(c))
		if err != nil {
			s.internalError(c, "いいね状態の取得に失敗しました", err)
			return
		}
		s.likeState(c, http.StatusOK, blogID, liked, false)
	}
}

// handleRecordView は閲覧の記録を処理するハンドラを返す。匿名の閲覧も記録する。
func (s *Server) handleRecordView() gin.HandlerFunc {
	return func(c *gin.Context) {
		blogID := c.Param("blogId")
		if err := s.service.RecordView(c.Request.Context(), blogID, middleware.GetUsername(c), c.ClientIP()); err != nil {
			s.internalError(c, "閲覧の記録に失敗しました", err)
			return
		}
		count, err := s.service.Count(c.Request.Context(), blogID, event.KindViews)
		if err != nil {
			s.internalError(c, "閲覧数の取得に失敗しました", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"blogId": blogID, "count": count})
	}
}

// handleCount はkind種別の件数を返すハンドラを返す。
func (s *Server) handleCount(kind event.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		blogID := c.Param("blogId")
		count, err := s.service.Count(c.Request.Context(), blogID, kind)
		if err != nil {
			s.internalError(c, "件数の取得に失敗しました", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"blogId": blogID, "count": count})
	}
}

// handleAddComment はコメント投稿を処理するハンドラを返す。
func (s *Server) handleAddComment() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req commentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		comment, err := s.service.AddComment(c.Request.Context(), NewComment{
			BlogID:   c.Param("blogId"),
			Username: middleware.GetUsername(c),
			Content:  req.Content,
			ParentID: req.ParentID,
		})
		if err != nil {
			s.commentError(c, "コメントの投稿に失敗しました", err)
			return
		}
		c.JSON(http.StatusCreated, comment)
	}
}

// handleUpdateComment はコメント更新を処理するハンドラを返す。
func (s *Server) handleUpdateComment() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		comment, err := s.service.UpdateComment(c.Request.Context(), c.Param("id"), middleware.GetUsername(c), req.Content)
		if err != nil {
			s.commentError(c, "コメントの更新に失敗しました", err)
			return
		}
		c.JSON(http.StatusOK, comment)
	}
}

// handleDeleteComment はコメント削除を処理するハンドラを返す。
func (s *Server) handleDeleteComment() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.service.DeleteComment(c.Request.Context(), c.Param("id"), middleware.GetUsername(c)); err != nil {
			s.commentError(c, "コメントの削除に失敗しました", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// commentError はコメント操作のエラーをHTTPステータスに変換する。
func (s *Server) commentError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrCommentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		s.internalError(c, msg, err)
	}
}
