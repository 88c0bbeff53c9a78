package engagement

import (
	"context"
	"errors"
	"strings"

	"github.com/nao1215/blogpress/pkg/event"
)

// ErrEmptyContent はコメント本文が空であることを表す。
var ErrEmptyContent = errors.New("コメント本文が空です")

// Service はエンゲージメント操作を実行し、確定後にマイルストーン検出を呼び出す。
// 検出は操作の結果に影響しない。
type Service struct {
	store    Store
	detector *Detector
}

// NewService は新しいServiceを生成する。detectorがnilの場合は検出を行わない。
func NewService(store Store, detector *Detector) *Service {
	return &Service{store: store, detector: detector}
}

// Like はいいねを追加する。新たに追加された場合のみ検出を行う。
func (s *Service) Like(ctx context.Context, blogID, username string) (bool, error) {
	applied, err := s.store.Like(ctx, blogID, username)
	if err != nil {
		return false, err
	}
	if applied {
		s.detector.Observe(ctx, blogID, event.KindLikes)
	}
	return applied, nil
}

// Unlike はいいねを取り消す。件数は減るだけなので検出は行わない。
func (s *Service) Unlike(ctx context.Context, blogID, username string) (bool, error) {
	return s.store.Unlike(ctx, blogID, username)
}

// ToggleLike はいいね済みなら取り消し、未いいねなら追加する。操作後にいいね状態を返す。
func (s *Service) ToggleLike(ctx context.Context, blogID, username string) (bool, error) {
	applied, err := s.store.Like(ctx, blogID, username)
	if err != nil {
		return false, err
	}
	if applied {
		s.detector.Observe(ctx, blogID, event.KindLikes)
		return true, nil
	}
	if _, err := s.store.Unlike(ctx, blogID, username); err != nil {
		return false, err
	}
	return false, nil
}

// IsLiked はユーザーが記事にいいねしているかを返す。
func (s *Service) IsLiked(ctx context.Context, blogID, username string) (bool, error) {
	return s.store.IsLiked(ctx, blogID, username)
}

// RecordView は閲覧を記録する。
func (s *Service) RecordView(ctx context.Context, blogID, username, ipAddress string) error {
	if err := s.store.RecordView(ctx, blogID, username, ipAddress); err != nil {
		return err
	}
	s.detector.Observe(ctx, blogID, event.KindViews)
	return nil
}

// AddComment はコメントを投稿する。
func (s *Service) AddComment(ctx context.Context, in NewComment) (Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return Comment{}, ErrEmptyContent
	}
	c, err := s.store.AddComment(ctx, in)
	if err != nil {
		return Comment{}, err
	}
	s.detector.Observe(ctx, in.BlogID, event.KindComments)
	return c, nil
}

// UpdateComment は投稿者本人のコメント本文を更新する。
func (s *Service) UpdateComment(ctx context.Context, commentID, username, content string) (Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Comment{}, ErrEmptyContent
	}
	return s.store.UpdateComment(ctx, commentID, username, content)
}

// DeleteComment は投稿者本人のコメントを削除する。
func (s *Service) DeleteComment(ctx context.Context, commentID, username string) error {
	return s.store.DeleteComment(ctx, commentID, username)
}

// Count はkind種別の件数を返す。
func (s *Service) Count(ctx context.Context, blogID string, kind event.Kind) (int64, error) {
	return s.store.Count(ctx, blogID, kind)
}
