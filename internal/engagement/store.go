package engagement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/nao1215/blogpress/pkg/event"
)

// ErrCommentNotFound はコメントが存在しないことを表す。
var ErrCommentNotFound = errors.New("コメントが見つかりません")

// ErrForbidden は他人のコメントを操作しようとしたことを表す。
var ErrForbidden = errors.New("自分のコメントのみ操作できます")

// sqlite はSQLite向けのクエリビルダー。
var sqlite = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// kindTables はエンゲージメント種別と集計対象テーブルの対応。
var kindTables = map[event.Kind]string{
	event.KindLikes:    "likes",
	event.KindViews:    "views",
	event.KindComments: "comments",
}

// Counter は記事ごとのエンゲージメント件数を返す。
// 検出器は操作のたびにこれを呼び、件数をキャッシュしない。
type Counter interface {
	// Count はblogIDの記事に対するkind種別の現在の件数を返す。
	Count(ctx context.Context, blogID string, kind event.Kind) (int64, error)
}

// Store はエンゲージメントの永続化を担う。
type Store interface {
	Counter
	// Like はいいねを追加する。既にいいね済みの場合はfalseを返し、何もしない。
	Like(ctx context.Context, blogID, username string) (bool, error)
	// Unlike はいいねを取り消す。いいねしていない場合はfalseを返す。
	Unlike(ctx context.Context, blogID, username string) (bool, error)
	// IsLiked はユーザーが記事にいいねしているかを返す。
	IsLiked(ctx context.Context, blogID, username string) (bool, error)
	// RecordView は閲覧を1件記録する。
	RecordView(ctx context.Context, blogID, username, ipAddress string) error
	// AddComment はコメントを投稿する。
	AddComment(ctx context.Context, in NewComment) (Comment, error)
	// UpdateComment は投稿者本人のコメント本文を更新する。
	UpdateComment(ctx context.Context, commentID, username, content string) (Comment, error)
	// DeleteComment は投稿者本人のコメントを返信ごと削除する。
	DeleteComment(ctx context.Context, commentID, username string) error
}

// NewComment はコメント投稿の入力。
type NewComment struct {
	// BlogID は対象ブログ記事のID。
	BlogID string
	// Username は投稿者のユーザー名。
	Username string
	// Content は本文。
	Content string
	// ParentID は返信先コメントのID。トップレベルの場合は空文字列。
	ParentID string
}

// Comment はブログ記事へのコメント。
type Comment struct {
	// ID はコメントの一意識別子。
	ID string `json:"id"`
	// BlogID は対象ブログ記事のID。
	BlogID string `json:"blogId"`
	// Username は投稿者のユーザー名。
	Username string `json:"username"`
	// Content は本文。
	Content string `json:"content"`
	// ParentID は返信先コメントのID。
	ParentID string `json:"parentId,omitempty"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `json:"updatedAt"`
}

// SQLiteStore はSQLiteを用いたStoreの実装。
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore は新しいSQLiteStoreを生成する。スキーマは適用済みであること。
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// timestamp は保存用の日時文字列を返す。
func (s *SQLiteStore) timestamp() string {
	return s.now().Format(time.RFC3339Nano)
}

// Count はblogIDの記事に対するkind種別の件数を返す。
func (s *SQLiteStore) Count(ctx context.Context, blogID string, kind event.Kind) (int64, error) {
	table, ok := kindTables[kind]
	if !ok {
		return 0, fmt.Errorf("未知のエンゲージメント種別です: %q", kind)
	}

	query, args, err := sqlite.Select("COUNT(*)").From(table).Where(sq.Eq{"blog_id": blogID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("クエリの組み立てに失敗: %w", err)
	}
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%sの件数取得に失敗: %w", table, err)
	}
	return count, nil
}

// Like はいいねを追加する。既にいいね済みの場合はfalseを返す。
func (s *SQLiteStore) Like(ctx context.Context, blogID, username string) (bool, error) {
	query, args, err := sqlite.Insert("likes").
		Options("OR IGNORE").
		Columns("id", "blog_id", "username", "created_at").
		Values(uuid.NewString(), blogID, username, s.timestamp()).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("クエリの組み立てに失敗: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("いいねの保存に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("いいねの保存結果の取得に失敗: %w", err)
	}
	return n > 0, nil
}

// Unlike はいいねを取り消す。いいねしていない場合はfalseを返す。
func (s *SQLiteStore) Unlike(ctx context.Context, blogID, username string) (bool, error) {
	query, args, err := sqlite.Delete("likes").
		Where(sq.Eq{"blog_id": blogID, "username": username}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("クエリの組み立てに失敗: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("いいねの削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("いいねの削除結果の取得に失敗: %w", err)
	}
	return n > 0, nil
}

// IsLiked はユーザーが記事にいいねしているかを返す。
func (s *SQLiteStore) IsLiked(ctx context.Context, blogID, username string) (bool, error) {
	if username == "" {
		return false, nil
	}
	query, args, err := sqlite.Select("1").From("likes").
		Where(sq.Eq{"blog_id": blogID, "username": username}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("クエリの組み立てに失敗: %w", err)
	}
	var one int
	switch err := s.db.QueryRowContext(ctx, query, args...).Scan(&one); {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("いいね状態の取得に失敗: %w", err)
	}
	return true, nil
}

// RecordView は閲覧を1件記録する。同じユーザーの再閲覧も別の1件として数える。
func (s *SQLiteStore) RecordView(ctx context.Context, blogID, username, ipAddress string) error {
	query, args, err := sqlite.Insert("views").
		Columns("id", "blog_id", "username", "ip_address", "created_at").
		Values(uuid.NewString(), blogID, username, ipAddress, s.timestamp()).
		ToSql()
	if err != nil {
		return fmt.Errorf("クエリの組み立てに失敗: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("閲覧の保存に失敗: %w", err)
	}
	return nil
}

// AddComment はコメントを投稿する。返信先が同じ記事に存在しない場合はErrCommentNotFoundを返す。
func (s *SQLiteStore) AddComment(ctx context.Context, in NewComment) (Comment, error) {
	if in.ParentID != "" {
		parent, err := s.getComment(ctx, in.ParentID)
		if err != nil {
			return Comment{}, err
		}
		if parent.BlogID != in.BlogID {
			return Comment{}, fmt.Errorf("返信先が別の記事のコメントです: %w", ErrCommentNotFound)
		}
	}

	now := s.now()
	c := Comment{
		ID:        uuid.NewString(),
		BlogID:    in.BlogID,
		Username:  in.Username,
		Content:   in.Content,
		ParentID:  in.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var parentID any
	if c.ParentID != "" {
		parentID = c.ParentID
	}
	ts := now.Format(time.RFC3339Nano)
	query, args, err := sqlite.Insert("comments").
		Columns("id", "blog_id", "username", "content", "parent_id", "created_at", "updated_at").
		Values(c.ID, c.BlogID, c.Username, c.Content, parentID, ts, ts).
		ToSql()
	if err != nil {
		return Comment{}, fmt.Errorf("クエリの組み立てに失敗: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return Comment{}, fmt.Errorf("コメントの保存に失敗: %w", err)
	}
	return c, nil
}

// UpdateComment は投稿者本人のコメント本文を更新する。
func (s *SQLiteStore) UpdateComment(ctx context.Context, commentID, username, content string) (Comment, error) {
	c, err := s.getComment(ctx, commentID)
	if err != nil {
		return Comment{}, err
	}
	if c.Username != username {
		return Comment{}, ErrForbidden
	}

	now := s.now()
	query, args, err := sqlite.Update("comments").
		Set("content", content).
		Set("updated_at", now.Format(time.RFC3339Nano)).
		Where(sq.Eq{"id": commentID}).
		ToSql()
	if err != nil {
		return Comment{}, fmt.Errorf("クエリの組み立てに失敗: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return Comment{}, fmt.Errorf("コメントの更新に失敗: %w", err)
	}

	c.Content = content
	c.UpdatedAt = now
	return c, nil
}

// deleteThread はコメントとその返信を再帰的に削除するクエリ。
const deleteThread = `
WITH RECURSIVE thread(id) AS (
    SELECT ?
    UNION ALL
    SELECT c.id FROM comments c JOIN thread t ON c.parent_id = t.id
)
DELETE FROM comments WHERE id IN (SELECT id FROM thread)`

// DeleteComment は投稿者本人のコメントを返信ごと削除する。
func (s *SQLiteStore) DeleteComment(ctx context.Context, commentID, username string) error {
	c, err := s.getComment(ctx, commentID)
	if err != nil {
		return err
	}
	if c.Username != username {
		return ErrForbidden
	}
	if _, err := s.db.ExecContext(ctx, deleteThread, commentID); err != nil {
		return fmt.Errorf("コメントの削除に失敗: %w", err)
	}
	return nil
}

// getComment はIDでコメントを1件取得する。
func (s *SQLiteStore) getComment(ctx context.Context, commentID string) (Comment, error) {
	query, args, err := sqlite.Select("id", "blog_id", "username", "content", "COALESCE(parent_id, '')", "created_at", "updated_at").
		From("comments").
		Where(sq.Eq{"id": commentID}).
		ToSql()
	if err != nil {
		return Comment{}, fmt.Errorf("クエリの組み立てに失敗: %w", err)
	}

	var (
		c                    Comment
		createdAt, updatedAt string
	)
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&c.ID, &c.BlogID, &c.Username, &c.Content, &c.ParentID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Comment{}, ErrCommentNotFound
	}
	if err != nil {
		return Comment{}, fmt.Errorf("コメントの取得に失敗: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return c, nil
}
