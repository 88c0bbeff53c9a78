package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nao1215/blogpress/pkg/httpclient"
	"github.com/sirupsen/logrus"
)

// ErrNotFound は参照先サービスに対象のデータが存在しないことを表す。
var ErrNotFound = errors.New("参照先にデータが見つかりません")

// ContentInfo はコンテンツサービスから取得する記事の情報。
type ContentInfo struct {
	// AuthorID は記事の著者ID。
	AuthorID string
	// Title は記事のタイトル。
	Title string
}

// Profile はアイデンティティサービスから取得するユーザーのプロフィール。
type Profile struct {
	// Username はユーザー名。
	Username string `json:"username"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// FirstName は名。
	FirstName string `json:"firstName"`
	// LastName は姓。
	LastName string `json:"lastName"`
}

// ContentLookup は記事IDから著者とタイトルを引く。
type ContentLookup interface {
	// GetContentByID は記事の情報を返す。存在しない場合はErrNotFoundを返す。
	GetContentByID(ctx context.Context, id string) (ContentInfo, error)
}

// IdentityLookup はユーザーのプロフィールと配信先アドレスを引く。
type IdentityLookup interface {
	// GetProfileByID はプロフィールを返す。存在しない場合はErrNotFoundを返す。
	GetProfileByID(ctx context.Context, id string) (Profile, error)
	// GetAllEmails は登録済みの全ユーザーのメールアドレスを返す。
	GetAllEmails(ctx context.Context) ([]string, error)
}

// looseID は文字列と数値のどちらで届いても受け付けるID。
type looseID string

// UnmarshalJSON は "7" と 7 の両方を文字列として読む。
func (id *looseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("IDの解析に失敗: %w", err)
		}
		*id = looseID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("IDの解析に失敗: %w", err)
	}
	*id = looseID(data)
	return nil
}

// contentResponse はコンテンツサービスの記事レスポンスのうち参照するフィールド。
type contentResponse struct {
	AuthorID looseID `json:"authorId"`
	Title    string  `json:"title"`
}

// LookupConfig はHTTPルックアップクライアントの設定。
type LookupConfig struct {
	// BaseURL は接続先サービスのベースURL。
	BaseURL string
	// Timeout は1回の呼び出しのタイムアウト。
	Timeout time.Duration
	// BreakerFailures はこの回数失敗するとサーキットブレーカーが開く。
	BreakerFailures uint
	// BreakerWindow は失敗率を評価する直近の呼び出し数。
	BreakerWindow uint
	// BreakerDelay はブレーカーが開いてから半開状態に移るまでの時間。
	BreakerDelay time.Duration
}

func newLookupClient(name string, cfg LookupConfig, logger logrus.FieldLogger) *httpclient.Client {
	return httpclient.New(cfg.BaseURL,
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithCircuitBreaker(httpclient.BreakerConfig{
			Name:             name,
			FailureThreshold: cfg.BreakerFailures,
			Window:           cfg.BreakerWindow,
			Delay:            cfg.BreakerDelay,
			Logger:           logger,
		}),
	)
}

// ContentClient はHTTP経由でコンテンツサービスを参照するContentLookup。
type ContentClient struct {
	client *httpclient.Client
}

var _ ContentLookup = (*ContentClient)(nil)

// NewContentClient は新しいContentClientを生成する。
func NewContentClient(cfg LookupConfig, logger logrus.FieldLogger) *ContentClient {
	return &ContentClient{client: newLookupClient("content", cfg, logger)}
}

// GetContentByID は GET /api/v1/blogs/{id} を呼び出す。
func (c *ContentClient) GetContentByID(ctx context.Context, id string) (ContentInfo, error) {
	var resp contentResponse
	if err := c.client.GetJSON(ctx, "/api/v1/blogs/"+url.PathEscape(id), &resp); err != nil {
		return ContentInfo{}, mapLookupError("記事の取得", err)
	}
	return ContentInfo{AuthorID: string(resp.AuthorID), Title: resp.Title}, nil
}

// IdentityClient はHTTP経由でアイデンティティサービスを参照するIdentityLookup。
type IdentityClient struct {
	client *httpclient.Client
}

var _ IdentityLookup = (*IdentityClient)(nil)

// NewIdentityClient は新しいIdentityClientを生成する。
func NewIdentityClient(cfg LookupConfig, logger logrus.FieldLogger) *IdentityClient {
	return &IdentityClient{client: newLookupClient("identity", cfg, logger)}
}

// GetProfileByID は GET /api/v1/users/{id} を呼び出す。
func (c *IdentityClient) GetProfileByID(ctx context.Context, id string) (Profile, error) {
	var profile Profile
	if err := c.client.GetJSON(ctx, "/api/v1/users/"+url.PathEscape(id), &profile); err != nil {
		return Profile{}, mapLookupError("プロフィールの取得", err)
	}
	return profile, nil
}

// GetAllEmails は GET /api/v1/users/emails を呼び出す。
func (c *IdentityClient) GetAllEmails(ctx context.Context) ([]string, error) {
	var emails []string
	if err := c.client.GetJSON(ctx, "/api/v1/users/emails", &emails); err != nil {
		return nil, mapLookupError("メールアドレス一覧の取得", err)
	}
	return emails, nil
}

// mapLookupError はHTTPクライアントのエラーをルックアップのエラーに変換する。
func mapLookupError(op string, err error) error {
	if errors.Is(err, httpclient.ErrNotFound) {
		return fmt.Errorf("%sに失敗: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%sに失敗: %w", op, err)
}
