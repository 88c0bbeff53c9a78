package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/sirupsen/logrus"
)

// ErrNotFound は参照先が404を返したことを表す。
var ErrNotFound = errors.New("リソースが見つかりません")

// ErrCircuitOpen はサーキットブレーカーが開いているため呼び出しを行わなかったことを表す。
var ErrCircuitOpen = errors.New("サーキットブレーカーが開いています")

// defaultTimeout は1回の呼び出しの既定のタイムアウト。
const defaultTimeout = 30 * time.Second

// Client はサービス間通信用のHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
	// timeout は1回の呼び出しに許す時間。
	timeout time.Duration
	// breaker は連続した失敗を検知して呼び出しを遮断する。nilの場合は遮断しない。
	breaker circuitbreaker.CircuitBreaker[any]
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithTimeout は1回の呼び出しのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// BreakerConfig はサーキットブレーカーの設定。
type BreakerConfig struct {
	// Name はログに出力する名前。
	Name string
	// FailureThreshold はこの回数失敗すると遮断する。
	FailureThreshold uint
	// Window は失敗率を評価する直近の呼び出し数。
	Window uint
	// Delay は遮断してから半開状態に移るまでの時間。
	Delay time.Duration
	// Logger は状態遷移のログ出力先。
	Logger logrus.FieldLogger
}

// WithCircuitBreaker はサーキットブレーカーを有効にする。
func WithCircuitBreaker(cfg BreakerConfig) Option {
	return func(c *Client) {
		if cfg.Window == 0 {
			cfg.Window = 10
		}
		if cfg.FailureThreshold == 0 || cfg.FailureThreshold > cfg.Window {
			cfg.FailureThreshold = cfg.Window / 2
		}
		if cfg.Delay <= 0 {
			cfg.Delay = 15 * time.Second
		}

		builder := circuitbreaker.NewBuilder[any]().
			WithFailureThresholdRatio(cfg.FailureThreshold, cfg.Window).
			WithDelay(cfg.Delay).
			WithSuccessThreshold(1)
		if cfg.Logger != nil {
			builder = builder.OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
				cfg.Logger.WithFields(logrus.Fields{
					"circuit_breaker": cfg.Name,
					"from_state":      stateName(e.OldState),
					"to_state":        stateName(e.NewState),
				}).Warn("サーキットブレーカーの状態が変化しました")
			})
		}
		c.breaker = builder.Build()
	}
}

// stateName はブレーカーの状態をログ用の文字列に変換する。
func stateName(state circuitbreaker.State) string {
	switch state {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://identity:8090"）を指定する。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	return c.call(ctx, http.MethodPost, path, body, result)
}

// GetJSON は指定パスにGETリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。404の場合はErrNotFoundを返す。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	return c.call(ctx, http.MethodGet, path, nil, result)
}

// call はタイムアウトとサーキットブレーカーを適用して1回だけリクエストを実行する。
func (c *Client) call(ctx context.Context, method, path string, body any, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.breaker == nil {
		return c.doJSON(ctx, method, path, body, result)
	}

	// 404は参照先の正常な応答なので、ブレーカーには成功として数える
	var notFound bool
	_, err := failsafe.With(c.breaker).Get(func() (any, error) {
		err := c.doJSON(ctx, method, path, body, result)
		if errors.Is(err, ErrNotFound) {
			notFound = true
			return nil, nil
		}
		return nil, err
	})
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		return fmt.Errorf("%w: %s %s", ErrCircuitOpen, method, path)
	case err != nil:
		return err
	case notFound:
		return ErrNotFound
	}
	return nil
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTPエラー: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}
