package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// testPayload はテスト用のリクエスト/レスポンスペイロード。
type testPayload struct {
	// Name はテスト用の名前フィールド。
	Name string `json:"name"`
	// Value はテスト用の値フィールド。
	Value int `json:"value"`
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080")
		if client == nil {
			t.Fatal("New()がnilを返した")
		}
		if client.baseURL != "http://localhost:8080" {
			t.Errorf("baseURL = %q, want %q", client.baseURL, "http://localhost:8080")
		}
		if client.breaker != nil {
			t.Error("既定ではサーキットブレーカーが無効であるべき")
		}
	})

	t.Run("既定のタイムアウトが30秒であること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080")
		if client.timeout != 30*time.Second {
			t.Errorf("timeout = %v, want 30s", client.timeout)
		}
	})

	t.Run("WithTimeoutでタイムアウトを変更できること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080", WithTimeout(3*time.Second))
		if client.timeout != 3*time.Second {
			t.Errorf("timeout = %v, want 3s", client.timeout)
		}
	})

	t.Run("WithTimeoutに0以下を渡すと既定値のままであること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080", WithTimeout(0))
		if client.timeout != 30*time.Second {
			t.Errorf("timeout = %v, want 30s", client.timeout)
		}
	})
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("正常にPOSTリクエストを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received.Method = r.Method
			received.Path = r.URL.Path
			received.Body, _ = io.ReadAll(r.Body)
			received.Headers = r.Header

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(testPayload{Name: "response", Value: 200})
		}))
		defer ts.Close()

		client := New(ts.URL)
		var result testPayload

		err := client.PostJSON(context.Background(), "/api/v1/users/emails", testPayload{Name: "request", Value: 100}, &result)
		if err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}

		if received.Method != http.MethodPost {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodPost)
		}
		if received.Path != "/api/v1/users/emails" {
			t.Errorf("Path = %q, want %q", received.Path, "/api/v1/users/emails")
		}

		var sentBody testPayload
		if err := json.Unmarshal(received.Body, &sentBody); err != nil {
			t.Fatalf("リクエストボディのパースに失敗: %v", err)
		}
		if sentBody.Name != "request" || sentBody.Value != 100 {
			t.Errorf("sent = %+v, want {request 100}", sentBody)
		}
		if got := received.Headers.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}
		if result.Name != "response" || result.Value != 200 {
			t.Errorf("result = %+v, want {response 200}", result)
		}
	})

	t.Run("サーバーが500エラーを返した場合にエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"internal server error"}`))
		}))
		defer ts.Close()

		client := New(ts.URL)
		err := client.PostJSON(context.Background(), "/api/test", testPayload{}, nil)
		if err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
		if errors.Is(err, ErrNotFound) {
			t.Error("500エラーがErrNotFoundとして扱われた")
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(testPayload{Name: "response", Value: 1})
		}))
		defer ts.Close()

		client := New(ts.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel() // 即座にキャンセル

		var result testPayload
		if err := client.PostJSON(ctx, "/api/test", testPayload{}, &result); err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestGetJSON はGetJSON関数を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("正常にGETリクエストを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received.Method = r.Method
			received.Path = r.URL.Path
			received.Body, _ = io.ReadAll(r.Body)

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(testPayload{Name: "get-response", Value: 42})
		}))
		defer ts.Close()

		client := New(ts.URL)
		var result testPayload

		if err := client.GetJSON(context.Background(), "/api/v1/blogs/blog-1", &result); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if received.Method != http.MethodGet {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodGet)
		}
		if received.Path != "/api/v1/blogs/blog-1" {
			t.Errorf("Path = %q, want %q", received.Path, "/api/v1/blogs/blog-1")
		}
		if len(received.Body) != 0 {
			t.Errorf("GETリクエストにボディが含まれている: %q", string(received.Body))
		}
		if result.Name != "get-response" || result.Value != 42 {
			t.Errorf("result = %+v, want {get-response 42}", result)
		}
	})

	t.Run("サーバーが404を返した場合にErrNotFoundが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		}))
		defer ts.Close()

		client := New(ts.URL)
		var result testPayload

		err := client.GetJSON(context.Background(), "/api/v1/blogs/missing", &result)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{invalid json}`))
		}))
		defer ts.Close()

		client := New(ts.URL)
		var result testPayload
		if err := client.GetJSON(context.Background(), "/api/test", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client := New("http://127.0.0.1:1")
		var result testPayload
		if err := client.GetJSON(context.Background(), "/api/test", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("応答が遅い場合にタイムアウトでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer ts.Close()
		defer close(release)

		client := New(ts.URL, WithTimeout(50*time.Millisecond))
		var result testPayload

		start := time.Now()
		err := client.GetJSON(context.Background(), "/api/slow", &result)
		if err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("タイムアウトまでに時間がかかりすぎている: %v", elapsed)
		}
	})
}

// TestCircuitBreaker はサーキットブレーカーの動作を検証する。
func TestCircuitBreaker(t *testing.T) {
	t.Parallel()

	t.Run("連続して失敗すると参照先を呼ばずにErrCircuitOpenが返ること", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		client := New(ts.URL, WithCircuitBreaker(BreakerConfig{
			Name:             "identity",
			FailureThreshold: 2,
			Window:           2,
			Delay:            time.Minute,
		}))

		for i := 0; i < 2; i++ {
			if err := client.GetJSON(context.Background(), "/api/test", nil); err == nil {
				t.Fatalf("%d回目: エラーが返るべき", i+1)
			}
		}

		err := client.GetJSON(context.Background(), "/api/test", nil)
		if !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("err = %v, want ErrCircuitOpen", err)
		}
		if got := hits.Load(); got != 2 {
			t.Errorf("参照先の呼び出し回数 = %d, want 2", got)
		}
	})

	t.Run("404は失敗として数えられないこと", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		client := New(ts.URL, WithCircuitBreaker(BreakerConfig{
			Name:             "content",
			FailureThreshold: 2,
			Window:           2,
			Delay:            time.Minute,
		}))

		for i := 0; i < 5; i++ {
			err := client.GetJSON(context.Background(), "/api/v1/blogs/missing", nil)
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("%d回目: err = %v, want ErrNotFound", i+1, err)
			}
		}
		if got := hits.Load(); got != 5 {
			t.Errorf("参照先の呼び出し回数 = %d, want 5", got)
		}
	})
}
