package engagement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nao1215/blogpress/pkg/logging"
	"github.com/nao1215/blogpress/pkg/metrics"
	"github.com/nao1215/blogpress/pkg/middleware"
)

// testJWTSecret はテスト用のJWTシークレット。
const testJWTSecret = "engagement-test-secret"

// setupTestServer はテスト用のエンゲージメントサーバーをインメモリSQLiteで構築する。
func setupTestServer(t *testing.T) (http.Handler, *recordingPublisher) {
	t.Helper()

	pub := &recordingPublisher{}
	svc, _ := newTestService(t, pub)
	cfg := Config{
		Port:        "0",
		JWTSecret:   testJWTSecret,
		FrontendURL: "http://localhost:3000",
	}
	s := NewServer(cfg, svc, logging.Discard(), metrics.New("engagement"))
	return s.Handler(), pub
}

// tokenFor はユーザー名に対するBearerトークンを生成する。
func tokenFor(t *testing.T, username string) string {
	t.Helper()
	token, err := middleware.GenerateJWT(testJWTSecret, "id-"+username, username)
	if err != nil {
		t.Fatalf("トークンの生成に失敗: %v", err)
	}
	return token
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// parseJSON はレスポンスボディをmapにデコードするヘルパー関数。
func parseJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result
}

func TestHealth(t *testing.T) {
	t.Parallel()

	t.Run("ヘルスチェックが200を返すこと", func(t *testing.T) {
		t.Parallel()

		h, _ := setupTestServer(t)
		w := doRequest(h, http.MethodGet, "/health", "", nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		body := parseJSON(t, w)
		if body["service"] != "engagement" {
			t.Errorf("service = %v, want engagement", body["service"])
		}
	})

	t.Run("メトリクスが公開されること", func(t *testing.T) {
		t.Parallel()

		h, _ := setupTestServer(t)
		w := doRequest(h, http.MethodGet, "/metrics", "", nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if !strings.Contains(w.Body.String(), "go_goroutines") {
			t.Error("Goランタイムのメトリクスが含まれていない")
		}
	})
}

func TestHandleLikes(t *testing.T) {
	t.Parallel()

	t.Run("認証なしのいいねは401になること", func(t *testing.T) {
		t.Parallel()

		h, _ := setupTestServer(t)
		w := doRequest(h, http.MethodPost, "/api/v1/blogs/1/likes", "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("いいねすると件数と状態が返ること", func(t *testing.T) {
		t.Parallel()

		h, _ := setupTestServer(t)
		token := tokenFor(t, "alice")

		w := doRequest(h, http.MethodPost, "/api/v1/blogs/1/likes", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		body := parseJSON(t, w)
		if body["liked"] != true || body["applied"] != true || body["count"] != float64(1) {
			t.Errorf("body = %v", body)
		}

		w = doRequest(h, http.MethodPost, "/api/v1/blogs/1/likes", token, nil)
		body = parseJSON(t, w)
		if body["applied"] != false || body["count"] != float64(1) {
			t.Errorf("重複いいね: body = %v", body)
		}
	})

	t.Run("GETではログイン中のユーザーのいいね状態が返ること", func(t *testing.T) {
		t.Parallel()

		h, _ := setupTestServer(t)
		alice := tokenFor(t, "alice")
		doRequest(h, http.MethodPost, "/api/v1/blogs/1/likes", alice, nil)

		body := parseJSON(t, doRequest(h, http.MethodGet, "/api/v1/blogs/1/likes", alice, nil))
		if body["liked"] != true || body["count"] != float64(1) {
			t.Errorf("aliceから見た状態: body = %v", body)
		}

		body = parseJSON(t, doRequest(h, http.MethodGet, "/api/v1/blogs/1/likes", "", nil))
		if body["liked"] != false || body["count"] != float64(1) {
			t.Errorf("匿名から見た状態: body = %v", body)
		}
	})

	t.Run("取り消しと切り替えができること", func(t *testing.T) {
		t.Parallel()

		h, _ := setupTestServer(t)
		token := tokenFor(t, "alice")

		body := parseJSON(t, doRequest(h, http.MethodPost, "/api/v1/blogs/1/likes/toggle", token, nil))
		if body["liked"] != true {
			t.Errorf("toggle 1回目: body = %v", body)
		}
		body = parseJSON(t, doRequest(h, http.MethodDelete, "/api/v1/blogs/1/likes", token, nil))
		if body["liked"] != false || body["applied"] != true || body["count"] != float64(0) {
			t.Errorf("unlike: body = %v", body)
		}
	})

	t.Run("10人目のいいねでマイルストーンが送信されること", func(t *testing.T) {
		t.Parallel()

		h, pub := setupTestServer(t)
		for i := 1; i <= 10; i++ {
			w := doRequest(h, http.MethodPost, "/api/v1/blogs/9/likes", tokenFor(t, fmt.Sprintf("user-%d", i)), nil)
			if w.Code != http.StatusOK {
				t.Fatalf("%d人目: ステータスコード = %d", i, w.Code)
			}
		}
		signals := pub.published()
		if len(signals) != 1 || signals[0].BlogID != "9" || signals[0].Count != 10 {
			t.Errorf("signals = %+v", signals)
		}
	})
}

func TestHandleViews(t *testing.T) {
	t.Parallel()

	t.Run("匿名でも閲覧を記録できること", func(t *testing.T) {
		t.Parallel()

		h, _ := setupTestServer(t)
		w := doRequest(h, http.MethodPost, "/api/v1/blogs/1/views", "", nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusCreated)
		}
		doRequest(h, http.MethodPost, "/api/v1/blogs/1/views", tokenFor(t, "alice"), nil)

		body := parseJSON(t, doRequest(h, http.MethodGet, "/api/v1/blogs/1/views", "", nil))
		if body["count"] != float64(2) {
			t.Errorf("count = %v, want 2", body["count"])
		}
	})
}

func TestHandleComments(t *testing.T) {
	t.Parallel()

	t.Run("コメントの投稿と件数取得ができること", func(t *testing.T) {
		t.Parallel()

		h, _ := setupTestServer(t)
		w := doRequest(h, http.MethodPost, "/api/v1/blogs/1/comments", tokenFor(t, "alice"), map[string]string{"content": "いい記事"})
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}
		body := parseJSON(t, w)
		if body["username"] != "alice" || body["content"] != "いい記事" || body["blogId"] != "1" {
			t.Errorf("body = %v", body)
		}

		count := parseJSON(t, doRequest(h, http.MethodGet, "/api/v1/blogs/1/comments/count", "", nil))
		if count["count"] != float64(1) {
			t.Errorf("count = %v, want 1", count["count"])
		}
	})

	t.Run("本文が無い場合は400になること", func(t *testing.T) {
		t.Parallel()

		h, _ := setupTestServer(t)
		w := doRequest(h, http.MethodPost, "/api/v1/blogs/1/comments", tokenFor(t, "alice"), map[string]string{})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("存在しない返信先は404になること", func(t *testing.T) {
		t.Parallel()

		h, _ := setupTestServer(t)
		w := doRequest(h, http.MethodPost, "/api/v1/blogs/1/comments", tokenFor(t, "alice"),
			map[string]string{"content": "返信", "parentId": "missing"})
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("他人のコメントの更新と削除は403になること", func(t *testing.T) {
		t.Parallel()

		h, _ := setupTestServer(t)
		created := parseJSON(t, doRequest(h, http.MethodPost, "/api/v1/blogs/1/comments", tokenFor(t, "alice"), map[string]string{"content": "original"}))
		id, _ := created["id"].(string)
		bob := tokenFor(t, "bob")

		if w := doRequest(h, http.MethodPut, "/api/v1/comments/"+id, bob, map[string]string{"content": "hijack"}); w.Code != http.StatusForbidden {
			t.Errorf("更新: ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
		if w := doRequest(h, http.MethodDelete, "/api/v1/comments/"+id, bob, nil); w.Code != http.StatusForbidden {
			t.Errorf("削除: ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("本人はコメントを更新し削除できること", func(t *testing.T) {
		t.Parallel()

		h, _ := setupTestServer(t)
		alice := tokenFor(t, "alice")
		created := parseJSON(t, doRequest(h, http.MethodPost, "/api/v1/blogs/1/comments", alice, map[string]string{"content": "original"}))
		id, _ := created["id"].(string)

		w := doRequest(h, http.MethodPut, "/api/v1/comments/"+id, alice, map[string]string{"content": "edited"})
		if w.Code != http.StatusOK {
			t.Fatalf("更新: ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if body := parseJSON(t, w); body["content"] != "edited" {
			t.Errorf("content = %v, want edited", body["content"])
		}

		if w := doRequest(h, http.MethodDelete, "/api/v1/comments/"+id, alice, nil); w.Code != http.StatusNoContent {
			t.Errorf("削除: ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
		}
		if w := doRequest(h, http.MethodDelete, "/api/v1/comments/"+id, alice, nil); w.Code != http.StatusNotFound {
			t.Errorf("再削除: ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}
