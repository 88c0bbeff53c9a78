package engagement

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/blogpress/pkg/event"
	"github.com/nao1215/blogpress/pkg/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestStore はインメモリSQLiteにスキーマを適用したStoreを返す。
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := InitSchema(context.Background(), db, logging.Discard()); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}
	return NewSQLiteStore(db)
}

// recordingPublisher は送信されたシグナルを記録するMilestonePublisher。
type recordingPublisher struct {
	mu      sync.Mutex
	signals []event.MilestoneSignal
	err     error
	panics  bool
}

func (p *recordingPublisher) PublishMilestone(_ context.Context, s event.MilestoneSignal) error {
	if p.panics {
		panic("publisher exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.signals = append(p.signals, s)
	return nil
}

// published は記録済みのシグナルのコピーを返す。
func (p *recordingPublisher) published() []event.MilestoneSignal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event.MilestoneSignal(nil), p.signals...)
}

// fixedCounter は常に同じ件数を返すCounter。
type fixedCounter struct {
	count int64
	err   error
}

func (c fixedCounter) Count(context.Context, string, event.Kind) (int64, error) {
	return c.count, c.err
}

// errBroker はテスト用の送信エラー。
var errBroker = errors.New("broker unavailable")
