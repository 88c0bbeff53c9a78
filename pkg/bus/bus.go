// Package bus はサービス間の非同期メッセージバスを抽象化する。
//
// 本番ではKafka（franz-go）を、テストやローカル開発ではインメモリ実装を使う。
// どちらの実装もチャネルごとに独立した購読ループを持ち、
// ハンドラのエラーやパニックはログに記録したうえでメッセージを破棄して処理を継続する。
// 配信は少なくとも1回（at-least-once）であり、ハンドラは重複配信を許容しなければならない。
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Message はバス上の1メッセージ。
type Message struct {
	// Channel はメッセージが流れたチャネル名。
	Channel string
	// Key はパーティショニングキー。
	Key []byte
	// Value はペイロード。
	Value []byte
	// Headers はメタデータ。
	Headers map[string]string
	// Partition は受信時のパーティション番号。インメモリ実装では常に0。
	Partition int32
	// Offset は受信時のオフセット。
	Offset int64
	// Timestamp はメッセージの作成日時。
	Timestamp time.Time
}

// Handler はメッセージを処理する関数。
type Handler func(ctx context.Context, msg Message) error

// Publisher はチャネルにメッセージを送信する。
type Publisher interface {
	// Publish はメッセージを送信する。戻り値がnilであればバスが配信を引き受けたことを表す。
	Publish(ctx context.Context, channel string, msg Message) error
	// Close は接続を閉じる。
	Close() error
}

// Subscriber はチャネルを購読してハンドラにメッセージを渡す。
type Subscriber interface {
	// Subscribe はチャネルにハンドラを登録する。Runより前に呼び出すこと。
	Subscribe(channel string, handler Handler)
	// Run はctxがキャンセルされるまで全チャネルの購読ループを実行する。
	Run(ctx context.Context) error
	// Status はチャネルごとの購読ループの稼働状況を返す。
	Status() map[string]bool
	// Close は接続を閉じる。
	Close() error
}

// ErrClosed はクローズ済みのバスを操作したことを表す。
var ErrClosed = errors.New("バスはクローズ済みです")

// invoke はハンドラを呼び出し、パニックをエラーに変換する。
func invoke(ctx context.Context, handler Handler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ハンドラがパニックしました: %v", r)
		}
	}()
	return handler(ctx, msg)
}

// deliver はハンドラを呼び出し、失敗した場合はログに記録してメッセージを破棄する。
// 1件の失敗でチャネルの購読ループを止めない。
func deliver(ctx context.Context, logger logrus.FieldLogger, handler Handler, msg Message) bool {
	if err := invoke(ctx, handler, msg); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"channel":   msg.Channel,
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Error("メッセージの処理に失敗したため破棄します")
		return false
	}
	return true
}

// runState はチャネルごとの購読ループの稼働状況を保持する。
type runState struct {
	mu      sync.RWMutex
	running map[string]bool
}

func newRunState() *runState {
	return &runState{running: make(map[string]bool)}
}

func (s *runState) set(channel string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[channel] = running
}

func (s *runState) snapshot() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.running))
	for k, v := range s.running {
		out[k] = v
	}
	return out
}
