package bus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// defaultMemoryBuffer はチャネルごとのキューの既定サイズ。
const defaultMemoryBuffer = 256

// ErrBufferFull はインメモリキューが満杯でメッセージを受け付けられないことを表す。
var ErrBufferFull = errors.New("キューが満杯です")

// MemoryBus はプロセス内で完結するバス。PublisherとSubscriberの両方を実装する。
// Runより前に送信されたメッセージはキューに保持され、Run開始後に配信される。
type MemoryBus struct {
	logger logrus.FieldLogger
	buffer int

	mu       sync.Mutex
	queues   map[string]chan Message
	handlers map[string]Handler
	offsets  map[string]int64
	closed   bool
	state    *runState
}

// NewMemoryBus は新しいMemoryBusを生成する。bufferが0以下の場合は既定値を使う。
func NewMemoryBus(buffer int, logger logrus.FieldLogger) *MemoryBus {
	if buffer <= 0 {
		buffer = defaultMemoryBuffer
	}
	return &MemoryBus{
		logger:   logger,
		buffer:   buffer,
		queues:   make(map[string]chan Message),
		handlers: make(map[string]Handler),
		offsets:  make(map[string]int64),
		state:    newRunState(),
	}
}

// queue はチャネルのキューを返す。存在しなければ生成する。呼び出し側でmuを保持すること。
func (b *MemoryBus) queue(channel string) chan Message {
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan Message, b.buffer)
		b.queues[channel] = q
	}
	return q
}

// Publish はメッセージをキューに積む。キューが満杯の場合はブロックせずErrBufferFullを返す。
func (b *MemoryBus) Publish(ctx context.Context, channel string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	msg.Channel = channel
	msg.Offset = b.offsets[channel]
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	select {
	case b.queue(channel) <- msg:
		b.offsets[channel]++
		return nil
	default:
		return ErrBufferFull
	}
}

// Subscribe はチャネルにハンドラを登録する。
func (b *MemoryBus) Subscribe(channel string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = handler
	b.queue(channel)
	b.state.set(channel, false)
}

// Run はチャネルごとにワーカーを起動し、ctxがキャンセルされるまで配信する。
func (b *MemoryBus) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	type worker struct {
		channel string
		queue   chan Message
		handler Handler
	}
	workers := make([]worker, 0, len(b.handlers))
	for ch, h := range b.handlers {
		workers = append(workers, worker{channel: ch, queue: b.queue(ch), handler: h})
	}
	b.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.state.set(w.channel, true)
			defer b.state.set(w.channel, false)

			logger := b.logger.WithField("channel", w.channel)
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-w.queue:
					deliver(ctx, logger, w.handler, msg)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

// Status はチャネルごとのワーカーの稼働状況を返す。
func (b *MemoryBus) Status() map[string]bool {
	return b.state.snapshot()
}

// Close は以降の送信を拒否する。キューに残ったメッセージは破棄される。
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
