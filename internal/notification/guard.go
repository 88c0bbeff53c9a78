package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/blogpress/pkg/event"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Guard は同じマイルストーンの通知を一定期間に1回へ抑える。
type Guard interface {
	// Allow は送信してよければtrueを返す。判定できない場合もtrueを返す。
	Allow(ctx context.Context, s event.MilestoneSignal) bool
}

// NoopGuard は常に送信を許可するGuard。重複ガードを無効にしたときに使う。
type NoopGuard struct{}

// Allow は常にtrueを返す。
func (NoopGuard) Allow(context.Context, event.MilestoneSignal) bool { return true }

// guardKeyPrefix はRedisに保存するキーの接頭辞。
const guardKeyPrefix = "blogpress:milestone"

// RedisGuard はRedisのSET NXで (blogId, milestoneType, count) の送信済みを記録するGuard。
type RedisGuard struct {
	client *redis.Client
	window time.Duration
	logger logrus.FieldLogger
}

var _ Guard = (*RedisGuard)(nil)

// NewRedisGuard は新しいRedisGuardを生成する。windowは同じマイルストーンを抑止する期間。
func NewRedisGuard(client *redis.Client, window time.Duration, logger logrus.FieldLogger) *RedisGuard {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &RedisGuard{
		client: client,
		window: window,
		logger: logger,
	}
}

// Allow は初めて見るマイルストーンであればtrueを返す。
// Redisに到達できない場合は通知を止めないようにtrueを返す。
func (g *RedisGuard) Allow(ctx context.Context, s event.MilestoneSignal) bool {
	key := guardKey(s)
	ok, err := g.client.SetNX(ctx, key, 1, g.window).Result()
	if err != nil {
		g.logger.WithError(err).WithField("key", key).Warn("重複ガードの確認に失敗したため送信を続行します")
		return true
	}
	return ok
}

// Close はRedisとの接続を閉じる。
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

func guardKey(s event.MilestoneSignal) string {
	return fmt.Sprintf("%s:%s:%s:%d", guardKeyPrefix, s.BlogID, s.MilestoneType, s.Count)
}
