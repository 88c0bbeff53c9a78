package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"
)

// defaultProduceTimeout はProduceSyncの既定のタイムアウト。
const defaultProduceTimeout = 5 * time.Second

// KafkaPublisher はfranz-goでKafkaにメッセージを送信するPublisher。
type KafkaPublisher struct {
	client  *kgo.Client
	logger  logrus.FieldLogger
	timeout time.Duration
}

// NewKafkaPublisher は新しいKafkaPublisherを生成する。
// timeoutが0以下の場合は5秒を使う。
func NewKafkaPublisher(brokers []string, clientID string, timeout time.Duration, logger logrus.FieldLogger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("Kafkaクライアントの生成に失敗: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultProduceTimeout
	}
	return &KafkaPublisher{client: client, logger: logger, timeout: timeout}, nil
}

// Publish はレコードを同期的に送信する。ブローカーの確認応答を待ってから戻る。
func (p *KafkaPublisher) Publish(ctx context.Context, channel string, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.ProduceSync(ctx, toRecord(channel, msg)).FirstErr(); err != nil {
		return fmt.Errorf("Kafkaへの送信に失敗 (topic=%s): %w", channel, err)
	}
	return nil
}

// Ping はブローカーへの疎通を確認する。
func (p *KafkaPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("Kafkaへの疎通確認に失敗: %w", err)
	}
	return nil
}

// Close はクライアントを閉じる。
func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}

// toRecord はMessageをKafkaレコードに変換する。
func toRecord(channel string, msg Message) *kgo.Record {
	record := &kgo.Record{
		Topic: channel,
		Key:   msg.Key,
		Value: msg.Value,
	}
	for k, v := range msg.Headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return record
}

// fromRecord はKafkaレコードをMessageに変換する。
func fromRecord(record *kgo.Record) Message {
	headers := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	return Message{
		Channel:   record.Topic,
		Key:       record.Key,
		Value:     record.Value,
		Headers:   headers,
		Partition: record.Partition,
		Offset:    record.Offset,
		Timestamp: record.Timestamp,
	}
}

// KafkaSubscriberConfig はKafkaSubscriberの設定。
type KafkaSubscriberConfig struct {
	// Brokers はシードブローカーのアドレス。
	Brokers []string
	// GroupID はコンシューマーグループID。
	GroupID string
	// ClientID はクライアントID。
	ClientID string
}

// KafkaSubscriber はチャネルごとに独立したKafkaクライアントで購読するSubscriber。
// あるチャネルの処理が遅延しても他のチャネルの処理は止まらない。
type KafkaSubscriber struct {
	config   KafkaSubscriberConfig
	logger   logrus.FieldLogger
	mu       sync.Mutex
	handlers map[string]Handler
	clients  []*kgo.Client
	state    *runState
	// newClient はチャネル1つ分のコンシューマーを生成する。テストで差し替える。
	newClient func(channel string) (*kgo.Client, error)
}

// NewKafkaSubscriber は新しいKafkaSubscriberを生成する。
func NewKafkaSubscriber(config KafkaSubscriberConfig, logger logrus.FieldLogger) *KafkaSubscriber {
	s := &KafkaSubscriber{
		config:   config,
		logger:   logger,
		handlers: make(map[string]Handler),
		state:    newRunState(),
	}
	s.newClient = s.newConsumer
	return s
}

// newConsumer はチャネルを購読するコンシューマーグループのクライアントを生成する。
func (s *KafkaSubscriber) newConsumer(channel string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(s.config.Brokers...),
		kgo.ConsumerGroup(s.config.GroupID),
		kgo.ConsumeTopics(channel),
		kgo.ClientID(s.config.ClientID),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	)
}

// Subscribe はチャネルにハンドラを登録する。
func (s *KafkaSubscriber) Subscribe(channel string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[channel] = handler
	s.state.set(channel, false)
}

// Run はチャネルごとにクライアントを生成し、並行して購読ループを実行する。
// クライアントを1つでも生成できなければ、購読ループを起動せずにエラーを返す。
func (s *KafkaSubscriber) Run(ctx context.Context) error {
	s.mu.Lock()
	handlers := make(map[string]Handler, len(s.handlers))
	for ch, h := range s.handlers {
		handlers[ch] = h
	}
	s.mu.Unlock()

	clients := make(map[string]*kgo.Client, len(handlers))
	for channel := range handlers {
		client, err := s.newClient(channel)
		if err != nil {
			for _, c := range clients {
				c.Close()
			}
			return fmt.Errorf("Kafkaコンシューマーの生成に失敗 (topic=%s): %w", channel, err)
		}
		clients[channel] = client
	}

	s.mu.Lock()
	for _, c := range clients {
		s.clients = append(s.clients, c)
	}
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for channel, handler := range handlers {
		client := clients[channel]
		g.Go(func() error {
			return s.consume(ctx, channel, client, handler)
		})
	}
	return g.Wait()
}

// consume は1チャネル分の購読ループ。
func (s *KafkaSubscriber) consume(ctx context.Context, channel string, client *kgo.Client, handler Handler) error {
	s.state.set(channel, true)
	defer s.state.set(channel, false)

	logger := s.logger.WithField("channel", channel)
	logger.Info("購読を開始します")

	for {
		fetches := client.PollFetches(ctx)
		if ctx.Err() != nil {
			logger.Info("購読を停止しました")
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			logger.WithError(err).WithField("partition", partition).Error("フェッチに失敗")
		})

		commit := s.processRecords(ctx, logger, handler, fetches.Records())
		if len(commit) > 0 {
			if err := client.CommitRecords(ctx, commit...); err != nil {
				logger.WithError(err).Error("オフセットのコミットに失敗")
			}
		}
		client.AllowRebalance()
	}
}

// processRecords はレコードを順に処理し、コミット対象のレコードを返す。
// 失敗したメッセージも破棄扱いとしてコミットするため、後続のレコードは処理を継続する。
func (s *KafkaSubscriber) processRecords(ctx context.Context, logger logrus.FieldLogger, handler Handler, records []*kgo.Record) []*kgo.Record {
	for _, record := range records {
		deliver(ctx, logger, handler, fromRecord(record))
	}
	return records
}

// Status はチャネルごとの購読ループの稼働状況を返す。
func (s *KafkaSubscriber) Status() map[string]bool {
	return s.state.snapshot()
}

// Close はすべてのクライアントを閉じる。
func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		c.Close()
	}
	s.clients = nil
	return nil
}
