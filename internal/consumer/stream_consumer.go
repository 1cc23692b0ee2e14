package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"staffhub-presence/internal/config"
	"staffhub-presence/internal/domain"
	"staffhub-presence/internal/presence"

	rediscommon "staffhub-presence/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Metrics 监控指标
type Metrics struct {
	mu sync.RWMutex

	// 消息处理统计
	MessagesProcessed int64 // 处理的消息总数
	MessagesSucceeded int64 // 成功处理的消息数
	MessagesFailed    int64 // 处理失败的消息数

	// 错误分类统计
	ErrorsParse   int64 // 解析错误
	ErrorsProcess int64 // 信号折叠失败

	// 性能指标
	TotalProcessingTime time.Duration // 总处理时间
	LastProcessTime     time.Time     // 最后处理时间

	// 启动时间
	StartTime time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		MessagesProcessed:   m.MessagesProcessed,
		MessagesSucceeded:   m.MessagesSucceeded,
		MessagesFailed:      m.MessagesFailed,
		ErrorsParse:         m.ErrorsParse,
		ErrorsProcess:       m.ErrorsProcess,
		TotalProcessingTime: m.TotalProcessingTime,
		LastProcessTime:     m.LastProcessTime,
		StartTime:           m.StartTime,
	}
}

// incrementSucceeded 增加成功计数
func (m *Metrics) incrementSucceeded(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesProcessed++
	m.MessagesSucceeded++
	m.TotalProcessingTime += duration
	m.LastProcessTime = time.Now()
}

// incrementFailed 增加失败计数
func (m *Metrics) incrementFailed(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesProcessed++
	m.MessagesFailed++
	switch errorType {
	case "parse":
		m.ErrorsParse++
	case "process":
		m.ErrorsProcess++
	}
}

// StreamConsumer Redis Streams 信号消费者
//
// 从消费者组读取标准化信号，交给 Processor 折叠进存储器。
// 瞬时读取错误按退避重试，单条消息失败不阻塞后续消息。
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	processor   *presence.Processor
	logger      *zap.Logger
	metrics     *Metrics
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	processor *presence.Processor,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		processor:   processor,
		logger:      logger,
		metrics:     &Metrics{StartTime: time.Now()},
	}
}

// Metrics 返回指标快照
func (c *StreamConsumer) Metrics() Metrics {
	return c.metrics.GetSnapshot()
}

// Start 启动消费循环（阻塞直到 ctx 取消）
func (c *StreamConsumer) Start(ctx context.Context) error {
	stream := c.config.Presence.Stream.Name
	group := c.config.Presence.Stream.ConsumerGroup

	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, stream, group); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", stream),
		zap.String("group", group),
	)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stream consumer stopped")
			return nil
		default:
		}

		messages, err := rediscommon.ReadFromStream(
			ctx,
			c.redisClient,
			stream,
			group,
			c.config.Presence.Stream.ConsumerName,
			int64(c.config.Presence.Stream.BatchSize),
		)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to read from stream, backing off",
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			c.handleMessage(ctx, stream, group, msg)
		}
	}
}

// handleMessage 处理单条流消息
func (c *StreamConsumer) handleMessage(ctx context.Context, stream, group string, msg rediscommon.StreamMessage) {
	start := time.Now()

	data, ok := msg.Values["data"].(string)
	if !ok {
		c.metrics.incrementFailed("parse")
		c.logger.Warn("Stream message without data field",
			zap.String("stream_id", msg.ID),
		)
		c.ack(ctx, stream, group, msg.ID)
		return
	}

	var ev domain.SignalEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		c.metrics.incrementFailed("parse")
		c.logger.Warn("Failed to unmarshal signal event",
			zap.String("stream_id", msg.ID),
			zap.Error(err),
		)
		c.ack(ctx, stream, group, msg.ID)
		return
	}

	if err := c.processor.Process(ctx, ev); err != nil {
		c.metrics.incrementFailed("process")
		c.logger.Warn("Failed to process signal event",
			zap.String("stream_id", msg.ID),
			zap.String("user_id", ev.UserID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
		c.ack(ctx, stream, group, msg.ID)
		return
	}

	c.metrics.incrementSucceeded(time.Since(start))
	c.ack(ctx, stream, group, msg.ID)
}

// ack 确认消息（失败只记日志）
func (c *StreamConsumer) ack(ctx context.Context, stream, group, id string) {
	if err := rediscommon.AckMessage(ctx, c.redisClient, stream, group, id); err != nil {
		c.logger.Warn("Failed to ack stream message",
			zap.String("stream_id", id),
			zap.Error(err),
		)
	}
}
