package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"staffhub-presence/internal/config"
	"staffhub-presence/internal/domain"

	mqttcommon "staffhub-presence/common/mqtt"
	rediscommon "staffhub-presence/common/redis"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MQTTConsumer MQTT信号消费者
//
// 桌面端/浏览器代理把原始信号发到 presence/{device_id}/signal，
// 这里标准化为 SignalEvent 后发布到 Redis Streams，由下游
// StreamConsumer 折叠进在线状态存储器。
type MQTTConsumer struct {
	config      *config.Config
	mqttClient  *mqttcommon.Client
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqttcommon.Client,
	redisClient *redis.Client,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:      cfg,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		logger:      logger,
	}
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.mqttClient.Subscribe(c.config.Presence.Topics.Signal, 1, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to signal topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.config.Presence.Topics.Signal),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(c.config.Presence.Topics.Signal); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理MQTT消息
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	// 1. 从主题中提取设备标识符
	// 主题格式: presence/{device_id}/signal
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	deviceID := parts[1]

	// 2. 解析信号
	var ev domain.SignalEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.logger.Error("Failed to unmarshal signal payload",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal signal: %w", err)
	}

	// 3. 补齐标准化字段
	if ev.DeviceID == "" {
		ev.DeviceID = deviceID
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.ReportedAt.IsZero() {
		ev.ReportedAt = time.Now()
	}
	if ev.UserID == "" {
		c.logger.Warn("Signal without user_id dropped",
			zap.String("topic", topic),
			zap.String("device_id", ev.DeviceID),
		)
		return fmt.Errorf("signal missing user_id")
	}

	// 4. 发布到 Redis Streams
	streamName := c.config.Presence.Stream.Name
	streamID, err := rediscommon.PublishJSONToStream(context.Background(), c.redisClient, streamName, ev)
	if err != nil {
		c.logger.Error("Failed to publish signal to Redis Streams",
			zap.String("stream", streamName),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	c.logger.Debug("Published signal to Redis Streams",
		zap.String("user_id", ev.UserID),
		zap.String("kind", string(ev.Kind)),
		zap.String("stream_id", streamID),
	)

	return nil
}
