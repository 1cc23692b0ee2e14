package consumer

import (
	"context"

	"staffhub-presence/internal/domain"

	rediscommon "staffhub-presence/common/redis"

	"github.com/go-redis/redis/v8"
)

// StreamPublisher 把标准化信号发布到 Redis Streams
// HTTP 上报路径与 MQTT 路径共用同一条流，下游处理完全一致
type StreamPublisher struct {
	redisClient *redis.Client
	stream      string
}

// NewStreamPublisher 创建信号发布器
func NewStreamPublisher(redisClient *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{
		redisClient: redisClient,
		stream:      stream,
	}
}

// Publish 发布一条信号，返回流消息 ID
func (p *StreamPublisher) Publish(ctx context.Context, ev domain.SignalEvent) (string, error) {
	return rediscommon.PublishJSONToStream(ctx, p.redisClient, p.stream, ev)
}
