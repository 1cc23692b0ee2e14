package service

import (
	"context"
	"fmt"
	"time"

	"staffhub-presence/internal/domain"
	"staffhub-presence/internal/presence"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookNotifier 在线状态快照推送器
//
// 每轮监控循环结束后把全量快照 POST 到配置的 webhook 地址。
// 请求走统一的 resty 重试包装（指数退避）；最终失败只记日志。
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// snapshotPayload webhook 请求体
type snapshotPayload struct {
	PushedAt time.Time               `json:"pushed_at"`
	Records  []domain.PresenceRecord `json:"records"`
}

// NewWebhookNotifier 创建快照推送器
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

var _ presence.SnapshotNotifier = (*WebhookNotifier)(nil)

// PushSnapshot 推送一次全量快照
func (n *WebhookNotifier) PushSnapshot(ctx context.Context, records []domain.PresenceRecord) error {
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(snapshotPayload{PushedAt: time.Now(), Records: records}).
		Post(n.url)

	if err != nil {
		return fmt.Errorf("failed to push presence snapshot: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("presence snapshot rejected: status %d", resp.StatusCode())
	}

	n.logger.Debug("Pushed presence snapshot",
		zap.Int("records", len(records)),
		zap.Int("status_code", resp.StatusCode()),
	)
	return nil
}
