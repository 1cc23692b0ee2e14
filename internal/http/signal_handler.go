package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"staffhub-presence/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SignalPublisher 信号发布接口（Redis Streams；测试中可替换）
type SignalPublisher interface {
	Publish(ctx context.Context, ev domain.SignalEvent) (string, error)
}

// SignalHandler 浏览器信号上报 Handler
// 不能走 MQTT 的浏览器客户端用 HTTP 上报，标准化后进同一条流
type SignalHandler struct {
	publisher SignalPublisher
	logger    *zap.Logger
}

// NewSignalHandler 创建信号上报 Handler
func NewSignalHandler(publisher SignalPublisher, logger *zap.Logger) *SignalHandler {
	return &SignalHandler{
		publisher: publisher,
		logger:    logger,
	}
}

// PostSignal 处理 POST /presence/api/v1/signal
func (h *SignalHandler) PostSignal(w http.ResponseWriter, r *http.Request) {
	var ev domain.SignalEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid signal payload"))
		return
	}

	if ev.UserID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("user_id is required"))
		return
	}
	if ev.Kind == "" {
		writeJSON(w, http.StatusBadRequest, Fail("kind is required"))
		return
	}

	// 补齐标准化字段（与 MQTT 路径一致）
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.ReportedAt.IsZero() {
		ev.ReportedAt = time.Now()
	}

	streamID, err := h.publisher.Publish(r.Context(), ev)
	if err != nil {
		h.logger.Error("Failed to publish signal",
			zap.String("user_id", ev.UserID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("failed to publish signal"))
		return
	}

	writeJSON(w, http.StatusAccepted, Ok(map[string]string{
		"event_id":  ev.EventID,
		"stream_id": streamID,
	}))
}
