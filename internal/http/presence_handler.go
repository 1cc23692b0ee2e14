package httpapi

import (
	"net/http"

	"staffhub-presence/internal/service"

	"go.uber.org/zap"
)

// PresenceHandler 在线状态查询 Handler
type PresenceHandler struct {
	presenceService service.PresenceService
	logger          *zap.Logger
}

// NewPresenceHandler 创建在线状态 Handler
func NewPresenceHandler(presenceService service.PresenceService, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{
		presenceService: presenceService,
		logger:          logger,
	}
}

// GetOverview 处理 GET /presence/api/v1/overview?org_id=
func (h *PresenceHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("org_id is required"))
		return
	}

	overview, err := h.presenceService.GetOverview(r.Context(), orgID)
	if err != nil {
		h.logger.Error("Failed to get presence overview",
			zap.String("org_id", orgID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("failed to get presence overview"))
		return
	}

	if overview == nil {
		overview = []service.UserPresence{}
	}
	writeJSON(w, http.StatusOK, Ok(overview))
}

// GetUser 处理 GET /presence/api/v1/user/{id}
func (h *PresenceHandler) GetUser(w http.ResponseWriter, r *http.Request, userID string) {
	up, err := h.presenceService.GetUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get user presence",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("failed to get user presence"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(up))
}

// ClearCache 处理 POST /presence/api/v1/cache/clear
// 丢弃所有本地记录，下一次查询用新数据重新生成
func (h *PresenceHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.presenceService.ClearCache(r.Context()); err != nil {
		h.logger.Error("Failed to clear presence cache", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to clear presence cache"))
		return
	}

	writeJSON(w, http.StatusOK, Ok("cleared"))
}
