package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"staffhub-presence/internal/service"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// PresenceExportHeader 在线状态导出表头
var PresenceExportHeader = []string{
	"User ID",
	"State",
	"Last Activity",
	"Battery Level",
	"Charging",
	"Checked In",
	"Simulated",
	"Export Time",
}

// ExportHandler 在线状态报表导出 Handler
type ExportHandler struct {
	presenceService service.PresenceService
	logger          *zap.Logger
}

// NewExportHandler 创建导出 Handler
func NewExportHandler(presenceService service.PresenceService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{
		presenceService: presenceService,
		logger:          logger,
	}
}

// Export 处理 GET /presence/api/v1/export?org_id=
// 返回组织全员在线状态的 .xlsx 文件
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("org_id is required"))
		return
	}

	overview, err := h.presenceService.GetOverview(r.Context(), orgID)
	if err != nil {
		h.logger.Error("Failed to build presence export",
			zap.String("org_id", orgID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("failed to build presence export"))
		return
	}

	data, err := GeneratePresenceExport(overview)
	if err != nil {
		h.logger.Error("Failed to generate presence export file", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export file"))
		return
	}

	filename := fmt.Sprintf("presence-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GeneratePresenceExport 生成在线状态导出 Excel 文件
func GeneratePresenceExport(overview []service.UserPresence) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	sheetName := "Presence"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 写表头
	for i, header := range PresenceExportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	// 写数据行
	exportTime := time.Now().Format(time.RFC3339)
	for rowIdx, up := range overview {
		battery := ""
		if up.BatteryLevel != nil {
			battery = fmt.Sprintf("%d%%", *up.BatteryLevel)
		}
		charging := ""
		if up.IsCharging != nil {
			charging = fmt.Sprintf("%t", *up.IsCharging)
		}

		values := []any{
			up.UserID,
			string(up.State),
			up.LastActivity.Format(time.RFC3339),
			battery,
			charging,
			up.IsCheckedIn,
			up.Simulated,
			exportTime,
		}
		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to write row %d: %w", rowIdx+2, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel file: %w", err)
	}

	return buf.Bytes(), nil
}
