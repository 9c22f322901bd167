package handler

import (
	"context"
	"net/http"
	"time"

	dispenseapp "change-server/internal/application/change_dispense"

	"github.com/labstack/echo/v4"
)

// DatabaseChecker データベースの疎通確認
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthResponse ヘルスチェックレスポンス
// @Description ヘルスチェックレスポンス
type HealthResponse struct {
	Status   string                 `json:"status" example:"ok"`
	Database string                 `json:"database" example:"ok"`
	Hardware HardwareStatusResponse `json:"hardware"`
}

// HealthHandler ヘルスチェックハンドラー
type HealthHandler struct {
	db              DatabaseChecker
	dispenseService *dispenseapp.DispenseApplicationService
}

// NewHealthHandler 新しいHealthHandlerを作成
func NewHealthHandler(db DatabaseChecker, dispenseService *dispenseapp.DispenseApplicationService) *HealthHandler {
	return &HealthHandler{
		db:              db,
		dispenseService: dispenseService,
	}
}

// Health ヘルスチェックハンドラー
// @Summary ヘルスチェック
// @Description DBに到達できない場合は503を返します。ハードウェアが未接続でも払い出し時に再接続するため degraded として200を返します
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse "稼働中"
// @Failure 503 {object} HealthResponse "DBに接続できない"
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:   "ok",
		Database: "ok",
		Hardware: toHardwareStatusResponse(h.dispenseService.HardwareStatus(ctx)),
	}

	if err := h.db.HealthCheck(ctx); err != nil {
		resp.Status = "unavailable"
		resp.Database = "unreachable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	if !resp.Hardware.Live {
		resp.Status = "degraded"
	}
	return c.JSON(http.StatusOK, resp)
}
