package handler

import (
	"net/http"

	historyapp "change-server/internal/application/history"

	"github.com/labstack/echo/v4"
)

// HistoryHandler 台帳履歴ハンドラー
type HistoryHandler struct {
	historyService *historyapp.HistoryApplicationService
}

// NewHistoryHandler 新しいHistoryHandlerを作成
func NewHistoryHandler(historyService *historyapp.HistoryApplicationService) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
	}
}

// ListRecords 台帳記録一覧ハンドラー
// @Summary 台帳記録を新しい順に取得
// @Description 払い出し・補充・補正の記録を取得します。フィルタは取得したページ内に適用されます
// @Tags admin
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param limit query int false "取得件数（デフォルト: 50, 最大: 100)" default(50)
// @Param offset query int false "オフセット（デフォルト: 0)" default(0)
// @Param entry_type query string false "種別でフィルタ（dispense/deposit/adjustment）" example(dispense)
// @Param status query string false "状態でフィルタ（completed/partial/failed）" example(partial)
// @Success 200 {object} RecordListResponse "取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Router /admin/dispenses [get]
func (h *HistoryHandler) ListRecords(c echo.Context) error {
	limit, err := queryIntRange(c, "limit", 50, 1, 100)
	if err != nil {
		return err
	}
	offset, err := queryIntRange(c, "offset", 0, 0, int(^uint32(0)>>1))
	if err != nil {
		return err
	}

	resp, err := h.historyService.ListRecords(c.Request().Context(), &historyapp.ListRecordsRequest{
		Limit:     limit,
		Offset:    offset,
		EntryType: c.QueryParam("entry_type"),
		Status:    c.QueryParam("status"),
	})
	if err != nil {
		return err
	}

	records := make([]RecordItem, len(resp.Records))
	for i, rec := range resp.Records {
		records[i] = toRecordItem(rec)
	}

	return c.JSON(http.StatusOK, RecordListResponse{
		Records: records,
		Limit:   resp.Limit,
		Offset:  resp.Offset,
	})
}

// GetRecord 台帳記録取得ハンドラー
// @Summary 台帳記録を取得
// @Tags admin
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param record_id path string true "記録ID"
// @Success 200 {object} RecordItem "取得成功"
// @Failure 404 {object} ErrorResponse "記録が見つからない"
// @Router /admin/dispenses/{record_id} [get]
func (h *HistoryHandler) GetRecord(c echo.Context) error {
	recordID := c.Param("record_id")
	if recordID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "record_id is required")
	}

	rec, err := h.historyService.GetRecord(c.Request().Context(), &historyapp.GetRecordRequest{
		RecordID: recordID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRecordItem(rec))
}
