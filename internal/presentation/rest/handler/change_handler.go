package handler

import (
	"net/http"

	dispenseapp "change-server/internal/application/change_dispense"
	paymentapp "change-server/internal/application/payment"

	"github.com/labstack/echo/v4"
)

// ChangeHandler おつり払い出しハンドラー
type ChangeHandler struct {
	paymentService  *paymentapp.PaymentApplicationService
	dispenseService *dispenseapp.DispenseApplicationService
}

// NewChangeHandler 新しいChangeHandlerを作成
func NewChangeHandler(
	paymentService *paymentapp.PaymentApplicationService,
	dispenseService *dispenseapp.DispenseApplicationService,
) *ChangeHandler {
	return &ChangeHandler{
		paymentService:  paymentService,
		dispenseService: dispenseService,
	}
}

// GetStatus おつり払い出し能力取得ハンドラー
// @Summary おつり払い出し能力を取得
// @Description 予備枚数を考慮して払い出せる最大のおつりと在庫を返します
// @Tags change
// @Produce json
// @Security Bearer
// @Success 200 {object} ChangeStatusResponse "取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 503 {object} ErrorResponse "在庫を取得できない"
// @Router /change/status [get]
func (h *ChangeHandler) GetStatus(c echo.Context) error {
	resp, err := h.paymentService.ChangeStatus(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ChangeStatusResponse{
		Level:       resp.Level,
		MaxChange:   resp.MaxChange,
		Message:     resp.Message,
		Inventory:   resp.Inventory,
		Dispensable: resp.Dispensable,
		Reserves:    resp.Reserves,
	})
}

// Dispense おつり払い出しハンドラー
// @Summary おつりを払い出す
// @Description 内訳を計算してホッパーから硬貨を払い出し、センサーで確認できた枚数だけ在庫から減らします
// @Tags change
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body DispenseChangeRequest true "払い出しリクエスト"
// @Success 200 {object} DispenseChangeResponse "払い出し結果"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 422 {object} ErrorResponse "おつりを払い出せない"
// @Failure 503 {object} ErrorResponse "ハードウェアまたは在庫が利用できない"
// @Router /change/dispense [post]
func (h *ChangeHandler) Dispense(c echo.Context) error {
	var reqBody DispenseChangeRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.dispenseService.DispenseChange(c.Request().Context(), &dispenseapp.DispenseChangeRequest{
		Amount:    reqBody.Amount,
		Reference: reqBody.Reference,
	})
	if err != nil {
		return err
	}

	failures := make([]HopperFailureItem, len(resp.Failures))
	for i, f := range resp.Failures {
		failures[i] = HopperFailureItem{
			Denomination: f.Denomination,
			Requested:    f.Requested,
			Confirmed:    f.Confirmed,
			Reason:       f.Reason,
			Message:      f.Message,
		}
	}

	return c.JSON(http.StatusOK, DispenseChangeResponse{
		RecordID:         resp.RecordID,
		Success:          resp.Success,
		Status:           resp.Status,
		AmountRequested:  resp.AmountRequested,
		AmountDispensed:  resp.AmountDispensed,
		Requested:        resp.Requested,
		Dispensed:        resp.Dispensed,
		Failures:         failures,
		InventoryUpdated: resp.InventoryUpdated,
		Message:          resp.Message,
	})
}
