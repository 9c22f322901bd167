package handler

import (
	"net/http"
	"time"

	acceptanceapp "change-server/internal/application/coin_acceptance"

	"github.com/labstack/echo/v4"
)

// AcceptanceHandler 支払い受付ハンドラー
type AcceptanceHandler struct {
	acceptanceService *acceptanceapp.AcceptanceApplicationService
}

// NewAcceptanceHandler 新しいAcceptanceHandlerを作成
func NewAcceptanceHandler(acceptanceService *acceptanceapp.AcceptanceApplicationService) *AcceptanceHandler {
	return &AcceptanceHandler{acceptanceService: acceptanceService}
}

// OpenWindow 支払い受付開始ハンドラー
// @Summary 支払い受付を開始
// @Description 硬貨投入口のインヒビットを解除し、投入された硬貨をこの受付に計上します
// @Tags payments
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body OpenWindowRequest false "受付開始リクエスト"
// @Success 200 {object} PaymentWindowResponse "受付中"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 409 {object} ErrorResponse "別の受付が開いている"
// @Failure 503 {object} ErrorResponse "投入口に接続できない"
// @Router /payments/window [post]
func (h *AcceptanceHandler) OpenWindow(c echo.Context) error {
	var reqBody OpenWindowRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&reqBody); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}

	resp, err := h.acceptanceService.OpenWindow(c.Request().Context(), &acceptanceapp.OpenWindowRequest{
		Reference: reqBody.Reference,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPaymentWindowResponse(resp))
}

// GetWindow 支払い受付状態取得ハンドラー
// @Summary 支払い受付の状態を取得
// @Tags payments
// @Produce json
// @Security Bearer
// @Success 200 {object} PaymentWindowResponse "取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /payments/window [get]
func (h *AcceptanceHandler) GetWindow(c echo.Context) error {
	return c.JSON(http.StatusOK, toPaymentWindowResponse(h.acceptanceService.Window(c.Request().Context())))
}

// CloseWindow 支払い受付終了ハンドラー
// @Summary 支払い受付を終了
// @Description 硬貨投入口をインヒビットにして、受付中に投入された硬貨の合計を返します
// @Tags payments
// @Produce json
// @Security Bearer
// @Success 200 {object} PaymentWindowResponse "受付終了"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 409 {object} ErrorResponse "受付が開いていない"
// @Router /payments/window [delete]
func (h *AcceptanceHandler) CloseWindow(c echo.Context) error {
	resp, err := h.acceptanceService.CloseWindow(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPaymentWindowResponse(resp))
}

func toPaymentWindowResponse(resp *acceptanceapp.WindowResponse) PaymentWindowResponse {
	out := PaymentWindowResponse{
		Open:            resp.Open,
		Reference:       resp.Reference,
		Coins:           resp.Coins,
		Total:           resp.Total,
		Unrecorded:      resp.Unrecorded,
		AcceptorLive:    resp.AcceptorLive,
		AcceptorEnabled: resp.AcceptorEnabled,
	}
	out.OpenedAt = timeOrNil(resp.OpenedAt)
	out.ClosedAt = timeOrNil(resp.ClosedAt)
	return out
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
