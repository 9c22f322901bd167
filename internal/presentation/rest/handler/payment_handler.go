package handler

import (
	"net/http"

	paymentapp "change-server/internal/application/payment"

	"github.com/labstack/echo/v4"
)

// PaymentHandler 支払額の提案・検証ハンドラー
type PaymentHandler struct {
	paymentService *paymentapp.PaymentApplicationService
}

// NewPaymentHandler 新しいPaymentHandlerを作成
func NewPaymentHandler(paymentService *paymentapp.PaymentApplicationService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// SuggestPayments 支払額提案ハンドラー
// @Summary おつりを出せる支払額の候補を取得
// @Description 現在の硬貨在庫で払い出せる支払額を、おつりの少ない順に返します
// @Tags payment
// @Produce json
// @Security Bearer
// @Param total_cost query int true "合計金額" example(47)
// @Success 200 {object} SuggestPaymentsResponse "候補取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 503 {object} ErrorResponse "在庫を取得できない"
// @Router /payments/suggestions [get]
func (h *PaymentHandler) SuggestPayments(c echo.Context) error {
	totalCost, err := queryInt64(c, "total_cost")
	if err != nil {
		return err
	}

	resp, err := h.paymentService.SuggestPayments(c.Request().Context(), &paymentapp.SuggestPaymentsRequest{
		TotalCost: totalCost,
	})
	if err != nil {
		return err
	}

	items := make([]SuggestionItem, len(resp.Suggestions))
	for i, s := range resp.Suggestions {
		items[i] = toSuggestionItem(s)
	}

	return c.JSON(http.StatusOK, SuggestPaymentsResponse{
		TotalCost:   resp.TotalCost,
		Suggestions: items,
	})
}

// ValidatePayment 支払額検証ハンドラー
// @Summary 支払額を受け付けられるか検証
// @Description 支払額に対するおつりを現在の在庫で払い出せるかを判定します。受け付けない場合も200で理由を返します
// @Tags payment
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body ValidatePaymentRequest true "支払額検証リクエスト"
// @Success 200 {object} ValidatePaymentResponse "検証結果"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /payments/validate [post]
func (h *PaymentHandler) ValidatePayment(c echo.Context) error {
	var reqBody ValidatePaymentRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.paymentService.ValidatePayment(c.Request().Context(), &paymentapp.ValidatePaymentRequest{
		TotalCost:     reqBody.TotalCost,
		PaymentAmount: reqBody.PaymentAmount,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ValidatePaymentResponse{
		Valid:     resp.Valid,
		Change:    resp.Change,
		Reason:    resp.Reason,
		Message:   resp.Message,
		Breakdown: resp.Breakdown,
	})
}

// BestPayment 最大支払額ハンドラー
// @Summary 受け付けられる最大の支払額を取得
// @Description 現在のおつり払い出し能力の範囲で受け付けられる最大の支払額を返します
// @Tags payment
// @Produce json
// @Security Bearer
// @Param total_cost query int true "合計金額" example(25)
// @Success 200 {object} BestPaymentResponse "取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /payments/best [get]
func (h *PaymentHandler) BestPayment(c echo.Context) error {
	totalCost, err := queryInt64(c, "total_cost")
	if err != nil {
		return err
	}

	resp, err := h.paymentService.BestPayment(c.Request().Context(), &paymentapp.BestPaymentRequest{
		TotalCost: totalCost,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, BestPaymentResponse{
		TotalCost:  resp.TotalCost,
		Suggestion: toSuggestionItem(resp.Suggestion),
	})
}
