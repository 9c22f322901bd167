package handler

import (
	"net/http"

	dispenseapp "change-server/internal/application/change_dispense"
	settingsapp "change-server/internal/application/settings"

	"github.com/labstack/echo/v4"
)

// AdminHandler 管理API（在庫・設定・ハードウェア）ハンドラー
type AdminHandler struct {
	dispenseService *dispenseapp.DispenseApplicationService
	settingsService *settingsapp.SettingsApplicationService
}

// NewAdminHandler 新しいAdminHandlerを作成
func NewAdminHandler(
	dispenseService *dispenseapp.DispenseApplicationService,
	settingsService *settingsapp.SettingsApplicationService,
) *AdminHandler {
	return &AdminHandler{
		dispenseService: dispenseService,
		settingsService: settingsService,
	}
}

// GetInventory 在庫取得ハンドラー
// @Summary 硬貨在庫を取得
// @Tags admin
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Success 200 {object} InventoryResponse "取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 503 {object} ErrorResponse "在庫を取得できない"
// @Router /admin/inventory [get]
func (h *AdminHandler) GetInventory(c echo.Context) error {
	resp, err := h.dispenseService.GetInventory(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toInventoryResponse(resp))
}

// Deposit 硬貨補充ハンドラー
// @Summary 硬貨を補充
// @Description 補充した枚数を在庫に加算し、台帳に deposit として記録します
// @Tags admin
// @Accept json
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param request body DepositRequest true "補充リクエスト"
// @Success 200 {object} LedgerResponse "補充成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 422 {object} ErrorResponse "枚数が不正"
// @Router /admin/inventory/deposit [post]
func (h *AdminHandler) Deposit(c echo.Context) error {
	var reqBody DepositRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.dispenseService.Deposit(c.Request().Context(), &dispenseapp.DepositRequest{
		Denomination: reqBody.Denomination,
		Count:        reqBody.Count,
		Reference:    reqBody.Reference,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toLedgerResponse(resp))
}

// Adjust 在庫補正ハンドラー
// @Summary 在庫を補正
// @Description 実在庫との差分を加減し、理由とともに台帳に adjustment として記録します
// @Tags admin
// @Accept json
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param request body AdjustRequest true "補正リクエスト"
// @Success 200 {object} LedgerResponse "補正成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 422 {object} ErrorResponse "在庫が負になる"
// @Router /admin/inventory/adjust [post]
func (h *AdminHandler) Adjust(c echo.Context) error {
	var reqBody AdjustRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.dispenseService.Adjust(c.Request().Context(), &dispenseapp.AdjustRequest{
		Denomination: reqBody.Denomination,
		Delta:        reqBody.Delta,
		Reason:       reqBody.Reason,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toLedgerResponse(resp))
}

// GetSettings 設定取得ハンドラー
// @Summary おつり設定を取得
// @Tags admin
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Success 200 {object} SettingsResponse "取得成功"
// @Router /admin/settings [get]
func (h *AdminHandler) GetSettings(c echo.Context) error {
	resp := h.settingsService.Get(c.Request().Context())
	return c.JSON(http.StatusOK, SettingsResponse{
		MaxChangeLimit: resp.MaxChangeLimit,
		Reserves:       resp.Reserves,
	})
}

// UpdateSettings 設定更新ハンドラー
// @Summary おつり設定を更新
// @Description おつり上限と額面ごとの予備枚数を更新します。変更は保存され、次回起動時にも適用されます
// @Tags admin
// @Accept json
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param request body UpdateSettingsRequest true "設定更新リクエスト"
// @Success 200 {object} SettingsResponse "更新成功"
// @Failure 400 {object} ErrorResponse "不正な設定"
// @Router /admin/settings [put]
func (h *AdminHandler) UpdateSettings(c echo.Context) error {
	var reqBody UpdateSettingsRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.settingsService.Update(c.Request().Context(), &settingsapp.UpdateSettingsRequest{
		MaxChangeLimit: reqBody.MaxChangeLimit,
		Reserves:       reqBody.Reserves,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SettingsResponse{
		MaxChangeLimit: resp.MaxChangeLimit,
		Reserves:       resp.Reserves,
	})
}

// GetHardwareStatus ハードウェア状態取得ハンドラー
// @Summary ハードウェア接続状態を取得
// @Tags admin
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Success 200 {object} HardwareStatusResponse "取得成功"
// @Router /admin/hardware [get]
func (h *AdminHandler) GetHardwareStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, toHardwareStatusResponse(h.dispenseService.HardwareStatus(c.Request().Context())))
}

// Reconnect ハードウェア再接続ハンドラー
// @Summary ハードウェアに再接続
// @Description ホッパーとの接続を閉じて開き直します。払い出し中の場合は完了を待ちます
// @Tags admin
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Success 200 {object} HardwareStatusResponse "再接続成功"
// @Failure 503 {object} ErrorResponse "ハードウェアに接続できない"
// @Router /admin/hardware/reconnect [post]
func (h *AdminHandler) Reconnect(c echo.Context) error {
	resp, err := h.dispenseService.Reconnect(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toHardwareStatusResponse(resp))
}

func toInventoryResponse(resp *dispenseapp.InventoryResponse) InventoryResponse {
	return InventoryResponse{
		Counts:     resp.Counts,
		TotalValue: resp.TotalValue,
	}
}

func toLedgerResponse(resp *dispenseapp.LedgerResponse) LedgerResponse {
	return LedgerResponse{
		RecordID:  resp.RecordID,
		Inventory: toInventoryResponse(&resp.Inventory),
	}
}

func toHardwareStatusResponse(resp *dispenseapp.HardwareStatusResponse) HardwareStatusResponse {
	return HardwareStatusResponse{
		Live:       resp.Live,
		Generation: resp.Generation,
		Hoppers:    resp.Hoppers,
	}
}
