package handler

import (
	"errors"
	"net/http"

	authapp "change-server/internal/application/auth"

	"github.com/labstack/echo/v4"
)

// AuthHandler 認証関連ハンドラー
type AuthHandler struct {
	authService *authapp.AuthApplicationService
}

// NewAuthHandler 新しいAuthHandlerを作成
func NewAuthHandler(authService *authapp.AuthApplicationService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// IssueToken キオスク用トークン発行ハンドラー（管理API）
// @Summary キオスク端末用のトークンを発行
// @Description キオスクIDを元にJWT認証トークンを発行します
// @Tags admin
// @Accept json
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param request body IssueTokenRequest true "トークン発行リクエスト"
// @Success 200 {object} IssueTokenResponse "トークン発行成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/auth/token [post]
func (h *AuthHandler) IssueToken(c echo.Context) error {
	var reqBody IssueTokenRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if reqBody.KioskID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "kiosk_id is required")
	}

	resp, err := h.authService.IssueKioskToken(c.Request().Context(), &authapp.IssueKioskTokenRequest{
		KioskID: reqBody.KioskID,
	})
	if err != nil {
		if errors.Is(err, authapp.ErrInvalidKioskID) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}

	return c.JSON(http.StatusOK, IssueTokenResponse{
		Token:     resp.Token,
		ExpiresIn: resp.ExpiresIn,
		TokenType: resp.TokenType,
	})
}
