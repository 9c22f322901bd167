package handler

// ErrorResponse エラーレスポンス
// @Description エラーレスポンス
type ErrorResponse struct {
	Error   string `json:"error" example:"insufficient_reserve"`
	Message string `json:"message" example:"change would dip below reserve threshold"`
}
