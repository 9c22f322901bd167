package handler

// IssueTokenRequest キオスク用トークン発行リクエスト
// @Description キオスク用トークン発行リクエスト
type IssueTokenRequest struct {
	KioskID string `json:"kiosk_id" example:"kiosk-01"`
}

// IssueTokenResponse キオスク用トークン発行レスポンス
// @Description キオスク用トークン発行レスポンス
type IssueTokenResponse struct {
	Token     string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJraW9za19pZCI6Imtpb3NrLTAxIn0.signature"`
	ExpiresIn int64  `json:"expires_in" example:"86400"`
	TokenType string `json:"token_type" example:"Bearer"`
}
