package auth

// IssueKioskTokenRequest キオスク用トークン発行リクエスト
type IssueKioskTokenRequest struct {
	KioskID string
}

// IssueKioskTokenResponse キオスク用トークン発行レスポンス
type IssueKioskTokenResponse struct {
	Token     string
	ExpiresIn int64  // 秒単位
	TokenType string // "Bearer"
}
