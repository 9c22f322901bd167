package handler

import "time"

// OpenWindowRequest 支払い受付開始リクエスト
// @Description 支払い受付開始リクエスト。reference を省略すると採番する
type OpenWindowRequest struct {
	Reference string `json:"reference,omitempty" example:"order-20240101-0001"`
}

// PaymentWindowResponse 支払い受付レスポンス
// @Description 支払い受付の状態と、受付中に投入された硬貨
type PaymentWindowResponse struct {
	Open            bool            `json:"open" example:"true"`
	Reference       string          `json:"reference,omitempty" example:"order-20240101-0001"`
	OpenedAt        *time.Time      `json:"opened_at,omitempty"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
	Coins           map[int64]int64 `json:"coins"`
	Total           int64           `json:"total" example:"6"`
	Unrecorded      int64           `json:"unrecorded" example:"0"`
	AcceptorLive    bool            `json:"acceptor_live" example:"true"`
	AcceptorEnabled bool            `json:"acceptor_enabled" example:"true"`
}
