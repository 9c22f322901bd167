package coin_acceptance

import "time"

// OpenWindowRequest 支払い受付開始リクエスト
type OpenWindowRequest struct {
	Reference string // キオスク側の取引ID（空なら採番する）
}

// WindowResponse 支払い受付の状態
type WindowResponse struct {
	Open      bool
	Reference string
	OpenedAt  time.Time
	ClosedAt  time.Time
	// Coins 受付中に投入された額面ごとの枚数
	Coins map[int64]int64
	Total int64
	// Unrecorded 在庫に反映できなかった枚数
	Unrecorded      int64
	AcceptorLive    bool
	AcceptorEnabled bool
}
