package handler

// InventoryResponse 硬貨在庫レスポンス
// @Description 硬貨在庫レスポンス
type InventoryResponse struct {
	Counts     map[int64]int64 `json:"counts"`
	TotalValue int64           `json:"total_value" example:"1250"`
}

// DepositRequest 硬貨補充リクエスト
// @Description 硬貨補充リクエスト
type DepositRequest struct {
	Denomination int64  `json:"denomination" example:"5"`
	Count        int64  `json:"count" example:"100"`
	Reference    string `json:"reference,omitempty" example:"refill-2024-01-01"`
}

// AdjustRequest 在庫補正リクエスト
// @Description 在庫補正リクエスト。delta が負の場合は在庫を減らす
type AdjustRequest struct {
	Denomination int64  `json:"denomination" example:"1"`
	Delta        int64  `json:"delta" example:"-3"`
	Reason       string `json:"reason" example:"manual count after jam"`
}

// LedgerResponse 在庫変更レスポンス
// @Description 在庫変更レスポンス
type LedgerResponse struct {
	RecordID  string            `json:"record_id" example:"9b2f6c1e-8f7d-4c1a-9d55-2b1d9f0e7a10"`
	Inventory InventoryResponse `json:"inventory"`
}

// SettingsResponse おつり設定レスポンス
// @Description おつり設定レスポンス
type SettingsResponse struct {
	MaxChangeLimit int64           `json:"max_change_limit" example:"50"`
	Reserves       map[int64]int64 `json:"reserves"`
}

// UpdateSettingsRequest おつり設定更新リクエスト
// @Description おつり設定更新リクエスト。省略した項目は変更しない
type UpdateSettingsRequest struct {
	MaxChangeLimit *int64          `json:"max_change_limit,omitempty" example:"100"`
	Reserves       map[int64]int64 `json:"reserves,omitempty"`
}

// HardwareStatusResponse ハードウェア接続状態レスポンス
// @Description ハードウェア接続状態レスポンス
type HardwareStatusResponse struct {
	Live       bool   `json:"live" example:"true"`
	Generation uint64 `json:"generation" example:"2"`
	Hoppers    int    `json:"hoppers" example:"4"`
}
