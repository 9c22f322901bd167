package handler

// ChangeStatusResponse おつり払い出し能力レスポンス
// @Description おつり払い出し能力レスポンス
type ChangeStatusResponse struct {
	Level       string          `json:"level" example:"available"`
	MaxChange   int64           `json:"max_change" example:"50"`
	Message     string          `json:"message" example:"Change available up to 50"`
	Inventory   map[int64]int64 `json:"inventory"`
	Dispensable map[int64]int64 `json:"dispensable"`
	Reserves    map[int64]int64 `json:"reserves"`
}

// DispenseChangeRequest おつり払い出しリクエスト
// @Description おつり払い出しリクエスト
type DispenseChangeRequest struct {
	Amount    int64  `json:"amount" example:"12"`
	Reference string `json:"reference,omitempty" example:"order-20240101-0001"`
}

// HopperFailureItem 額面ごとの払い出し失敗
// @Description 額面ごとの払い出し失敗
type HopperFailureItem struct {
	Denomination int64  `json:"denomination" example:"1"`
	Requested    int64  `json:"requested" example:"2"`
	Confirmed    int64  `json:"confirmed" example:"1"`
	Reason       string `json:"reason" example:"jam"`
	Message      string `json:"message" example:"hopper A jammed"`
}

// DispenseChangeResponse おつり払い出しレスポンス
// @Description おつり払い出しレスポンス。部分的な払い出しも200で返し success=false とする
type DispenseChangeResponse struct {
	RecordID         string              `json:"record_id,omitempty" example:"9b2f6c1e-8f7d-4c1a-9d55-2b1d9f0e7a10"`
	Success          bool                `json:"success" example:"true"`
	Status           string              `json:"status" example:"completed"`
	AmountRequested  int64               `json:"amount_requested" example:"12"`
	AmountDispensed  int64               `json:"amount_dispensed" example:"12"`
	Requested        map[int64]int64     `json:"requested"`
	Dispensed        map[int64]int64     `json:"dispensed"`
	Failures         []HopperFailureItem `json:"failures,omitempty"`
	InventoryUpdated bool                `json:"inventory_updated" example:"true"`
	Message          string              `json:"message" example:"Change dispensed"`
}
