package change_dispense

// DispenseChangeRequest おつり払い出しリクエスト
type DispenseChangeRequest struct {
	Amount    int64
	Reference string // キオスク側の取引ID（任意）
}

// HopperFailure 額面ごとの払い出し失敗
type HopperFailure struct {
	Denomination int64
	Requested    int64
	Confirmed    int64
	Reason       string // "jam", "aborted", "hopper_not_configured", "hardware_unavailable"
	Message      string
}

// DispenseChangeResponse おつり払い出しレスポンス
type DispenseChangeResponse struct {
	RecordID        string
	Success         bool
	Status          string
	AmountRequested int64
	AmountDispensed int64
	Requested       map[int64]int64
	Dispensed       map[int64]int64
	Failures        []HopperFailure
	// InventoryUpdated 確定枚数を在庫に反映できたか
	InventoryUpdated bool
	Message          string
}

// InventoryResponse 在庫レスポンス
type InventoryResponse struct {
	Counts     map[int64]int64
	TotalValue int64
}

// DepositRequest 硬貨補充リクエスト
type DepositRequest struct {
	Denomination int64
	Count        int64
	Reference    string
}

// AdjustRequest 在庫補正リクエスト
type AdjustRequest struct {
	Denomination int64
	Delta        int64 // 負の値で減らす
	Reason       string
}

// LedgerResponse 在庫変更レスポンス
type LedgerResponse struct {
	RecordID  string
	Inventory InventoryResponse
}

// HardwareStatusResponse ハードウェア状態レスポンス
type HardwareStatusResponse struct {
	Live       bool
	Generation uint64
	Hoppers    int
}
