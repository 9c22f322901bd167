package payment

import "change-server/internal/domain/coin"

// SuggestPaymentsRequest 支払額提案リクエスト
type SuggestPaymentsRequest struct {
	TotalCost int64
}

// Suggestion 支払額の候補
type Suggestion struct {
	Amount    int64
	Change    int64
	Tier      string // "exact", "small_change", "medium_change", "round_to_bill"
	Label     string
	Breakdown map[int64]int64
}

// SuggestPaymentsResponse 支払額提案レスポンス
type SuggestPaymentsResponse struct {
	TotalCost   int64
	Suggestions []Suggestion
}

// ValidatePaymentRequest 支払額検証リクエスト
type ValidatePaymentRequest struct {
	TotalCost     int64
	PaymentAmount int64
}

// ValidatePaymentResponse 支払額検証レスポンス
type ValidatePaymentResponse struct {
	Valid     bool
	Change    int64
	Reason    string // 受け付けない場合の理由コード
	Message   string
	Breakdown map[int64]int64
}

// BestPaymentRequest 最大支払額リクエスト
type BestPaymentRequest struct {
	TotalCost int64
}

// BestPaymentResponse 最大支払額レスポンス
type BestPaymentResponse struct {
	TotalCost  int64
	Suggestion Suggestion
}

// ChangeStatusResponse おつり払い出し能力レスポンス
type ChangeStatusResponse struct {
	Level       string // "none", "limited", "available"
	MaxChange   int64
	Message     string
	Inventory   map[int64]int64
	Dispensable map[int64]int64
	Reserves    map[int64]int64
}

func valueMap(m map[coin.Denomination]int64) map[int64]int64 {
	out := make(map[int64]int64, len(m))
	for d, n := range m {
		out[d.Value()] = n
	}
	return out
}
