package handler

import paymentapp "change-server/internal/application/payment"

// SuggestionItem 支払額の候補
// @Description 支払額の候補
type SuggestionItem struct {
	Amount    int64           `json:"amount" example:"50"`
	Change    int64           `json:"change" example:"3"`
	Tier      string          `json:"tier" example:"round_to_bill"`
	Label     string          `json:"label" example:"Pay 50 (change 3)"`
	Breakdown map[int64]int64 `json:"breakdown"`
}

// SuggestPaymentsResponse 支払額提案レスポンス
// @Description 支払額提案レスポンス
type SuggestPaymentsResponse struct {
	TotalCost   int64            `json:"total_cost" example:"47"`
	Suggestions []SuggestionItem `json:"suggestions"`
}

// ValidatePaymentRequest 支払額検証リクエスト
// @Description 支払額検証リクエスト
type ValidatePaymentRequest struct {
	TotalCost     int64 `json:"total_cost" example:"47"`
	PaymentAmount int64 `json:"payment_amount" example:"100"`
}

// ValidatePaymentResponse 支払額検証レスポンス
// @Description 支払額検証レスポンス
type ValidatePaymentResponse struct {
	Valid     bool            `json:"valid" example:"true"`
	Change    int64           `json:"change" example:"53"`
	Reason    string          `json:"reason,omitempty" example:"insufficient_reserve"`
	Message   string          `json:"message" example:"Change of 53 can be dispensed"`
	Breakdown map[int64]int64 `json:"breakdown,omitempty"`
}

// BestPaymentResponse 最大支払額レスポンス
// @Description 最大支払額レスポンス
type BestPaymentResponse struct {
	TotalCost  int64          `json:"total_cost" example:"25"`
	Suggestion SuggestionItem `json:"suggestion"`
}

func toSuggestionItem(s paymentapp.Suggestion) SuggestionItem {
	return SuggestionItem{
		Amount:    s.Amount,
		Change:    s.Change,
		Tier:      s.Tier,
		Label:     s.Label,
		Breakdown: s.Breakdown,
	}
}
