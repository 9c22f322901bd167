package change

import "errors"

var (
	// ErrInvalidAmount 無効な金額エラー
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrUnrepresentable 硬貨の組み合わせで金額を表現できないエラー
	ErrUnrepresentable = errors.New("amount cannot be represented with available coins")
	// ErrInsufficientReserve 予備枚数を割り込むため払い出せないエラー
	ErrInsufficientReserve = errors.New("change would breach coin reserve")
	// ErrChangeLimitExceeded おつりの上限額を超えるエラー
	ErrChangeLimitExceeded = errors.New("change exceeds max change limit")
	// ErrInsufficientPayment 支払額が合計金額に満たないエラー
	ErrInsufficientPayment = errors.New("payment is less than total cost")
	// ErrNoValidSuggestions 支払額の候補が1件もないエラー（設定不備）
	ErrNoValidSuggestions = errors.New("no valid payment suggestions")
	// ErrInvalidPolicy 無効なおつりポリシーエラー
	ErrInvalidPolicy = errors.New("invalid change policy")
)
