package coin

import "errors"

var (
	// ErrInvalidDenomination 無効な額面エラー
	ErrInvalidDenomination = errors.New("invalid denomination")
	// ErrEmptyDenominationSet 額面が設定されていないエラー
	ErrEmptyDenominationSet = errors.New("denomination set is empty")
	// ErrNegativeCount 枚数が負になるエラー
	ErrNegativeCount = errors.New("coin count cannot be negative")
	// ErrInsufficientCoins 在庫枚数不足エラー
	ErrInsufficientCoins = errors.New("insufficient coins on hand")
	// ErrInventoryUnavailable 在庫ストアに到達できないエラー
	ErrInventoryUnavailable = errors.New("inventory unavailable")
)
