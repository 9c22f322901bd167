package payment

import (
	"errors"

	"change-server/internal/domain/change"
	"change-server/internal/domain/coin"
)

// 受け付けない理由コード
const (
	ReasonInsufficientPayment  = "insufficient_payment"
	ReasonChangeLimitExceeded  = "change_limit_exceeded"
	ReasonInsufficientReserve  = "insufficient_reserve"
	ReasonUnrepresentable      = "unrepresentable"
	ReasonInventoryUnavailable = "inventory_unavailable"
	ReasonInvalidAmount        = "invalid_amount"
	ReasonUnknown              = "unknown"
)

// ReasonCode エラーを理由コードに変換
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, change.ErrInsufficientPayment):
		return ReasonInsufficientPayment
	case errors.Is(err, change.ErrChangeLimitExceeded):
		return ReasonChangeLimitExceeded
	case errors.Is(err, change.ErrInsufficientReserve):
		return ReasonInsufficientReserve
	case errors.Is(err, change.ErrUnrepresentable):
		return ReasonUnrepresentable
	case errors.Is(err, coin.ErrInventoryUnavailable):
		return ReasonInventoryUnavailable
	case errors.Is(err, change.ErrInvalidAmount):
		return ReasonInvalidAmount
	default:
		return ReasonUnknown
	}
}
