package change

import (
	"errors"
	"fmt"

	"change-server/internal/domain/coin"
)

// Validation 支払額の検証結果
type Validation struct {
	OK        bool
	Reason    error
	Info      string
	Change    int64
	Breakdown coin.Breakdown
}

// Validate 支払額を受け付けられるかを検証する
// 支払額が合計金額と等しい場合は在庫に関係なく受け付ける
func (c *Calculator) Validate(inv *coin.Inventory, totalCost, paymentAmount int64) Validation {
	if totalCost < 0 || paymentAmount < 0 {
		return Validation{
			Reason: fmt.Errorf("%w: cost %d, payment %d", ErrInvalidAmount, totalCost, paymentAmount),
			Info:   "Amounts must not be negative",
		}
	}
	if paymentAmount < totalCost {
		return Validation{
			Reason: fmt.Errorf("%w: ₱%d < ₱%d", ErrInsufficientPayment, paymentAmount, totalCost),
			Info:   fmt.Sprintf("Insufficient payment. Need ₱%d more", totalCost-paymentAmount),
		}
	}
	if paymentAmount == totalCost {
		return Validation{OK: true, Info: "Exact payment", Breakdown: coin.Breakdown{}}
	}

	change := paymentAmount - totalCost
	f := c.Feasibility(inv, change)
	if !f.Feasible {
		return Validation{Reason: f.Reason, Change: change, Info: infoFor(f.Reason, change, c.policy.MaxChangeLimit)}
	}
	return Validation{
		OK:        true,
		Change:    change,
		Breakdown: f.Breakdown,
		Info:      fmt.Sprintf("Change: ₱%d", change),
	}
}

// ValidateWithoutInventory 在庫を読めない場合の検証（ぴったりの支払いのみ受け付ける）
func ValidateWithoutInventory(totalCost, paymentAmount int64, cause error) Validation {
	switch {
	case paymentAmount < totalCost:
		return Validation{
			Reason: fmt.Errorf("%w: ₱%d < ₱%d", ErrInsufficientPayment, paymentAmount, totalCost),
			Info:   fmt.Sprintf("Insufficient payment. Need ₱%d more", totalCost-paymentAmount),
		}
	case paymentAmount == totalCost:
		return Validation{OK: true, Info: "Exact payment", Breakdown: coin.Breakdown{}}
	default:
		return Validation{Reason: cause, Change: paymentAmount - totalCost, Info: "Coin inventory unavailable"}
	}
}

func infoFor(reason error, change, limit int64) string {
	switch {
	case errors.Is(reason, ErrChangeLimitExceeded):
		return fmt.Sprintf("Change amount ₱%d exceeds maximum ₱%d", change, limit)
	case errors.Is(reason, ErrInsufficientReserve):
		return fmt.Sprintf("Cannot provide ₱%d change without breaching coin reserve", change)
	case errors.Is(reason, ErrUnrepresentable):
		return fmt.Sprintf("Cannot provide exact change of ₱%d", change)
	default:
		return "Payment cannot be accepted"
	}
}
