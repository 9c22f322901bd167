package change

import "change-server/internal/domain/coin"

// CapacityLevel おつり払い出し能力の段階
type CapacityLevel string

const (
	CapacityNone      CapacityLevel = "none"
	CapacityLimited   CapacityLevel = "limited"
	CapacityAvailable CapacityLevel = "available"
)

// CapacityStatus 現在のおつり払い出し能力
type CapacityStatus struct {
	Level       CapacityLevel
	MaxChange   int64
	Dispensable map[coin.Denomination]int64
	Reserves    map[coin.Denomination]int64
	Message     string
}

// Status 在庫から払い出し能力を求める
func (c *Calculator) Status(inv *coin.Inventory) CapacityStatus {
	status := CapacityStatus{
		MaxChange:   c.Capacity(inv),
		Dispensable: make(map[coin.Denomination]int64, c.policy.Denominations.Len()),
		Reserves:    make(map[coin.Denomination]int64, c.policy.Denominations.Len()),
	}
	for _, d := range c.policy.Denominations.Descending() {
		status.Dispensable[d] = c.policy.Dispensable(inv, d)
		status.Reserves[d] = c.policy.Reserve(d)
	}

	switch {
	case status.MaxChange == 0:
		status.Level = CapacityNone
		status.Message = "Exact payment only"
	case status.MaxChange < c.policy.LimitedCapacityBelow:
		status.Level = CapacityLimited
		status.Message = "Limited change available"
	default:
		status.Level = CapacityAvailable
		status.Message = "Change available"
	}
	return status
}
