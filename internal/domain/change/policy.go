package change

import (
	"fmt"
	"sort"

	"change-server/internal/domain/coin"
)

// Policy おつり計算のビジネスルール
type Policy struct {
	Denominations     coin.DenominationSet
	ReserveThresholds map[coin.Denomination]int64
	MaxChangeLimit    int64

	// SmallChangeBand 以下のおつりは small_change、MediumChangeBand 以下は medium_change として提案する
	SmallChangeBand  int64
	MediumChangeBand int64
	// RoundingUnits 「お札で切り上げ」候補に使う単位（例: 10, 20, 50, 100）
	RoundingUnits   []int64
	SuggestionLimit int // 0は無制限

	// AcceptedPayments 受け付ける紙幣・硬貨の額（最大支払額の提案に使用）
	AcceptedPayments []int64
	// LimitedCapacityBelow この金額未満の払い出し能力を limited とみなす
	LimitedCapacityBelow int64
}

// Validate ポリシーの整合性を検証
func (p Policy) Validate() error {
	if p.Denominations.Len() == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, coin.ErrEmptyDenominationSet)
	}
	if p.MaxChangeLimit < 0 {
		return fmt.Errorf("%w: max change limit %d", ErrInvalidPolicy, p.MaxChangeLimit)
	}
	for d, n := range p.ReserveThresholds {
		if !p.Denominations.Contains(d) {
			return fmt.Errorf("%w: reserve for unknown denomination %s", ErrInvalidPolicy, d)
		}
		if n < 0 {
			return fmt.Errorf("%w: negative reserve %d for %s", ErrInvalidPolicy, n, d)
		}
	}
	if p.SmallChangeBand < 0 || p.MediumChangeBand < p.SmallChangeBand {
		return fmt.Errorf("%w: change bands %d/%d", ErrInvalidPolicy, p.SmallChangeBand, p.MediumChangeBand)
	}
	for _, u := range p.RoundingUnits {
		if u <= 0 {
			return fmt.Errorf("%w: rounding unit %d", ErrInvalidPolicy, u)
		}
	}
	if p.SuggestionLimit < 0 {
		return fmt.Errorf("%w: suggestion limit %d", ErrInvalidPolicy, p.SuggestionLimit)
	}
	return nil
}

// Reserve 額面の予備枚数を返す
func (p Policy) Reserve(d coin.Denomination) int64 {
	return p.ReserveThresholds[d]
}

// Dispensable おつりとして払い出せる枚数（保有枚数 - 予備枚数、下限0）を返す
func (p Policy) Dispensable(inv *coin.Inventory, d coin.Denomination) int64 {
	n := inv.Count(d) - p.Reserve(d)
	if n < 0 {
		return 0
	}
	return n
}

// WithReserve 予備枚数を変更したコピーを返す
func (p Policy) WithReserve(d coin.Denomination, n int64) Policy {
	out := p.clone()
	out.ReserveThresholds[d] = n
	return out
}

// WithMaxChangeLimit おつり上限額を変更したコピーを返す
func (p Policy) WithMaxChangeLimit(limit int64) Policy {
	out := p.clone()
	out.MaxChangeLimit = limit
	return out
}

func (p Policy) clone() Policy {
	out := p
	out.ReserveThresholds = make(map[coin.Denomination]int64, len(p.ReserveThresholds))
	for d, n := range p.ReserveThresholds {
		out.ReserveThresholds[d] = n
	}
	out.RoundingUnits = append([]int64(nil), p.RoundingUnits...)
	out.AcceptedPayments = append([]int64(nil), p.AcceptedPayments...)
	return out
}

func (p Policy) sortedRoundingUnits() []int64 {
	units := append([]int64(nil), p.RoundingUnits...)
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })
	return units
}
