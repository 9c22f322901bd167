package change

import (
	"fmt"
	"math"
	"sort"

	"change-server/internal/domain/coin"
)

// Tier 支払額候補の優先度（値が小さいほど優先）
type Tier int

const (
	TierExact        Tier = iota // おつりなし
	TierSmallChange              // 少額のおつり
	TierMediumChange             // 中程度のおつり
	TierRoundToBill              // お札で切り上げ
)

// String 文字列表現を返す
func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierSmallChange:
		return "small_change"
	case TierMediumChange:
		return "medium_change"
	case TierRoundToBill:
		return "round_to_bill"
	default:
		return "unknown"
	}
}

// PaymentSuggestion 支払額の候補
type PaymentSuggestion struct {
	Amount    int64
	Change    int64
	Tier      Tier
	Label     string
	Breakdown coin.Breakdown
}

type candidate struct {
	amount int64
	tier   Tier
	label  string
}

// Suggestions 在庫で払い出せるおつりになる支払額の候補を優先度順に返す
func (c *Calculator) Suggestions(inv *coin.Inventory, totalCost int64) ([]PaymentSuggestion, error) {
	if err := c.checkTotalCost(totalCost); err != nil {
		return nil, err
	}

	candidates := []candidate{{amount: totalCost, tier: TierExact, label: "Exact payment - no change needed"}}
	for change := int64(1); change <= c.policy.MediumChangeBand; change++ {
		candidates = append(candidates, candidate{
			amount: totalCost + change,
			tier:   c.bandTier(change),
			label:  fmt.Sprintf("Payment with ₱%d change", change),
		})
	}
	for _, unit := range c.policy.sortedRoundingUnits() {
		amount := roundUp(totalCost, unit)
		if amount <= totalCost {
			amount += unit
		}
		candidates = append(candidates, candidate{
			amount: amount,
			tier:   TierRoundToBill,
			label:  fmt.Sprintf("Pay with ₱%d (₱%d change)", amount, amount-totalCost),
		})
	}

	seen := make(map[int64]bool, len(candidates))
	suggestions := make([]PaymentSuggestion, 0, len(candidates))
	for _, cand := range candidates {
		if seen[cand.amount] {
			continue
		}
		seen[cand.amount] = true

		change := cand.amount - totalCost
		f := c.Feasibility(inv, change)
		if !f.Feasible {
			continue
		}
		suggestions = append(suggestions, PaymentSuggestion{
			Amount:    cand.amount,
			Change:    change,
			Tier:      cand.tier,
			Label:     cand.label,
			Breakdown: f.Breakdown,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Tier != suggestions[j].Tier {
			return suggestions[i].Tier < suggestions[j].Tier
		}
		return suggestions[i].Change < suggestions[j].Change
	})

	if len(suggestions) == 0 {
		return nil, ErrNoValidSuggestions
	}
	if c.policy.SuggestionLimit > 0 && len(suggestions) > c.policy.SuggestionLimit {
		suggestions = suggestions[:c.policy.SuggestionLimit]
	}
	return suggestions, nil
}

// BestPayment 払い出し可能なおつりの範囲で受け付けられる最大の支払額を返す
// 該当する紙幣・硬貨がない場合はぴったりの支払いを返す
func (c *Calculator) BestPayment(inv *coin.Inventory, totalCost int64) (PaymentSuggestion, error) {
	if err := c.checkTotalCost(totalCost); err != nil {
		return PaymentSuggestion{}, err
	}

	exact := PaymentSuggestion{
		Amount:    totalCost,
		Tier:      TierExact,
		Label:     "Exact payment",
		Breakdown: coin.Breakdown{},
	}

	maxChange := c.Capacity(inv)
	if maxChange == 0 {
		return exact, nil
	}

	accepted := append([]int64(nil), c.policy.AcceptedPayments...)
	sort.Slice(accepted, func(i, j int) bool { return accepted[i] > accepted[j] })
	for _, amount := range accepted {
		if amount < totalCost || amount > totalCost+maxChange {
			continue
		}
		change := amount - totalCost
		f := c.Feasibility(inv, change)
		if !f.Feasible {
			continue
		}
		if change == 0 {
			return exact, nil
		}
		return PaymentSuggestion{
			Amount:    amount,
			Change:    change,
			Tier:      c.tierFor(change),
			Label:     fmt.Sprintf("Max payment we can receive: ₱%d (₱%d change)", amount, change),
			Breakdown: f.Breakdown,
		}, nil
	}
	return exact, nil
}

// MaxTotalCost 候補の支払額（合計金額 + おつり・切り上げ幅）が int64 に収まる合計金額の上限
func (c *Calculator) MaxTotalCost() int64 {
	headroom := c.policy.MediumChangeBand
	if c.policy.MaxChangeLimit > headroom {
		headroom = c.policy.MaxChangeLimit
	}
	for _, unit := range c.policy.RoundingUnits {
		if unit > headroom {
			headroom = unit
		}
	}
	return math.MaxInt64 - headroom
}

func (c *Calculator) checkTotalCost(totalCost int64) error {
	if totalCost < 0 || totalCost > c.MaxTotalCost() {
		return fmt.Errorf("%w: total cost %d", ErrInvalidAmount, totalCost)
	}
	return nil
}

func (c *Calculator) bandTier(change int64) Tier {
	if change <= c.policy.SmallChangeBand {
		return TierSmallChange
	}
	return TierMediumChange
}

func (c *Calculator) tierFor(change int64) Tier {
	switch {
	case change == 0:
		return TierExact
	case change <= c.policy.MediumChangeBand:
		return c.bandTier(change)
	default:
		return TierRoundToBill
	}
}

// roundUp amount を unit の倍数に切り上げる
func roundUp(amount, unit int64) int64 {
	if r := amount % unit; r != 0 {
		return amount + unit - r
	}
	return amount
}
