package change

import (
	"fmt"

	"change-server/internal/domain/coin"
)

// Calculator 在庫スナップショットに対するおつり計算（ハードウェアに依存しない純粋な計算）
type Calculator struct {
	policy Policy
}

// NewCalculator 新しいCalculatorを作成
func NewCalculator(policy Policy) (*Calculator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{policy: policy.clone()}, nil
}

// Policy 適用中のポリシーを返す
func (c *Calculator) Policy() Policy {
	return c.policy.clone()
}

// Feasibility おつりの払い出し可否の判定結果
type Feasibility struct {
	Amount    int64
	Feasible  bool
	Reason    error
	Breakdown coin.Breakdown
}

// Breakdown 払い出し可能な在庫（保有枚数 - 予備枚数）から大きい額面優先で内訳を求める
// 同じ在庫と金額に対しては常に同じ内訳を返す
func (c *Calculator) Breakdown(inv *coin.Inventory, amount int64) (coin.Breakdown, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	b, ok := c.greedy(amount, func(d coin.Denomination) int64 {
		return c.policy.Dispensable(inv, d)
	})
	if !ok {
		return nil, fmt.Errorf("%w: ₱%d", ErrUnrepresentable, amount)
	}
	return b, nil
}

// Feasibility おつりを払い出せるかを判定する
// 上限額・内訳の存在・予備枚数の順に検査し、最初に失敗した検査を理由とする
func (c *Calculator) Feasibility(inv *coin.Inventory, amount int64) Feasibility {
	result := Feasibility{Amount: amount}

	if amount < 0 {
		result.Reason = fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
		return result
	}
	if amount == 0 {
		result.Feasible = true
		result.Breakdown = coin.Breakdown{}
		return result
	}

	if amount > c.policy.MaxChangeLimit {
		result.Reason = fmt.Errorf("%w: ₱%d > ₱%d", ErrChangeLimitExceeded, amount, c.policy.MaxChangeLimit)
		return result
	}

	b, err := c.Breakdown(inv, amount)
	if err != nil {
		// 予備枚数を無視すれば払い出せる場合は予備枚数が原因
		if _, onHand := c.greedy(amount, inv.Count); onHand {
			result.Reason = fmt.Errorf("%w: ₱%d", ErrInsufficientReserve, amount)
			return result
		}
		result.Reason = err
		return result
	}
	result.Breakdown = b

	for _, d := range c.policy.Denominations.Descending() {
		remaining := inv.Count(d) - b[d]
		if remaining < c.policy.Reserve(d) {
			result.Reason = fmt.Errorf("%w: %s would have %d, minimum %d",
				ErrInsufficientReserve, d, remaining, c.policy.Reserve(d))
			return result
		}
	}

	result.Feasible = true
	return result
}

// Capacity 現在の在庫で払い出せるおつりの最大額を返す（上限額で頭打ち）
// 払い出せる金額は額面の最大公約数の倍数に限られるため、その刻みで上から走査する
// 判定回数は最悪 min(払い出し可能額, 上限額) / 最大公約数 回
func (c *Calculator) Capacity(inv *coin.Inventory) int64 {
	var total int64
	for _, d := range c.policy.Denominations.Descending() {
		total += c.policy.Dispensable(inv, d) * d.Value()
	}
	if total > c.policy.MaxChangeLimit {
		total = c.policy.MaxChangeLimit
	}
	step := c.denominationGCD()
	for amount := total - total%step; amount > 0; amount -= step {
		if c.Feasibility(inv, amount).Feasible {
			return amount
		}
	}
	return 0
}

func (c *Calculator) denominationGCD() int64 {
	var g int64
	for _, d := range c.policy.Denominations.Descending() {
		a, b := d.Value(), g
		for b != 0 {
			a, b = b, a%b
		}
		g = a
	}
	if g <= 0 {
		return 1
	}
	return g
}

// greedy 大きい額面から順に available の範囲で取り、ちょうど amount になるかを返す
func (c *Calculator) greedy(amount int64, available func(coin.Denomination) int64) (coin.Breakdown, bool) {
	b := coin.Breakdown{}
	remaining := amount
	for _, d := range c.policy.Denominations.Descending() {
		if remaining == 0 {
			break
		}
		n := remaining / d.Value()
		if avail := available(d); n > avail {
			n = avail
		}
		if n > 0 {
			b[d] = n
			remaining -= n * d.Value()
		}
	}
	return b, remaining == 0
}
