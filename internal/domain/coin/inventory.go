package coin

import "fmt"

// Inventory 硬貨在庫エンティティ（額面ごとの保有枚数）
type Inventory struct {
	counts map[Denomination]int64
}

// NewInventory 新しいInventoryエンティティを作成
func NewInventory(counts map[Denomination]int64) (*Inventory, error) {
	inv := &Inventory{counts: make(map[Denomination]int64, len(counts))}
	for d, n := range counts {
		if d <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidDenomination, d.Value())
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: %s has %d", ErrNegativeCount, d, n)
		}
		inv.counts[d] = n
	}
	return inv, nil
}

// EmptyInventory 空の在庫を返す
func EmptyInventory() *Inventory {
	return &Inventory{counts: map[Denomination]int64{}}
}

// MustNewInventory テスト用ヘルパー: NewInventoryを呼び出し、エラーが発生した場合はpanicする
func MustNewInventory(counts map[Denomination]int64) *Inventory {
	inv, err := NewInventory(counts)
	if err != nil {
		panic(err)
	}
	return inv
}

// Count 額面の保有枚数を返す（未登録の額面は0）
func (i *Inventory) Count(d Denomination) int64 {
	return i.counts[d]
}

// Counts 全額面の保有枚数のコピーを返す
func (i *Inventory) Counts() map[Denomination]int64 {
	out := make(map[Denomination]int64, len(i.counts))
	for d, n := range i.counts {
		out[d] = n
	}
	return out
}

// TotalValue 保有硬貨の合計金額を返す
func (i *Inventory) TotalValue() int64 {
	var total int64
	for d, n := range i.counts {
		total += d.Value() * n
	}
	return total
}

// Withdraw 確認済みの払い出し枚数を差し引く
// いずれかの額面が不足する場合は何も変更せずにエラーを返す
func (i *Inventory) Withdraw(b Breakdown) error {
	for d, n := range b {
		if n < 0 {
			return fmt.Errorf("%w: withdraw %d of %s", ErrNegativeCount, n, d)
		}
		if i.counts[d] < n {
			return fmt.Errorf("%w: %s has %d, withdraw %d", ErrInsufficientCoins, d, i.counts[d], n)
		}
	}
	for d, n := range b {
		if n > 0 {
			i.counts[d] -= n
		}
	}
	return nil
}

// Deposit 確認済みの投入枚数を加算する
func (i *Inventory) Deposit(d Denomination, n int64) error {
	if d <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDenomination, d.Value())
	}
	if n <= 0 {
		return fmt.Errorf("%w: deposit %d of %s", ErrNegativeCount, n, d)
	}
	i.counts[d] += n
	return nil
}

// Adjust 管理者による枚数補正（負の補正も可、ただし結果は0以上）
func (i *Inventory) Adjust(d Denomination, delta int64) error {
	if d <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDenomination, d.Value())
	}
	if i.counts[d]+delta < 0 {
		return fmt.Errorf("%w: %s has %d, adjust %d", ErrNegativeCount, d, i.counts[d], delta)
	}
	i.counts[d] += delta
	return nil
}

// Clone コピーを返す
func (i *Inventory) Clone() *Inventory {
	return &Inventory{counts: i.Counts()}
}
