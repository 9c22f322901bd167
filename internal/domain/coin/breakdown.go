package coin

import "sort"

// Breakdown 額面ごとの枚数（合計が目標金額になる内訳）
// 払い出しリクエスト（DispenseRequest）としても使用する
type Breakdown map[Denomination]int64

// Total 内訳の合計金額を返す
func (b Breakdown) Total() int64 {
	var total int64
	for d, n := range b {
		total += d.Value() * n
	}
	return total
}

// Coins 内訳の合計枚数を返す
func (b Breakdown) Coins() int64 {
	var coins int64
	for _, n := range b {
		coins += n
	}
	return coins
}

// IsEmpty 払い出す硬貨がないかを返す
func (b Breakdown) IsEmpty() bool {
	return b.Coins() == 0
}

// Denominations 枚数が1以上の額面を降順で返す
func (b Breakdown) Denominations() []Denomination {
	out := make([]Denomination, 0, len(b))
	for d, n := range b {
		if n > 0 {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

// Clone コピーを返す
func (b Breakdown) Clone() Breakdown {
	out := make(Breakdown, len(b))
	for d, n := range b {
		out[d] = n
	}
	return out
}

// ToValueMap 額面の数値をキーにしたマップを返す（シリアライズ用、0枚は省く）
func (b Breakdown) ToValueMap() map[int64]int64 {
	out := make(map[int64]int64, len(b))
	for d, n := range b {
		if n != 0 {
			out[d.Value()] = n
		}
	}
	return out
}
