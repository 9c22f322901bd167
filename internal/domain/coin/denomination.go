package coin

import (
	"fmt"
	"sort"
	"strconv"
)

// Denomination 硬貨の額面を表す値オブジェクト（ペソ単位の正の整数）
type Denomination int64

// NewDenomination 新しいDenominationを作成
func NewDenomination(value int64) (Denomination, error) {
	if value <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDenomination, value)
	}
	return Denomination(value), nil
}

// ParseDenomination 文字列からDenominationを作成
func ParseDenomination(s string) (Denomination, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDenomination, s)
	}
	return NewDenomination(v)
}

// Value 額面の数値を返す
func (d Denomination) Value() int64 {
	return int64(d)
}

// String 文字列表現を返す
func (d Denomination) String() string {
	return "₱" + strconv.FormatInt(int64(d), 10)
}

// DenominationSet 設定された額面の集合（降順で保持）
type DenominationSet struct {
	values []Denomination
}

// NewDenominationSet 新しいDenominationSetを作成
func NewDenominationSet(values ...int64) (DenominationSet, error) {
	if len(values) == 0 {
		return DenominationSet{}, ErrEmptyDenominationSet
	}

	seen := make(map[Denomination]bool, len(values))
	set := make([]Denomination, 0, len(values))
	for _, v := range values {
		d, err := NewDenomination(v)
		if err != nil {
			return DenominationSet{}, err
		}
		if seen[d] {
			return DenominationSet{}, fmt.Errorf("%w: duplicate %s", ErrInvalidDenomination, d)
		}
		seen[d] = true
		set = append(set, d)
	}

	sort.Slice(set, func(i, j int) bool { return set[i] > set[j] })
	return DenominationSet{values: set}, nil
}

// MustNewDenominationSet テスト用ヘルパー: NewDenominationSetを呼び出し、エラーが発生した場合はpanicする
func MustNewDenominationSet(values ...int64) DenominationSet {
	s, err := NewDenominationSet(values...)
	if err != nil {
		panic(err)
	}
	return s
}

// Descending 額面を降順で返す
func (s DenominationSet) Descending() []Denomination {
	out := make([]Denomination, len(s.values))
	copy(out, s.values)
	return out
}

// Contains 額面が集合に含まれているかを返す
func (s DenominationSet) Contains(d Denomination) bool {
	for _, v := range s.values {
		if v == d {
			return true
		}
	}
	return false
}

// Len 額面の数を返す
func (s DenominationSet) Len() int {
	return len(s.values)
}
