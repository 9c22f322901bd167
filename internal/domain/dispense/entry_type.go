package dispense

import (
	"fmt"
)

// EntryType 台帳記録のタイプを表す値オブジェクト
type EntryType string

const (
	EntryTypeDispense   EntryType = "dispense"   // おつりの払い出し
	EntryTypeDeposit    EntryType = "deposit"    // 確認済みの投入
	EntryTypeAdjustment EntryType = "adjustment" // 管理者による補正
)

// NewEntryType 新しいEntryTypeを作成
func NewEntryType(s string) (EntryType, error) {
	switch s {
	case "dispense", "deposit", "adjustment":
		return EntryType(s), nil
	default:
		return "", fmt.Errorf("invalid entry type: %s", s)
	}
}

// String 文字列表現を返す
func (et EntryType) String() string {
	return string(et)
}

// Valid 有効なタイプかどうかを返す
func (et EntryType) Valid() bool {
	switch et {
	case EntryTypeDispense, EntryTypeDeposit, EntryTypeAdjustment:
		return true
	default:
		return false
	}
}
