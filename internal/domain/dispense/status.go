package dispense

import (
	"fmt"
)

// Status 記録ステータスを表す値オブジェクト
type Status string

const (
	StatusCompleted Status = "completed" // 要求どおり反映
	StatusPartial   Status = "partial"   // 一部のみ払い出し（ジャム等）
	StatusFailed    Status = "failed"    // 1枚も払い出せなかった
)

// NewStatus 新しいStatusを作成
func NewStatus(s string) (Status, error) {
	switch s {
	case "completed", "partial", "failed":
		return Status(s), nil
	default:
		return "", fmt.Errorf("invalid record status: %s", s)
	}
}

// StatusFor 要求枚数と確認枚数からステータスを決定する
func StatusFor(success bool, confirmedCoins int64) Status {
	switch {
	case success:
		return StatusCompleted
	case confirmedCoins > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// String 文字列表現を返す
func (s Status) String() string {
	return string(s)
}

// Valid 有効なステータスかどうかを返す
func (s Status) Valid() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusFailed:
		return true
	default:
		return false
	}
}

// IsCompleted 完了状態かどうかを返す
func (s Status) IsCompleted() bool {
	return s == StatusCompleted
}
