package dispense

import "errors"

var (
	// ErrRecordNotFound 記録が見つからないエラー
	ErrRecordNotFound = errors.New("dispense record not found")
	// ErrInvalidRecord 無効な記録エラー
	ErrInvalidRecord = errors.New("invalid dispense record")
)

// ErrReasonRequired 補正理由が指定されていないエラー
var ErrReasonRequired = errors.New("adjustment reason is required")
