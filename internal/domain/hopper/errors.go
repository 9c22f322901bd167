package hopper

import "errors"

var (
	// ErrHardwareUnavailable ハードウェアに接続できないエラー
	ErrHardwareUnavailable = errors.New("hardware unavailable")
	// ErrJam 制限時間内に要求枚数を払い出せなかったエラー
	ErrJam = errors.New("hopper jam")
	// ErrDispenseAborted 払い出しが中断されたエラー
	ErrDispenseAborted = errors.New("dispense aborted")
	// ErrHopperNotConfigured 額面に対応するホッパーがないエラー
	ErrHopperNotConfigured = errors.New("hopper not configured for denomination")
	// ErrInvalidFilterConfig 無効なフィルタ設定エラー
	ErrInvalidFilterConfig = errors.New("invalid sensor filter config")
	// ErrEventStreamClosed センサーイベントのストリームが閉じられたエラー
	ErrEventStreamClosed = errors.New("sensor event stream closed")
)
