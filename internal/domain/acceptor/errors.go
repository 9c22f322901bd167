package acceptor

import "errors"

var (
	// ErrInvalidConfig 無効な投入口設定エラー
	ErrInvalidConfig = errors.New("invalid coin acceptor config")
	// ErrWindowOpen 別の支払い受付がすでに開いているエラー
	ErrWindowOpen = errors.New("payment window already open")
	// ErrNoWindow 支払い受付が開いていないエラー
	ErrNoWindow = errors.New("no payment window open")
)
