//go:build !(darwin || linux)

package lock

import (
	"errors"
	"fmt"
)

// ErrHeld 別のプロセスがハードウェアを使用中
var ErrHeld = errors.New("hardware is held by another process")

// ErrUnsupported このOSではロックを取れない
var ErrUnsupported = errors.New("hardware lock not supported on this platform")

// Lock ハードウェアの排他ロック
type Lock struct {
	path string
}

// Acquire このOSでは常に ErrUnsupported を返す
func Acquire(path string) (*Lock, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
}

// Path ロックファイルのパス
func (l *Lock) Path() string {
	return l.path
}

// Release 何もしない
func (l *Lock) Release() error {
	return nil
}

// Holder 常に見つからない
func Holder(path string) (int, bool) {
	return 0, false
}
