//go:build darwin || linux

package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrHeld 別のプロセスがハードウェアを使用中
var ErrHeld = errors.New("hardware is held by another process")

// Lock ハードウェアの排他ロック（flock、プロセス終了時に自動で解放される）
type Lock struct {
	fd   int
	path string
}

// Acquire ロックファイルを排他ロックする。取得済みの場合は待たずに ErrHeld を返す
func Acquire(path string) (*Lock, error) {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", path, err)
	}

	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		if errors.Is(err, unix.EWOULDBLOCK) {
			if pid, ok := Holder(path); ok {
				return nil, fmt.Errorf("%w: %s (pid %d)", ErrHeld, path, pid)
			}
			return nil, fmt.Errorf("%w: %s", ErrHeld, path)
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	// 保持しているプロセスを分かるようにする
	pid := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := unix.Ftruncate(fd, 0); err == nil {
		_, _ = unix.Pwrite(fd, pid, 0)
	}

	return &Lock{fd: fd, path: path}, nil
}

// Path ロックファイルのパス
func (l *Lock) Path() string {
	return l.path
}

// Release ロックを解放する
func (l *Lock) Release() error {
	if l == nil || l.fd < 0 {
		return nil
	}
	_ = unix.Ftruncate(l.fd, 0)
	unlockErr := unix.Flock(l.fd, unix.LOCK_UN)
	closeErr := unix.Close(l.fd)
	l.fd = -1
	if unlockErr != nil {
		return fmt.Errorf("unlocking %s: %w", l.path, unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", l.path, closeErr)
	}
	return nil
}

// Holder ロックファイルに書かれたPIDを返す
func Holder(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
