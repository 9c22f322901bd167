package acceptor

import (
	"fmt"
	"time"

	"change-server/internal/domain/coin"
	"change-server/internal/domain/hopper"
)

// Config 硬貨投入口の設定
type Config struct {
	// ID センサーとインヒビットピンを束ねるID
	ID string
	// PulseValues 1枚分のパルス数から額面への対応
	PulseValues map[int]coin.Denomination
	// PulseTimeout 最後のパルスからこの時間パルスがなければ1枚分として確定する
	PulseTimeout time.Duration
	// GlitchFilter ハードウェア側で除去する短いパルスの長さ（0は無効）
	GlitchFilter time.Duration
	Filter       hopper.FilterConfig
	// RetryDelay 切断後に接続し直すまでの待ち時間
	RetryDelay time.Duration
}

// Validate 設定を検証
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidConfig)
	}
	if len(c.PulseValues) == 0 {
		return fmt.Errorf("%w: no pulse values", ErrInvalidConfig)
	}
	for pulses, d := range c.PulseValues {
		if pulses <= 0 {
			return fmt.Errorf("%w: pulse count %d", ErrInvalidConfig, pulses)
		}
		if d.Value() <= 0 {
			return fmt.Errorf("%w: %d pulses map to %d", ErrInvalidConfig, pulses, d.Value())
		}
	}
	if c.PulseTimeout <= 0 {
		return fmt.Errorf("%w: pulse timeout must be positive", ErrInvalidConfig)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: negative retry delay", ErrInvalidConfig)
	}
	return c.Filter.Validate()
}
