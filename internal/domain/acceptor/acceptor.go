package acceptor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"change-server/internal/domain/coin"
	"change-server/internal/domain/hopper"
)

// Coin 投入口が認識した硬貨1枚
type Coin struct {
	Denomination coin.Denomination
	Pulses       int
	At           time.Time
}

// CoinHandler 認識した硬貨を受け取る
type CoinHandler func(ctx context.Context, c Coin)

// Status 投入口の状態
type Status struct {
	Live         bool
	Enabled      bool
	Accepted     int64
	Unrecognized int64
}

// Acceptor パルス出力式の硬貨投入口
// パルスはホッパーと同じセンサーフィルタで判定し、PulseTimeout の間隔が空いたところで1枚に確定する
type Acceptor struct {
	config    Config
	connector hopper.Connector
	filter    *hopper.SensorFilter
	logger    hopper.Logger

	mu           sync.Mutex
	handle       hopper.Handle
	enabled      bool
	accepted     int64
	unrecognized int64
}

// New 新しいAcceptorを作成
func New(config Config, connector hopper.Connector, logger hopper.Logger) (*Acceptor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	filter, err := hopper.NewSensorFilter(config.ID, config.Filter)
	if err != nil {
		return nil, err
	}
	return &Acceptor{
		config:    config,
		connector: connector,
		filter:    filter,
		logger:    logger,
	}, nil
}

// Run ctx が終わるまで投入口を監視する。切断時は RetryDelay 後に接続し直す
func (a *Acceptor) Run(ctx context.Context, onCoin CoinHandler) error {
	for {
		err := a.session(ctx, onCoin)
		if ctx.Err() != nil {
			return nil
		}
		a.logger.Warn(ctx, "Coin acceptor disconnected", map[string]interface{}{
			"acceptor_id": a.config.ID,
			"error":       err.Error(),
			"retry_in":    a.config.RetryDelay.String(),
		})

		t := time.NewTimer(a.config.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (a *Acceptor) session(ctx context.Context, onCoin CoinHandler) error {
	handle, err := a.connector.Open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", hopper.ErrHardwareUnavailable, err)
	}
	if a.config.GlitchFilter > 0 {
		if err := handle.SetGlitchFilter(a.config.ID, a.config.GlitchFilter); err != nil {
			a.logger.Warn(ctx, "Failed to set glitch filter", map[string]interface{}{
				"acceptor_id": a.config.ID,
				"error":       err.Error(),
			})
		}
	}
	events, err := handle.SubscribeEdges(a.config.ID)
	if err != nil {
		_ = handle.Close()
		return fmt.Errorf("%w: subscribe %s: %v", hopper.ErrHardwareUnavailable, a.config.ID, err)
	}
	a.filter.Arm()

	a.mu.Lock()
	a.handle = handle
	enabled := a.enabled
	if err := handle.SetActuator(a.config.ID, enabled); err != nil {
		a.logger.Warn(ctx, "Failed to restore coin acceptor inhibit state", map[string]interface{}{
			"acceptor_id": a.config.ID,
			"enabled":     enabled,
			"error":       err.Error(),
		})
	}
	a.mu.Unlock()
	defer a.detach(context.WithoutCancel(ctx), handle)

	a.logger.Info(ctx, "Coin acceptor connected", map[string]interface{}{
		"acceptor_id": a.config.ID,
		"enabled":     enabled,
	})

	timer := time.NewTimer(a.config.PulseTimeout)
	timer.Stop()
	defer timer.Stop()

	var (
		pending <-chan time.Time
		pulses  int
		last    time.Time
	)
	for {
		select {
		case <-ctx.Done():
			a.settle(context.WithoutCancel(ctx), pulses, last, onCoin)
			return ctx.Err()

		case <-pending:
			pending = nil
			a.settle(ctx, pulses, last, onCoin)
			pulses = 0

		case ev, ok := <-events:
			if !ok {
				a.settle(ctx, pulses, last, onCoin)
				return fmt.Errorf("%w: %w", hopper.ErrHardwareUnavailable, hopper.ErrEventStreamClosed)
			}
			class := a.filter.Observe(ev)
			if class != hopper.ClassValid {
				if class == hopper.ClassFalseShort || class == hopper.ClassFalseLong {
					a.logger.Debug(ctx, "Acceptor noise discarded", map[string]interface{}{
						"acceptor_id":    a.config.ID,
						"classification": class.String(),
					})
				}
				continue
			}
			pulses++
			last = ev.At
			timer.Reset(a.config.PulseTimeout)
			pending = timer.C
		}
	}
}

// settle 数えたパルスを1枚の硬貨に確定する
func (a *Acceptor) settle(ctx context.Context, pulses int, at time.Time, onCoin CoinHandler) {
	if pulses == 0 {
		return
	}
	d, known := a.config.PulseValues[pulses]

	a.mu.Lock()
	enabled := a.enabled
	if known {
		a.accepted++
	} else {
		a.unrecognized++
	}
	a.mu.Unlock()

	fields := map[string]interface{}{
		"acceptor_id": a.config.ID,
		"pulses":      pulses,
	}
	if !known {
		a.logger.Warn(ctx, "Unrecognized coin pulse train", fields)
		return
	}
	fields["denomination"] = d.Value()
	if enabled {
		a.logger.Info(ctx, "Coin accepted", fields)
	} else {
		// 投入口は物理的に受け取っているので在庫には入れる
		a.logger.Warn(ctx, "Coin accepted while inhibited", fields)
	}
	if onCoin != nil {
		onCoin(ctx, Coin{Denomination: d, Pulses: pulses, At: at})
	}
}

func (a *Acceptor) detach(ctx context.Context, handle hopper.Handle) {
	a.mu.Lock()
	a.handle = nil
	a.mu.Unlock()

	if err := handle.SetActuator(a.config.ID, false); err != nil {
		a.logger.Debug(ctx, "Failed to inhibit coin acceptor", map[string]interface{}{
			"acceptor_id": a.config.ID,
			"error":       err.Error(),
		})
	}
	if err := handle.Unsubscribe(a.config.ID); err != nil {
		a.logger.Debug(ctx, "Failed to unsubscribe acceptor edges", map[string]interface{}{
			"acceptor_id": a.config.ID,
			"error":       err.Error(),
		})
	}
	a.filter.Disarm()
	if err := handle.Close(); err != nil {
		a.logger.Warn(ctx, "Failed to close coin acceptor handle", map[string]interface{}{
			"acceptor_id": a.config.ID,
			"error":       err.Error(),
		})
	}
}

// SetEnabled インヒビットを解除（true）または設定（false）する
// 状態は覚えておき、接続し直した時にも適用する
func (a *Acceptor) SetEnabled(ctx context.Context, on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !on {
		a.enabled = false
	}
	if a.handle == nil {
		return fmt.Errorf("%w: coin acceptor not connected", hopper.ErrHardwareUnavailable)
	}
	if err := a.handle.SetActuator(a.config.ID, on); err != nil {
		return fmt.Errorf("%w: inhibit %s: %v", hopper.ErrHardwareUnavailable, a.config.ID, err)
	}
	a.enabled = on
	return nil
}

// Status 現在の状態を返す
func (a *Acceptor) Status(ctx context.Context) Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Status{
		Live:         a.handle != nil && a.handle.IsLive(ctx),
		Enabled:      a.enabled,
		Accepted:     a.accepted,
		Unrecognized: a.unrecognized,
	}
}
