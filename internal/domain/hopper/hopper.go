package hopper

import (
	"context"
	"fmt"
	"time"

	"change-server/internal/domain/coin"
)

// Config ホッパー1台分の設定
type Config struct {
	ID           string
	Denomination coin.Denomination
	// GlitchFilter ハードウェア側で除去する短いパルスの長さ（0は無効）
	GlitchFilter time.Duration
	Filter       FilterConfig
}

// Result ホッパー1台分の払い出し結果
type Result struct {
	HopperID     string
	Denomination coin.Denomination
	Requested    int64
	Confirmed    int64
	Stats        FilterStats
	Err          error
}

// Controller ホッパー1台のモーターとセンサーフィルタを制御する
type Controller struct {
	config Config
	handle Handle
	filter *SensorFilter
	logger Logger
}

// NewController 新しいControllerを作成
func NewController(config Config, handle Handle, logger Logger) (*Controller, error) {
	filter, err := NewSensorFilter(config.ID, config.Filter)
	if err != nil {
		return nil, err
	}
	return &Controller{
		config: config,
		handle: handle,
		filter: filter,
		logger: logger,
	}, nil
}

// ID ホッパーIDを返す
func (c *Controller) ID() string {
	return c.config.ID
}

// Denomination 払い出す額面を返す
func (c *Controller) Denomination() coin.Denomination {
	return c.config.Denomination
}

// Filter センサーフィルタを返す
func (c *Controller) Filter() *SensorFilter {
	return c.filter
}

// Run モーターを回して want 枚の確定を待つ
// timeout はこのホッパー全体の制限時間。戻る時には必ずモーター停止・購読解除・フィルタ解除を行う
func (c *Controller) Run(ctx context.Context, want int64, timeout time.Duration) (result Result) {
	result = Result{
		HopperID:     c.config.ID,
		Denomination: c.config.Denomination,
		Requested:    want,
	}
	if want <= 0 {
		return result
	}

	events, err := c.handle.SubscribeEdges(c.config.ID)
	if err != nil {
		result.Err = fmt.Errorf("%w: subscribe %s: %v", ErrHardwareUnavailable, c.config.ID, err)
		return result
	}
	if c.config.GlitchFilter > 0 {
		if err := c.handle.SetGlitchFilter(c.config.ID, c.config.GlitchFilter); err != nil {
			c.logger.Warn(ctx, "Failed to set glitch filter", map[string]interface{}{
				"hopper_id": c.config.ID,
				"error":     err.Error(),
			})
		}
	}

	c.filter.Arm()
	defer func() {
		c.release(ctx)
		result.Stats = c.filter.Stats()
	}()

	if err := c.handle.SetActuator(c.config.ID, true); err != nil {
		result.Err = fmt.Errorf("%w: actuator %s: %v", ErrHardwareUnavailable, c.config.ID, err)
		return result
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			result.Confirmed = c.confirmed(want)
			result.Err = fmt.Errorf("%w: %v", ErrDispenseAborted, ctx.Err())
			return result

		case <-timer.C:
			result.Confirmed = c.confirmed(want)
			result.Err = fmt.Errorf("%w: hopper %s confirmed %d of %d %s coins",
				ErrJam, c.config.ID, result.Confirmed, want, c.config.Denomination)
			return result

		case ev, ok := <-events:
			if !ok {
				result.Confirmed = c.confirmed(want)
				result.Err = fmt.Errorf("%w: %w", ErrHardwareUnavailable, ErrEventStreamClosed)
				return result
			}
			class := c.filter.Observe(ev)
			c.logClassification(ctx, ev, class)
			if class == ClassValid && c.filter.Confirmed() >= want {
				result.Confirmed = c.confirmed(want)
				return result
			}
		}
	}
}

// Release モーターを止めてセンサーの配信を止める
func (c *Controller) Release(ctx context.Context) {
	c.release(ctx)
}

func (c *Controller) release(ctx context.Context) {
	if err := c.handle.SetActuator(c.config.ID, false); err != nil {
		c.logger.Error(ctx, "Failed to stop hopper actuator", err, map[string]interface{}{
			"hopper_id": c.config.ID,
		})
	}
	if c.filter.Armed() {
		if err := c.handle.Unsubscribe(c.config.ID); err != nil {
			c.logger.Warn(ctx, "Failed to unsubscribe sensor edges", map[string]interface{}{
				"hopper_id": c.config.ID,
				"error":     err.Error(),
			})
		}
	}
	c.filter.Disarm()
}

func (c *Controller) confirmed(want int64) int64 {
	n := c.filter.Confirmed()
	if n > want {
		return want
	}
	return n
}

func (c *Controller) logClassification(ctx context.Context, ev SensorEvent, class Classification) {
	fields := map[string]interface{}{
		"hopper_id":      c.config.ID,
		"edge":           ev.Edge.String(),
		"classification": class.String(),
	}
	switch class {
	case ClassStuckOpen:
		c.logger.Warn(ctx, "Sensor pulse window reopened before closing", fields)
	case ClassFalseShort, ClassFalseLong:
		c.logger.Debug(ctx, "Sensor noise discarded", fields)
	case ClassValid:
		fields["confirmed"] = c.filter.Confirmed()
		c.logger.Debug(ctx, "Coin confirmed", fields)
	}
}
