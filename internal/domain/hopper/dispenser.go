package hopper

import (
	"context"
	"fmt"
	"time"

	"change-server/internal/domain/coin"
)

// Dispenser 複数のホッパーで内訳どおりに硬貨を払い出す
type Dispenser struct {
	controllers map[coin.Denomination]*Controller
	settle      time.Duration
	logger      Logger
}

// NewDispenser 新しいDispenserを作成
func NewDispenser(controllers []*Controller, settle time.Duration, logger Logger) *Dispenser {
	byDenom := make(map[coin.Denomination]*Controller, len(controllers))
	for _, c := range controllers {
		byDenom[c.Denomination()] = c
	}
	return &Dispenser{controllers: byDenom, settle: settle, logger: logger}
}

// Controller 額面に対応するホッパーを返す
func (d *Dispenser) Controller(denom coin.Denomination) (*Controller, bool) {
	c, ok := d.controllers[denom]
	return c, ok
}

// Dispense 大きい額面から順に払い出す
// 詰まった額面があっても残りの額面は続行し、中断された場合は残りを失敗として記録する
func (d *Dispenser) Dispense(ctx context.Context, req coin.Breakdown, perHopperTimeout time.Duration) *Outcome {
	outcome := newOutcome(req)
	denoms := req.Denominations()

	for i, denom := range denoms {
		want := req[denom]

		if err := ctx.Err(); err != nil {
			outcome.fail(denom, want, fmt.Errorf("%w: %v", ErrDispenseAborted, err))
			continue
		}

		c, ok := d.controllers[denom]
		if !ok {
			outcome.fail(denom, want, fmt.Errorf("%w: %s", ErrHopperNotConfigured, denom))
			continue
		}

		d.logger.Info(ctx, "Dispensing coins", map[string]interface{}{
			"hopper_id":    c.ID(),
			"denomination": denom.Value(),
			"count":        want,
		})
		result := c.Run(ctx, want, perHopperTimeout)
		outcome.record(result)

		if result.Err != nil {
			d.logger.Error(ctx, "Hopper did not complete", result.Err, map[string]interface{}{
				"hopper_id":    c.ID(),
				"denomination": denom.Value(),
				"requested":    want,
				"confirmed":    result.Confirmed,
			})
		}

		if i < len(denoms)-1 && d.settle > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(d.settle):
			}
		}
	}
	return outcome
}

// Release すべてのホッパーを停止する
func (d *Dispenser) Release(ctx context.Context) {
	for _, c := range d.controllers {
		c.Release(ctx)
	}
}
