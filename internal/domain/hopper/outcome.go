package hopper

import (
	"errors"

	"change-server/internal/domain/coin"
)

// Failure 額面ごとの払い出し失敗
type Failure struct {
	Denomination coin.Denomination
	Requested    int64
	Confirmed    int64
	Err          error
}

// Outcome 払い出し結果（要求枚数と確定枚数の両方を保持する）
type Outcome struct {
	Requested coin.Breakdown
	Dispensed coin.Breakdown
	Failures  []Failure
	Hoppers   []Result
}

func newOutcome(req coin.Breakdown) *Outcome {
	return &Outcome{
		Requested: req.Clone(),
		Dispensed: coin.Breakdown{},
	}
}

// Success すべての額面で要求枚数を確定できたか
// 確定枚数が要求に届かない額面が1つでもあれば失敗
func (o *Outcome) Success() bool {
	if len(o.Failures) > 0 {
		return false
	}
	for d, n := range o.Requested {
		if n > 0 && o.Dispensed[d] < n {
			return false
		}
	}
	return true
}

// Partial 一部だけ払い出せたか
func (o *Outcome) Partial() bool {
	return !o.Success() && o.Dispensed.Coins() > 0
}

// Err 失敗理由（成功時はnil）
func (o *Outcome) Err() error {
	if o.Success() {
		return nil
	}
	if len(o.Failures) == 0 {
		return ErrJam
	}
	errs := make([]error, 0, len(o.Failures))
	for _, f := range o.Failures {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}

// RequestedAmount 要求金額
func (o *Outcome) RequestedAmount() int64 {
	return o.Requested.Total()
}

// DispensedAmount 確定した払い出し金額
func (o *Outcome) DispensedAmount() int64 {
	return o.Dispensed.Total()
}

// Shortfall 払い出せなかった金額
func (o *Outcome) Shortfall() int64 {
	return o.RequestedAmount() - o.DispensedAmount()
}

func (o *Outcome) record(r Result) {
	o.Hoppers = append(o.Hoppers, r)
	if r.Confirmed > 0 {
		o.Dispensed[r.Denomination] += r.Confirmed
	}
	if r.Err != nil || r.Confirmed < r.Requested {
		err := r.Err
		if err == nil {
			err = ErrJam
		}
		o.Failures = append(o.Failures, Failure{
			Denomination: r.Denomination,
			Requested:    r.Requested,
			Confirmed:    r.Confirmed,
			Err:          err,
		})
	}
}

func (o *Outcome) fail(d coin.Denomination, requested int64, err error) {
	o.Failures = append(o.Failures, Failure{Denomination: d, Requested: requested, Err: err})
}
