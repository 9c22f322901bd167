package pigpio

import "time"

// tickClock pigpioの32bitマイクロ秒ティックを壁時計に換算する（約72分で一周する）
type tickClock struct {
	baseTime time.Time
	lastTick uint32
	elapsed  time.Duration
}

func newTickClock(tick uint32, now time.Time) *tickClock {
	return &tickClock{baseTime: now, lastTick: tick}
}

func (c *tickClock) at(tick uint32) time.Time {
	c.elapsed += time.Duration(tick-c.lastTick) * time.Microsecond
	c.lastTick = tick
	return c.baseTime.Add(c.elapsed)
}
