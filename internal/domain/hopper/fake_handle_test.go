package hopper

import (
	"context"
	"errors"
	"sync"
	"time"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func pulse(id string, start, width time.Duration) []SensorEvent {
	return []SensorEvent{
		{HopperID: id, Edge: EdgeRising, At: base.Add(start)},
		{HopperID: id, Edge: EdgeFalling, At: base.Add(start + width)},
	}
}

func pulses(id string, n int, width, gap time.Duration) []SensorEvent {
	var out []SensorEvent
	for i := 0; i < n; i++ {
		out = append(out, pulse(id, time.Duration(i)*(width+gap), width)...)
	}
	return out
}

// fakeHandle 購読時にスクリプトのイベントを流すハンドル
type fakeHandle struct {
	mu           sync.Mutex
	live         bool
	closed       bool
	script       map[string][]SensorEvent
	subs         map[string]chan SensorEvent
	actuators    map[string]bool
	actuatorOns  map[string]int
	unsubscribed map[string]int
	glitch       map[string]time.Duration
	subscribeErr error
}

func newFakeHandle(script map[string][]SensorEvent) *fakeHandle {
	return &fakeHandle{
		live:         true,
		script:       script,
		subs:         map[string]chan SensorEvent{},
		actuators:    map[string]bool{},
		actuatorOns:  map[string]int{},
		unsubscribed: map[string]int{},
		glitch:       map[string]time.Duration{},
	}
}

func (h *fakeHandle) IsLive(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live && !h.closed
}

func (h *fakeHandle) kill() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.live = false
}

func (h *fakeHandle) SetActuator(id string, on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("handle closed")
	}
	h.actuators[id] = on
	if on {
		h.actuatorOns[id]++
	}
	return nil
}

func (h *fakeHandle) SubscribeEdges(id string) (<-chan SensorEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribeErr != nil {
		return nil, h.subscribeErr
	}
	events := h.script[id]
	ch := make(chan SensorEvent, len(events)+1)
	for _, ev := range events {
		ch <- ev
	}
	h.subs[id] = ch
	return ch, nil
}

func (h *fakeHandle) Unsubscribe(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribed[id]++
	delete(h.subs, id)
	return nil
}

func (h *fakeHandle) SetGlitchFilter(id string, d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.glitch[id] = d
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeHandle) actuatorOn(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.actuators[id]
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, map[string]interface{})        {}
func (nopLogger) Info(context.Context, string, map[string]interface{})         {}
func (nopLogger) Warn(context.Context, string, map[string]interface{})         {}
func (nopLogger) Error(context.Context, string, error, map[string]interface{}) {}

func testFilterConfig() FilterConfig {
	return FilterConfig{
		NoiseFloor:    10 * time.Millisecond,
		MaxValidWidth: 200 * time.Millisecond,
		Cooldown:      30 * time.Millisecond,
	}
}
