package simulated

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"change-server/internal/domain/acceptor"
	"change-server/internal/domain/coin"
	"change-server/internal/domain/hopper"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, map[string]interface{})        {}
func (nopLogger) Info(context.Context, string, map[string]interface{})         {}
func (nopLogger) Warn(context.Context, string, map[string]interface{})         {}
func (nopLogger) Error(context.Context, string, error, map[string]interface{}) {}

func hopperConfigs() []hopper.Config {
	filter := hopper.FilterConfig{
		NoiseFloor:    10 * time.Millisecond,
		MaxValidWidth: 200 * time.Millisecond,
		Cooldown:      20 * time.Millisecond,
	}
	return []hopper.Config{
		{ID: "A", Denomination: 1, Filter: filter},
		{ID: "B", Denomination: 5, Filter: filter},
	}
}

func fastOptions() Options {
	return Options{
		Hoppers:    []string{"A", "B"},
		PulseWidth: 15 * time.Millisecond,
		PulseGap:   30 * time.Millisecond,
	}
}

func TestSimulator_DispenseWithNoise(t *testing.T) {
	opts := fastOptions()
	opts.Noise = true
	connector := NewConnector(opts)

	m, err := hopper.NewConnectionManager(connector, hopperConfigs(), 0, nopLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	d, err := m.EnsureLive(ctx)
	require.NoError(t, err)

	outcome := d.Dispense(ctx, coin.Breakdown{5: 2, 1: 3}, 2*time.Second)
	require.NoError(t, outcome.Err())
	assert.True(t, outcome.Success())
	assert.Equal(t, coin.Breakdown{5: 2, 1: 3}, outcome.Dispensed)

	var noise int64
	for _, r := range outcome.Hoppers {
		noise += r.Stats.FalseShort
	}
	assert.Positive(t, noise)
}

func TestSimulator_Jam(t *testing.T) {
	opts := fastOptions()
	opts.JamAfter = map[string]int64{"A": 1}
	connector := NewConnector(opts)

	m, err := hopper.NewConnectionManager(connector, hopperConfigs(), 0, nopLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	d, err := m.EnsureLive(ctx)
	require.NoError(t, err)

	outcome := d.Dispense(ctx, coin.Breakdown{1: 2}, 300*time.Millisecond)
	assert.False(t, outcome.Success())
	assert.ErrorIs(t, outcome.Err(), hopper.ErrJam)
	assert.Equal(t, coin.Breakdown{1: 1}, outcome.Dispensed)
}

func TestSimulator_Reconnect(t *testing.T) {
	connector := NewConnector(fastOptions())
	m, err := hopper.NewConnectionManager(connector, hopperConfigs(), 0, nopLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = m.EnsureLive(ctx)
	require.NoError(t, err)
	first := connector.Last()
	first.Kill()

	connector.SetAvailable(false)
	_, err = m.EnsureLive(ctx)
	assert.ErrorIs(t, err, hopper.ErrHardwareUnavailable)
	assert.True(t, errors.Is(err, hopper.ErrHardwareUnavailable))

	connector.SetAvailable(true)
	d, err := m.EnsureLive(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, connector.Last())

	outcome := d.Dispense(ctx, coin.Breakdown{5: 1}, 2*time.Second)
	assert.True(t, outcome.Success())
}

func TestHandle_GlitchFilterSuppressesNoise(t *testing.T) {
	opts := fastOptions()
	opts.Noise = true
	h, err := NewConnector(opts).Open(context.Background())
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.SetGlitchFilter("A", 5*time.Millisecond))
	events, err := h.SubscribeEdges("A")
	require.NoError(t, err)
	require.NoError(t, h.SetActuator("A", true))

	var got []hopper.SensorEvent
	for len(got) < 4 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for pulses")
		}
	}
	require.NoError(t, h.SetActuator("A", false))

	for i := 0; i+1 < len(got); i += 2 {
		assert.Equal(t, hopper.EdgeRising, got[i].Edge)
		assert.Equal(t, 15*time.Millisecond, got[i+1].At.Sub(got[i].At))
	}

	_, err = h.SubscribeEdges("Z")
	assert.ErrorIs(t, err, hopper.ErrHopperNotConfigured)
}

func TestHandle_InsertCoin(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		enable  bool
		kill    bool
		wantErr error
	}{
		{"正常系: インヒビット解除中は受け付ける", "acceptor", true, false, nil},
		{"異常系: インヒビット中は返却", "acceptor", false, false, ErrInhibited},
		{"異常系: 存在しない投入口", "coin-slot", true, false, hopper.ErrHopperNotConfigured},
		{"異常系: 切断中", "acceptor", true, true, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := fastOptions()
			opts.Acceptors = []string{"acceptor"}
			h, err := NewConnector(opts).Open(context.Background())
			require.NoError(t, err)
			handle := h.(*Handle)
			defer handle.Close()

			events, err := handle.SubscribeEdges("acceptor")
			require.NoError(t, err)
			if tt.enable {
				require.NoError(t, handle.SetActuator("acceptor", true))
			}
			if tt.kill {
				handle.Kill()
			}

			err = handle.InsertCoin(tt.id, 2)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, events)
				return
			}
			require.NoError(t, err)
			assert.True(t, handle.Accepting("acceptor"))
			require.Len(t, events, 4)
			first := <-events
			assert.Equal(t, hopper.EdgeRising, first.Edge)
			assert.Equal(t, "acceptor", first.HopperID)
		})
	}
}

func TestSimulator_AcceptorRecognizesCoins(t *testing.T) {
	opts := fastOptions()
	opts.Acceptors = []string{"acceptor"}
	connector := NewConnector(opts)

	a, err := acceptor.New(acceptor.Config{
		ID:           "acceptor",
		PulseValues:  map[int]coin.Denomination{1: 1, 2: 5},
		PulseTimeout: 100 * time.Millisecond,
		Filter: hopper.FilterConfig{
			NoiseFloor:    5 * time.Millisecond,
			MaxValidWidth: 150 * time.Millisecond,
			Cooldown:      10 * time.Millisecond,
		},
		RetryDelay: 10 * time.Millisecond,
	}, connector, nopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	coins := make(chan acceptor.Coin, 4)
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx, func(ctx context.Context, c acceptor.Coin) { coins <- c })
	}()
	require.Eventually(t, func() bool { return a.Status(ctx).Live }, time.Second, 5*time.Millisecond)

	handle := connector.Last()
	assert.ErrorIs(t, handle.InsertCoin("acceptor", 1), ErrInhibited)

	require.NoError(t, a.SetEnabled(ctx, true))
	next := func() int64 {
		select {
		case c := <-coins:
			return c.Denomination.Value()
		case <-time.After(2 * time.Second):
			t.Fatal("coin not recognized")
			return 0
		}
	}
	// 硬貨ごとに確定を待ってから次を入れる
	require.NoError(t, handle.InsertCoin("acceptor", 2))
	assert.Equal(t, int64(5), next())
	require.NoError(t, handle.InsertCoin("acceptor", 1))
	assert.Equal(t, int64(1), next())

	cancel()
	require.NoError(t, <-done)
	assert.False(t, handle.Accepting("acceptor"))
}
