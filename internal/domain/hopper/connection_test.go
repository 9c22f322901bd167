package hopper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"change-server/internal/domain/coin"
)

type fakeConnector struct {
	mu      sync.Mutex
	handles []*fakeHandle
	fail    bool
	script  map[string][]SensorEvent
}

func (c *fakeConnector) Open(ctx context.Context) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, errors.New("connection refused")
	}
	h := newFakeHandle(c.script)
	c.handles = append(c.handles, h)
	return h, nil
}

func (c *fakeConnector) last() *fakeHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles[len(c.handles)-1]
}

func TestNewConnectionManager(t *testing.T) {
	_, err := NewConnectionManager(&fakeConnector{}, testHoppers(), 0, nopLogger{})
	require.NoError(t, err)

	dup := append(testHoppers(), Config{ID: "C", Denomination: 5, Filter: testFilterConfig()})
	_, err = NewConnectionManager(&fakeConnector{}, dup, 0, nopLogger{})
	assert.Error(t, err)

	bad := testHoppers()
	bad[0].Filter.MaxValidWidth = 0
	_, err = NewConnectionManager(&fakeConnector{}, bad, 0, nopLogger{})
	assert.ErrorIs(t, err, ErrInvalidFilterConfig)
}

func TestConnectionManager_EnsureLive(t *testing.T) {
	connector := &fakeConnector{script: map[string][]SensorEvent{
		"A": pulses("A", 2, 50*time.Millisecond, 100*time.Millisecond),
	}}
	m, err := NewConnectionManager(connector, testHoppers(), 0, nopLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	d1, err := m.EnsureLive(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.Status(ctx).Generation)

	// 生きている間は同じハンドルを使う
	d2, err := m.EnsureLive(ctx)
	require.NoError(t, err)
	assert.Same(t, d1, d2)
	assert.Len(t, connector.handles, 1)

	first := connector.last()
	first.kill()
	assert.False(t, m.Status(ctx).Live)

	d3, err := m.EnsureLive(ctx)
	require.NoError(t, err)
	assert.NotSame(t, d1, d3)
	assert.True(t, first.closed)
	assert.Len(t, connector.handles, 2)

	status := m.Status(ctx)
	assert.True(t, status.Live)
	assert.Equal(t, uint64(2), status.Generation)
	assert.Equal(t, 2, status.Hoppers)

	got := d3.Dispense(ctx, coin.Breakdown{1: 2}, time.Second)
	assert.True(t, got.Success())
	assert.Equal(t, coin.Breakdown{1: 2}, got.Dispensed)
}

func TestConnectionManager_EnsureLive_Unavailable(t *testing.T) {
	connector := &fakeConnector{fail: true}
	m, err := NewConnectionManager(connector, testHoppers(), 0, nopLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = m.EnsureLive(ctx)
	assert.ErrorIs(t, err, ErrHardwareUnavailable)
	assert.False(t, m.Status(ctx).Live)

	connector.fail = false
	_, err = m.EnsureLive(ctx)
	require.NoError(t, err)
	assert.True(t, m.Status(ctx).Live)
}

func TestConnectionManager_ReconnectAndClose(t *testing.T) {
	connector := &fakeConnector{}
	m, err := NewConnectionManager(connector, testHoppers(), 0, nopLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = m.EnsureLive(ctx)
	require.NoError(t, err)
	_, err = m.Reconnect(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), m.Status(ctx).Generation)
	assert.True(t, connector.handles[0].closed)

	require.NoError(t, m.Close(ctx))
	assert.True(t, connector.last().closed)
	assert.False(t, m.Status(ctx).Live)
}
