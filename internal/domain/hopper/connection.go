package hopper

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ConnectionStatus 接続状態
type ConnectionStatus struct {
	Live       bool
	Generation uint64
	Hoppers    int
}

// ConnectionManager ハードウェアハンドルの生存確認と再構築を担う
type ConnectionManager struct {
	connector Connector
	hoppers   []Config
	settle    time.Duration
	logger    Logger

	mu         sync.Mutex
	handle     Handle
	dispenser  *Dispenser
	generation uint64
}

// NewConnectionManager 新しいConnectionManagerを作成
func NewConnectionManager(connector Connector, hoppers []Config, settle time.Duration, logger Logger) (*ConnectionManager, error) {
	seenID := make(map[string]bool, len(hoppers))
	seenDenom := make(map[int64]bool, len(hoppers))
	for _, h := range hoppers {
		if err := h.Filter.Validate(); err != nil {
			return nil, fmt.Errorf("hopper %s: %w", h.ID, err)
		}
		if seenID[h.ID] || seenDenom[h.Denomination.Value()] {
			return nil, fmt.Errorf("duplicate hopper %s for %s", h.ID, h.Denomination)
		}
		seenID[h.ID] = true
		seenDenom[h.Denomination.Value()] = true
	}
	return &ConnectionManager{
		connector: connector,
		hoppers:   append([]Config(nil), hoppers...),
		settle:    settle,
		logger:    logger,
	}, nil
}

// EnsureLive 接続が切れていればすべてのホッパーを解放して開き直す
// 払い出しのたびに呼び出す
func (m *ConnectionManager) EnsureLive(ctx context.Context) (*Dispenser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil && m.handle.IsLive(ctx) {
		return m.dispenser, nil
	}
	if m.handle != nil {
		m.logger.Warn(ctx, "Hardware handle is stale, reinitializing", map[string]interface{}{
			"generation": m.generation,
		})
	}
	return m.rebuild(ctx)
}

// Reconnect 接続状態に関係なく開き直す
func (m *ConnectionManager) Reconnect(ctx context.Context) (*Dispenser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rebuild(ctx)
}

// Status 接続状態を返す
func (m *ConnectionManager) Status(ctx context.Context) ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ConnectionStatus{
		Live:       m.handle != nil && m.handle.IsLive(ctx),
		Generation: m.generation,
		Hoppers:    len(m.hoppers),
	}
}

// Close ホッパーを解放してハンドルを閉じる
func (m *ConnectionManager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teardown(ctx)
}

func (m *ConnectionManager) rebuild(ctx context.Context) (*Dispenser, error) {
	if err := m.teardown(ctx); err != nil {
		m.logger.Warn(ctx, "Failed to close stale hardware handle", map[string]interface{}{
			"error": err.Error(),
		})
	}

	handle, err := m.connector.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHardwareUnavailable, err)
	}

	controllers := make([]*Controller, 0, len(m.hoppers))
	for _, cfg := range m.hoppers {
		c, err := NewController(cfg, handle, m.logger)
		if err != nil {
			_ = handle.Close()
			return nil, err
		}
		controllers = append(controllers, c)
	}

	m.handle = handle
	m.dispenser = NewDispenser(controllers, m.settle, m.logger)
	m.generation++

	m.logger.Info(ctx, "Hardware connection established", map[string]interface{}{
		"generation": m.generation,
		"hoppers":    len(controllers),
	})
	return m.dispenser, nil
}

func (m *ConnectionManager) teardown(ctx context.Context) error {
	if m.dispenser != nil {
		m.dispenser.Release(ctx)
		m.dispenser = nil
	}
	if m.handle == nil {
		return nil
	}
	err := m.handle.Close()
	m.handle = nil
	return err
}
