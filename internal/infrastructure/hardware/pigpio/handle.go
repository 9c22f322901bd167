package pigpio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"change-server/internal/domain/hopper"
)

// Pins ホッパー1台のGPIO割り当て
type Pins struct {
	Signal int
	Enable int
}

// Options pigpiod接続の設定
type Options struct {
	Address     string
	DialTimeout time.Duration
	// ActiveLow センサー信号とモーターのイネーブルがローアクティブ
	ActiveLow bool
	Pins      map[string]Pins
	// EventBuffer 購読チャネルのバッファ長
	EventBuffer int
}

// Connector pigpiodへの接続を開く
type Connector struct {
	opts   Options
	logger hopper.Logger
}

// NewConnector 新しいConnectorを作成
func NewConnector(opts Options, logger hopper.Logger) *Connector {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 3 * time.Second
	}
	return &Connector{opts: opts, logger: logger}
}

// Open コマンド用と通知用の2本のソケットを開き、ピンを初期化する
func (c *Connector) Open(ctx context.Context) (hopper.Handle, error) {
	dialer := net.Dialer{Timeout: c.opts.DialTimeout}
	cmdConn, err := dialer.DialContext(ctx, "tcp", c.opts.Address)
	if err != nil {
		return nil, fmt.Errorf("dial pigpiod %s: %w", c.opts.Address, err)
	}
	notifyConn, err := dialer.DialContext(ctx, "tcp", c.opts.Address)
	if err != nil {
		cmdConn.Close()
		return nil, fmt.Errorf("dial pigpiod notify %s: %w", c.opts.Address, err)
	}

	h := &Handle{
		opts:       c.opts,
		logger:     c.logger,
		cmdConn:    cmdConn,
		notifyConn: notifyConn,
		subs:       make(map[string]chan hopper.SensorEvent),
		done:       make(chan struct{}),
	}
	if err := h.init(); err != nil {
		h.closeConns()
		return nil, err
	}
	go h.readReports()
	return h, nil
}

// Handle pigpiodとの接続
type Handle struct {
	opts   Options
	logger hopper.Logger

	cmdMu   sync.Mutex
	cmdConn net.Conn

	notifyConn   net.Conn
	notifyHandle uint32

	subsMu    sync.Mutex
	subs      map[string]chan hopper.SensorEvent
	lastLevel uint32
	clock     *tickClock

	closeOnce sync.Once
	done      chan struct{}
	readErr   error
}

var _ hopper.Handle = (*Handle)(nil)

func (h *Handle) init() error {
	// 通知ソケットをハンドル付きで開く
	if err := h.notifyConn.SetDeadline(time.Now().Add(h.opts.DialTimeout)); err != nil {
		return err
	}
	res, err := roundTrip(h.notifyConn, command{Cmd: cmdNOIB})
	if err != nil {
		return fmt.Errorf("open notify channel: %w", err)
	}
	if err := h.notifyConn.SetDeadline(time.Time{}); err != nil {
		return err
	}
	h.notifyHandle = uint32(res)

	for id, pins := range h.opts.Pins {
		pud := uint32(pudDown)
		if h.opts.ActiveLow {
			pud = pudUp
		}
		steps := []command{
			{Cmd: cmdModes, P1: uint32(pins.Signal), P2: modeInput},
			{Cmd: cmdPUD, P1: uint32(pins.Signal), P2: pud},
			{Cmd: cmdModes, P1: uint32(pins.Enable), P2: modeOutput},
			{Cmd: cmdWrite, P1: uint32(pins.Enable), P2: h.outputLevel(false)},
		}
		for _, step := range steps {
			if _, err := h.command(step); err != nil {
				return fmt.Errorf("init hopper %s: %w", id, err)
			}
		}
	}

	levels, err := h.command(command{Cmd: cmdBR1})
	if err != nil {
		return fmt.Errorf("read levels: %w", err)
	}
	tick, err := h.command(command{Cmd: cmdTick})
	if err != nil {
		return fmt.Errorf("read tick: %w", err)
	}
	h.lastLevel = uint32(levels)
	h.clock = newTickClock(uint32(tick), time.Now())
	return nil
}

func (h *Handle) command(c command) (int32, error) {
	h.cmdMu.Lock()
	defer h.cmdMu.Unlock()
	if err := h.cmdConn.SetDeadline(time.Now().Add(h.opts.DialTimeout)); err != nil {
		return 0, err
	}
	return roundTrip(h.cmdConn, c)
}

func (h *Handle) outputLevel(on bool) uint32 {
	if on != h.opts.ActiveLow {
		return 1
	}
	return 0
}

func (h *Handle) pins(hopperID string) (Pins, error) {
	pins, ok := h.opts.Pins[hopperID]
	if !ok {
		return Pins{}, fmt.Errorf("%w: %s", hopper.ErrHopperNotConfigured, hopperID)
	}
	return pins, nil
}

// IsLive 通知の読み取りが続いていて、コマンドに応答するか
func (h *Handle) IsLive(ctx context.Context) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	_, err := h.command(command{Cmd: cmdTick})
	return err == nil
}

// SetActuator モーターのイネーブルピンを切り替える
func (h *Handle) SetActuator(hopperID string, on bool) error {
	pins, err := h.pins(hopperID)
	if err != nil {
		return err
	}
	_, err = h.command(command{Cmd: cmdWrite, P1: uint32(pins.Enable), P2: h.outputLevel(on)})
	return err
}

// SetGlitchFilter pigpiod側のグリッチフィルタを設定する
func (h *Handle) SetGlitchFilter(hopperID string, d time.Duration) error {
	pins, err := h.pins(hopperID)
	if err != nil {
		return err
	}
	_, err = h.command(command{Cmd: cmdFG, P1: uint32(pins.Signal), P2: uint32(d.Microseconds())})
	return err
}

// SubscribeEdges センサーピンを通知対象に加える
func (h *Handle) SubscribeEdges(hopperID string) (<-chan hopper.SensorEvent, error) {
	if _, err := h.pins(hopperID); err != nil {
		return nil, err
	}

	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	select {
	case <-h.done:
		return nil, fmt.Errorf("notify channel closed: %v", h.readErr)
	default:
	}
	if old, ok := h.subs[hopperID]; ok {
		close(old)
	}
	ch := make(chan hopper.SensorEvent, h.opts.EventBuffer)
	h.subs[hopperID] = ch
	if err := h.updateMask(); err != nil {
		delete(h.subs, hopperID)
		close(ch)
		return nil, err
	}
	return ch, nil
}

// Unsubscribe センサーピンを通知対象から外す
func (h *Handle) Unsubscribe(hopperID string) error {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	ch, ok := h.subs[hopperID]
	if !ok {
		return nil
	}
	delete(h.subs, hopperID)
	close(ch)
	return h.updateMask()
}

// updateMask subsMu を保持して呼び出す
func (h *Handle) updateMask() error {
	var mask uint32
	for id := range h.subs {
		mask |= 1 << uint(h.opts.Pins[id].Signal)
	}
	_, err := h.command(command{Cmd: cmdNB, P1: h.notifyHandle, P2: mask})
	return err
}

// Close 通知を閉じてソケットを閉じる
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		_, nerr := h.command(command{Cmd: cmdNC, P1: h.notifyHandle})
		cerr := h.closeConns()
		err = errors.Join(nerr, cerr)
	})
	return err
}

func (h *Handle) closeConns() error {
	return errors.Join(h.cmdConn.Close(), h.notifyConn.Close())
}

// readReports 通知ソケットを読み続け、購読中のピンのエッジを配信する
func (h *Handle) readReports() {
	buf := make([]byte, reportSize)
	for {
		if _, err := io.ReadFull(h.notifyConn, buf); err != nil {
			h.subsMu.Lock()
			h.readErr = err
			for id, ch := range h.subs {
				close(ch)
				delete(h.subs, id)
			}
			close(h.done)
			h.subsMu.Unlock()
			return
		}
		h.dispatch(decodeReport(buf))
	}
}

func (h *Handle) dispatch(r report) {
	if !r.levelChange() {
		return
	}

	h.subsMu.Lock()
	defer h.subsMu.Unlock()

	changed := r.Level ^ h.lastLevel
	h.lastLevel = r.Level
	at := h.clock.at(r.Tick)

	for id, ch := range h.subs {
		bit := uint32(1) << uint(h.opts.Pins[id].Signal)
		if changed&bit == 0 {
			continue
		}
		high := r.Level&bit != 0
		edge := hopper.EdgeFalling
		if high != h.opts.ActiveLow {
			edge = hopper.EdgeRising
		}
		select {
		case ch <- hopper.SensorEvent{HopperID: id, Edge: edge, At: at}:
		default:
			h.logger.Warn(context.Background(), "Sensor event dropped, subscriber is not reading", map[string]interface{}{
				"hopper_id": id,
				"seq":       r.Seq,
			})
		}
	}
}
