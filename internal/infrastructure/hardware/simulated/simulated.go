package simulated

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"change-server/internal/domain/hopper"
)

var (
	// ErrUnavailable シミュレーターが接続不可に設定されているエラー
	ErrUnavailable = errors.New("simulated hardware unavailable")
	// ErrInhibited インヒビット中の投入口に硬貨を入れたエラー（硬貨は返却される）
	ErrInhibited = errors.New("coin acceptor inhibited")
)

// Options シミュレーターの動作設定
type Options struct {
	// Hoppers 存在するホッパーID
	Hoppers []string
	// PulseWidth 硬貨1枚がセンサーを遮る時間
	PulseWidth time.Duration
	// PulseGap 硬貨と硬貨の間隔
	PulseGap time.Duration
	// Noise 硬貨の間に短いグリッチを混ぜる
	Noise bool
	// JamAfter ホッパーIDごとに、モーター起動からこの枚数を出した後に詰まる（未指定は詰まらない）
	JamAfter map[string]int64
	// Acceptors 存在する硬貨投入口ID（アクチュエーターはインヒビット解除として扱う）
	Acceptors []string
}

func (o Options) withDefaults() Options {
	if o.PulseWidth <= 0 {
		o.PulseWidth = 40 * time.Millisecond
	}
	if o.PulseGap <= 0 {
		o.PulseGap = 60 * time.Millisecond
	}
	return o
}

// Connector シミュレーターのハンドルを開く
type Connector struct {
	opts        Options
	unavailable atomic.Bool

	mu   sync.Mutex
	last *Handle
}

// NewConnector 新しいConnectorを作成
func NewConnector(opts Options) *Connector {
	return &Connector{opts: opts.withDefaults()}
}

// SetAvailable Open の成否を切り替える
func (c *Connector) SetAvailable(available bool) {
	c.unavailable.Store(!available)
}

// Last 最後に開いたハンドル
func (c *Connector) Last() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Open 新しいハンドルを開く
func (c *Connector) Open(ctx context.Context) (hopper.Handle, error) {
	if c.unavailable.Load() {
		return nil, ErrUnavailable
	}
	h := &Handle{
		opts:    c.opts,
		live:    true,
		hoppers: make(map[string]bool, len(c.opts.Hoppers)),
		accept:  make(map[string]bool, len(c.opts.Acceptors)),
		subs:    make(map[string]chan hopper.SensorEvent),
		running: make(map[string]context.CancelFunc),
		glitch:  make(map[string]time.Duration),
	}
	for _, id := range c.opts.Hoppers {
		h.hoppers[id] = true
	}
	for _, id := range c.opts.Acceptors {
		h.accept[id] = false
	}
	c.mu.Lock()
	c.last = h
	c.mu.Unlock()
	return h, nil
}

// Handle 硬貨の通過をセンサーエッジとして再現するハンドル
type Handle struct {
	opts Options

	mu      sync.Mutex
	live    bool
	closed  bool
	hoppers map[string]bool
	accept  map[string]bool // 投入口ID → インヒビット解除中か
	subs    map[string]chan hopper.SensorEvent
	running map[string]context.CancelFunc
	glitch  map[string]time.Duration
	wg      sync.WaitGroup
}

var _ hopper.Handle = (*Handle)(nil)

// Kill 接続が切れた状態にする
func (h *Handle) Kill() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.live = false
}

// IsLive 接続が生きているか
func (h *Handle) IsLive(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live && !h.closed
}

func (h *Handle) check(hopperID string) error {
	if h.closed || !h.live {
		return ErrUnavailable
	}
	if _, ok := h.accept[hopperID]; ok {
		return nil
	}
	if !h.hoppers[hopperID] {
		return fmt.Errorf("%w: %s", hopper.ErrHopperNotConfigured, hopperID)
	}
	return nil
}

// SetActuator モーターのオン/オフ（オンの間は一定間隔で硬貨を出す）
func (h *Handle) SetActuator(hopperID string, on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.accept[hopperID]; ok {
		if on {
			if err := h.check(hopperID); err != nil {
				return err
			}
		}
		h.accept[hopperID] = on
		return nil
	}
	if !on {
		if cancel, ok := h.running[hopperID]; ok {
			cancel()
			delete(h.running, hopperID)
		}
		return nil
	}
	if err := h.check(hopperID); err != nil {
		return err
	}
	if _, ok := h.running[hopperID]; ok {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.running[hopperID] = cancel
	h.wg.Add(1)
	go h.run(ctx, hopperID)
	return nil
}

// SubscribeEdges センサーエッジの配信を開始
func (h *Handle) SubscribeEdges(hopperID string) (<-chan hopper.SensorEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.check(hopperID); err != nil {
		return nil, err
	}
	if old, ok := h.subs[hopperID]; ok {
		close(old)
	}
	ch := make(chan hopper.SensorEvent, 64)
	h.subs[hopperID] = ch
	return ch, nil
}

// Unsubscribe センサーエッジの配信を停止
func (h *Handle) Unsubscribe(hopperID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[hopperID]; ok {
		close(ch)
		delete(h.subs, hopperID)
	}
	return nil
}

// SetGlitchFilter グリッチフィルタ（この長さ未満のノイズは配信しない）
func (h *Handle) SetGlitchFilter(hopperID string, d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.check(hopperID); err != nil {
		return err
	}
	h.glitch[hopperID] = d
	return nil
}

// Close すべてのモーターを止めて配信を閉じる
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for id, cancel := range h.running {
		cancel()
		delete(h.running, id)
	}
	h.mu.Unlock()

	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
	return nil
}

// InsertCoin 投入口に pulses 本のパルスを出す硬貨を入れる（パルスを出し終えるまで戻らない）
func (h *Handle) InsertCoin(acceptorID string, pulses int) error {
	h.mu.Lock()
	enabled, ok := h.accept[acceptorID]
	err := h.check(acceptorID)
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", hopper.ErrHopperNotConfigured, acceptorID)
	}
	if err != nil {
		return err
	}
	if !enabled {
		return ErrInhibited
	}

	ctx := context.Background()
	for i := 0; i < pulses; i++ {
		if i > 0 {
			sleep(ctx, h.opts.PulseGap)
		}
		h.pulse(ctx, acceptorID, h.opts.PulseWidth)
	}
	return nil
}

// Accepting 投入口のインヒビットが解除されているか
func (h *Handle) Accepting(acceptorID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.accept[acceptorID]
}

func (h *Handle) run(ctx context.Context, hopperID string) {
	defer h.wg.Done()

	jamAfter, jams := h.opts.JamAfter[hopperID]
	const glitchWidth = 2 * time.Millisecond

	for n := int64(0); ; n++ {
		if jams && n >= jamAfter {
			<-ctx.Done()
			return
		}
		if h.opts.Noise {
			if !h.pulse(ctx, hopperID, glitchWidth) {
				return
			}
		}
		if !sleep(ctx, h.opts.PulseGap) {
			return
		}
		if !h.pulse(ctx, hopperID, h.opts.PulseWidth) {
			return
		}
	}
}

// pulse 立ち上がりと立ち下がりを width の間隔で送る
func (h *Handle) pulse(ctx context.Context, hopperID string, width time.Duration) bool {
	h.mu.Lock()
	filtered := width < h.glitch[hopperID]
	h.mu.Unlock()
	if filtered {
		return sleep(ctx, width)
	}

	start := time.Now()
	h.emit(hopper.SensorEvent{HopperID: hopperID, Edge: hopper.EdgeRising, At: start})
	if !sleep(ctx, width) {
		return false
	}
	h.emit(hopper.SensorEvent{HopperID: hopperID, Edge: hopper.EdgeFalling, At: start.Add(width)})
	return true
}

func (h *Handle) emit(ev hopper.SensorEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.subs[ev.HopperID]
	if !ok {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
