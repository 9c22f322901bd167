package hopper

import (
	"fmt"
	"sync"
	"time"
)

// FilterConfig センサーパルスの判定しきい値
type FilterConfig struct {
	// NoiseFloor これより短いパルスはノイズ
	NoiseFloor time.Duration
	// MaxValidWidth これより長いパルスはセンサーの張り付き
	MaxValidWidth time.Duration
	// Cooldown 直前の確定イベントからこの時間内に閉じたパルスはノイズ
	Cooldown time.Duration
}

// Validate しきい値の整合性を検証
func (c FilterConfig) Validate() error {
	if c.NoiseFloor < 0 || c.Cooldown < 0 {
		return fmt.Errorf("%w: negative noise floor or cooldown", ErrInvalidFilterConfig)
	}
	if c.MaxValidWidth <= c.NoiseFloor {
		return fmt.Errorf("%w: max valid width %s must exceed noise floor %s",
			ErrInvalidFilterConfig, c.MaxValidWidth, c.NoiseFloor)
	}
	return nil
}

// Classification エッジの判定結果
type Classification int

const (
	ClassIgnored    Classification = iota // 待機中、または対応する立ち上がりのない立ち下がり
	ClassOpened                           // パルス開始
	ClassStuckOpen                        // 開いたパルスを破棄して開き直した
	ClassValid                            // 硬貨の通過を確定
	ClassFalseShort                       // 短すぎる、またはクールダウン中
	ClassFalseLong                        // 長すぎる
)

// String 文字列表現を返す
func (c Classification) String() string {
	switch c {
	case ClassIgnored:
		return "ignored"
	case ClassOpened:
		return "opened"
	case ClassStuckOpen:
		return "stuck_open"
	case ClassValid:
		return "valid"
	case ClassFalseShort:
		return "false_short"
	case ClassFalseLong:
		return "false_long"
	default:
		return "unknown"
	}
}

// PulseWindow 立ち上がりエッジから対応する立ち下がりエッジまでの一時状態
type PulseWindow struct {
	HopperID string
	Open     time.Time
}

// FilterStats フィルタの判定件数
type FilterStats struct {
	Confirmed  int64
	FalseShort int64
	FalseLong  int64
	StuckOpen  int64
	Ignored    int64
}

// Noise ノイズとして捨てたパルス数
func (s FilterStats) Noise() int64 {
	return s.FalseShort + s.FalseLong + s.StuckOpen
}

// SensorFilter ホッパー1台分のセンサーフィルタ
// 状態はすべて mu の下でのみ変更する
type SensorFilter struct {
	hopperID string
	config   FilterConfig

	mu            sync.Mutex
	armed         bool
	window        *PulseWindow
	lastConfirmed time.Time
	stats         FilterStats
}

// NewSensorFilter 新しいSensorFilterを作成
func NewSensorFilter(hopperID string, config FilterConfig) (*SensorFilter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SensorFilter{hopperID: hopperID, config: config}, nil
}

// Arm 判定を開始する（確定枚数と統計はリセット）
func (f *SensorFilter) Arm() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed = true
	f.window = nil
	f.lastConfirmed = time.Time{}
	f.stats = FilterStats{}
}

// Disarm 判定を停止し、開いているパルスを破棄する
func (f *SensorFilter) Disarm() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed = false
	f.window = nil
}

// Armed 判定中かどうか
func (f *SensorFilter) Armed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.armed
}

// Observe エッジを1件判定する
func (f *SensorFilter) Observe(ev SensorEvent) Classification {
	f.mu.Lock()
	defer f.mu.Unlock()

	class := f.classify(ev)
	switch class {
	case ClassValid:
		f.stats.Confirmed++
	case ClassFalseShort:
		f.stats.FalseShort++
	case ClassFalseLong:
		f.stats.FalseLong++
	case ClassStuckOpen:
		f.stats.StuckOpen++
	case ClassIgnored:
		f.stats.Ignored++
	}
	return class
}

func (f *SensorFilter) classify(ev SensorEvent) Classification {
	if !f.armed {
		return ClassIgnored
	}

	switch ev.Edge {
	case EdgeRising:
		stuck := f.window != nil
		f.window = &PulseWindow{HopperID: f.hopperID, Open: ev.At}
		if stuck {
			return ClassStuckOpen
		}
		return ClassOpened

	case EdgeFalling:
		if f.window == nil {
			return ClassIgnored
		}
		width := ev.At.Sub(f.window.Open)
		f.window = nil

		if width < f.config.NoiseFloor {
			return ClassFalseShort
		}
		if !f.lastConfirmed.IsZero() && ev.At.Sub(f.lastConfirmed) < f.config.Cooldown {
			return ClassFalseShort
		}
		if width > f.config.MaxValidWidth {
			return ClassFalseLong
		}
		f.lastConfirmed = ev.At
		return ClassValid
	}
	return ClassIgnored
}

// Confirmed 確定した硬貨の枚数
func (f *SensorFilter) Confirmed() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats.Confirmed
}

// Stats 判定件数を返す
func (f *SensorFilter) Stats() FilterStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Window 開いているパルスを返す
func (f *SensorFilter) Window() (PulseWindow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.window == nil {
		return PulseWindow{}, false
	}
	return *f.window, true
}
