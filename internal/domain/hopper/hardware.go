package hopper

import (
	"context"
	"time"
)

// Edge センサー信号のエッジ方向（論理レベル、アクティブローの反転は各ドライバで行う）
type Edge int

const (
	EdgeRising Edge = iota
	EdgeFalling
)

// String 文字列表現を返す
func (e Edge) String() string {
	if e == EdgeRising {
		return "rising"
	}
	return "falling"
}

// SensorEvent ホッパー1台のセンサーエッジ
type SensorEvent struct {
	HopperID string
	Edge     Edge
	At       time.Time
}

// Handle ハードウェアI/Oハンドル
type Handle interface {
	// IsLive 接続が生きているか
	IsLive(ctx context.Context) bool
	// SetActuator ホッパーのモーターをオン/オフ
	SetActuator(hopperID string, on bool) error
	// SubscribeEdges センサーエッジの配信を開始
	SubscribeEdges(hopperID string) (<-chan SensorEvent, error)
	// Unsubscribe センサーエッジの配信を停止（チャネルは閉じられる）
	Unsubscribe(hopperID string) error
	// SetGlitchFilter ハードウェア側のグリッチ除去時間を設定
	SetGlitchFilter(hopperID string, d time.Duration) error
	Close() error
}

// Connector 新しいハンドルを開く
type Connector interface {
	Open(ctx context.Context) (Handle, error)
}

// ConnectorFunc 関数をConnectorとして扱う
type ConnectorFunc func(ctx context.Context) (Handle, error)

// Open ハンドルを開く
func (f ConnectorFunc) Open(ctx context.Context) (Handle, error) {
	return f(ctx)
}

// Logger ホッパー制御が使うロガー
type Logger interface {
	Debug(ctx context.Context, message string, fields map[string]interface{})
	Info(ctx context.Context, message string, fields map[string]interface{})
	Warn(ctx context.Context, message string, fields map[string]interface{})
	Error(ctx context.Context, message string, err error, fields map[string]interface{})
}
