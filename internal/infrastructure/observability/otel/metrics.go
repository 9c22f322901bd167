package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics メトリクス定義
type Metrics struct {
	// 確定した払い出し硬貨数
	CoinsDispensed metric.Int64Counter

	// 払い出し処理の結果（completed / partial / failed）
	DispenseCount metric.Int64Counter

	// ホッパーの詰まり
	JamCount metric.Int64Counter

	// センサーパルスの判定結果
	SensorPulseCount metric.Int64Counter

	// ハードウェアの再接続
	ReconnectCount metric.Int64Counter

	// 支払額の検証結果
	ValidationCount metric.Int64Counter

	// 投入口で受け付けた硬貨
	CoinsAccepted metric.Int64Counter

	// 額面ごとの在庫枚数
	CoinInventory metric.Int64Gauge

	// リクエスト数
	RequestCount metric.Int64Counter

	// レスポンス時間
	ResponseTime metric.Float64Histogram

	// エラー率
	ErrorCount metric.Int64Counter
}

// NewMetrics 新しいMetricsを作成
func NewMetrics(meterName string) (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}

	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
	}{
		{&m.CoinsDispensed, "coins_dispensed_total", "Total number of coins confirmed by hopper sensors"},
		{&m.DispenseCount, "dispenses_total", "Total number of change dispense attempts"},
		{&m.JamCount, "hopper_jams_total", "Total number of hopper jams"},
		{&m.SensorPulseCount, "sensor_pulses_total", "Total number of classified sensor pulses"},
		{&m.ReconnectCount, "hardware_reconnects_total", "Total number of hardware reconnections"},
		{&m.ValidationCount, "payment_validations_total", "Total number of payment validations"},
		{&m.CoinsAccepted, "coins_accepted_total", "Total number of coins recognized by the coin acceptor"},
		{&m.RequestCount, "requests_total", "Total number of requests"},
		{&m.ErrorCount, "errors_total", "Total number of errors"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.description))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	inventory, err := meter.Int64Gauge(
		"coin_inventory",
		metric.WithDescription("Coins on hand per denomination"),
	)
	if err != nil {
		return nil, err
	}
	m.CoinInventory = inventory

	responseTime, err := meter.Float64Histogram(
		"response_time_seconds",
		metric.WithDescription("Response time in seconds"),
	)
	if err != nil {
		return nil, err
	}
	m.ResponseTime = responseTime

	return m, nil
}

// RecordCoinsDispensed 確定した払い出し枚数を記録
func (m *Metrics) RecordCoinsDispensed(ctx context.Context, denomination int64, count int64) {
	if count <= 0 {
		return
	}
	m.CoinsDispensed.Add(ctx, count,
		metric.WithAttributes(attribute.Int64("denomination", denomination)),
	)
}

// RecordDispense 払い出し処理の結果を記録
func (m *Metrics) RecordDispense(ctx context.Context, status string) {
	m.DispenseCount.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordJam ホッパーの詰まりを記録
func (m *Metrics) RecordJam(ctx context.Context, hopperID string, denomination int64) {
	m.JamCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("hopper_id", hopperID),
			attribute.Int64("denomination", denomination),
		),
	)
}

// RecordSensorPulses センサーパルスの判定件数を記録
func (m *Metrics) RecordSensorPulses(ctx context.Context, hopperID, classification string, count int64) {
	if count <= 0 {
		return
	}
	m.SensorPulseCount.Add(ctx, count,
		metric.WithAttributes(
			attribute.String("hopper_id", hopperID),
			attribute.String("classification", classification),
		),
	)
}

// RecordReconnect ハードウェアの再接続を記録
func (m *Metrics) RecordReconnect(ctx context.Context, success bool) {
	m.ReconnectCount.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("success", success)),
	)
}

// RecordValidation 支払額の検証結果を記録
func (m *Metrics) RecordValidation(ctx context.Context, result string) {
	m.ValidationCount.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordCoinAccepted 投入口で受け付けた硬貨を記録（recorded は在庫に反映できたか）
func (m *Metrics) RecordCoinAccepted(ctx context.Context, denomination int64, recorded bool) {
	m.CoinsAccepted.Add(ctx, 1,
		metric.WithAttributes(
			attribute.Int64("denomination", denomination),
			attribute.Bool("recorded", recorded),
		),
	)
}

// RecordInventory 額面ごとの在庫枚数を記録
func (m *Metrics) RecordInventory(ctx context.Context, counts map[int64]int64) {
	for denomination, count := range counts {
		m.CoinInventory.Record(ctx, count,
			metric.WithAttributes(attribute.Int64("denomination", denomination)),
		)
	}
}

// RecordRequest リクエストを記録
func (m *Metrics) RecordRequest(ctx context.Context, method, path string) {
	m.RequestCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordResponseTime レスポンス時間を記録
func (m *Metrics) RecordResponseTime(ctx context.Context, method, path string, duration float64) {
	m.ResponseTime.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordError エラーを記録
func (m *Metrics) RecordError(ctx context.Context, errorType string) {
	m.ErrorCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error_type", errorType),
		),
	)
}
