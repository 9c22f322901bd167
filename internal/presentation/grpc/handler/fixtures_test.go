package handler

import (
	"bytes"
	"context"
	"testing"
	"time"

	dispenseapp "change-server/internal/application/change_dispense"
	paymentapp "change-server/internal/application/payment"
	"change-server/internal/domain/change"
	"change-server/internal/domain/coin"
	"change-server/internal/domain/dispense"
	"change-server/internal/domain/hopper"
	"change-server/internal/domain/service"
	"change-server/internal/infrastructure/hardware/simulated"
	otelinfra "change-server/internal/infrastructure/observability/otel"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/protobuf/types/known/structpb"
)

// MockInventoryRepository モック在庫リポジトリ
type MockInventoryRepository struct {
	mock.Mock
}

func (m *MockInventoryRepository) Read(ctx context.Context) (*coin.Inventory, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coin.Inventory), args.Error(1)
}

func (m *MockInventoryRepository) Write(ctx context.Context, inv *coin.Inventory) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

// MockRecordRepository モック台帳リポジトリ
type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) Save(ctx context.Context, rec *dispense.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRecordRepository) FindByRecordID(ctx context.Context, recordID string) (*dispense.Record, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispense.Record), args.Error(1)
}

func (m *MockRecordRepository) FindRecent(ctx context.Context, limit, offset int) ([]*dispense.Record, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dispense.Record), args.Error(1)
}

type testEnv struct {
	inventory *MockInventoryRepository
	records   *MockRecordRepository
	connector *simulated.Connector
	change    *ChangeHandler
	admin     *AdminHandler
}

func newTestEnv(t *testing.T, jamAfter map[string]int64) *testEnv {
	t.Helper()

	logger := otelinfra.NewLoggerWithWriter(noop.NewTracerProvider().Tracer("test"), &bytes.Buffer{}, otelinfra.LogLevelDebug)
	metrics, err := otelinfra.NewMetrics("test")
	require.NoError(t, err)

	env := &testEnv{
		inventory: new(MockInventoryRepository),
		records:   new(MockRecordRepository),
	}

	changeService, err := service.NewChangeService(env.inventory, change.Policy{
		Denominations:        coin.MustNewDenominationSet(1, 5),
		ReserveThresholds:    map[coin.Denomination]int64{1: 10, 5: 5},
		MaxChangeLimit:       50,
		SmallChangeBand:      5,
		MediumChangeBand:     20,
		RoundingUnits:        []int64{10, 20, 50, 100},
		SuggestionLimit:      5,
		AcceptedPayments:     []int64{1, 5, 10, 20, 50, 100},
		LimitedCapacityBelow: 10,
	})
	require.NoError(t, err)

	filter := hopper.FilterConfig{
		NoiseFloor:    5 * time.Millisecond,
		MaxValidWidth: 200 * time.Millisecond,
		Cooldown:      10 * time.Millisecond,
	}
	env.connector = simulated.NewConnector(simulated.Options{
		Hoppers:    []string{"A", "B"},
		PulseWidth: 15 * time.Millisecond,
		PulseGap:   25 * time.Millisecond,
		JamAfter:   jamAfter,
	})
	hardware, err := hopper.NewConnectionManager(env.connector, []hopper.Config{
		{ID: "A", Denomination: 1, Filter: filter},
		{ID: "B", Denomination: 5, Filter: filter},
	}, 0, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hardware.Close(context.Background()) })

	paymentService := paymentapp.NewPaymentApplicationService(changeService, logger, metrics)
	dispenseService := dispenseapp.NewDispenseApplicationService(changeService, env.inventory, env.records, hardware, logger, metrics, dispenseapp.Options{
		HopperTimeout:      400 * time.Millisecond,
		TransactionTimeout: 5 * time.Second,
	})

	env.change = NewChangeHandler(paymentService, dispenseService)
	env.admin = NewAdminHandler(dispenseService)
	return env
}

func stocked() *coin.Inventory {
	return coin.MustNewInventory(map[coin.Denomination]int64{1: 20, 5: 20})
}

func request(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

// number レスポンスの数値フィールドを取得
func number(s *structpb.Struct, path ...string) int64 {
	for _, p := range path[:len(path)-1] {
		s = s.GetFields()[p].GetStructValue()
	}
	return int64(s.GetFields()[path[len(path)-1]].GetNumberValue())
}
