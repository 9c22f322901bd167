package change_dispense

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"change-server/internal/domain/change"
	"change-server/internal/domain/coin"
	"change-server/internal/domain/dispense"
	"change-server/internal/domain/hopper"
	"change-server/internal/domain/service"
	"change-server/internal/infrastructure/hardware/simulated"
	otelinfra "change-server/internal/infrastructure/observability/otel"
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

func testPolicy() change.Policy {
	return change.Policy{
		Denominations:        coin.MustNewDenominationSet(1, 5),
		ReserveThresholds:    map[coin.Denomination]int64{1: 10, 5: 5},
		MaxChangeLimit:       50,
		SmallChangeBand:      5,
		MediumChangeBand:     20,
		RoundingUnits:        []int64{10, 20, 50, 100},
		AcceptedPayments:     []int64{1, 5, 10, 20, 50, 100},
		LimitedCapacityBelow: 10,
	}
}

func testHoppers() []hopper.Config {
	filter := hopper.FilterConfig{
		NoiseFloor:    5 * time.Millisecond,
		MaxValidWidth: 200 * time.Millisecond,
		Cooldown:      10 * time.Millisecond,
	}
	return []hopper.Config{
		{ID: "A", Denomination: 1, Filter: filter},
		{ID: "B", Denomination: 5, Filter: filter},
	}
}

type fixture struct {
	svc       *DispenseApplicationService
	inventory *MockInventoryRepository
	records   *MockRecordRepository
	connector *simulated.Connector
	hardware  *hopper.ConnectionManager
}

func newFixture(t *testing.T, jamAfter map[string]int64) *fixture {
	t.Helper()

	logger := otelinfra.NewLoggerWithWriter(otel.Tracer("test"), &bytes.Buffer{}, otelinfra.LogLevelDebug)
	metrics, err := otelinfra.NewMetrics("test")
	require.NoError(t, err)

	inventory := new(MockInventoryRepository)
	records := new(MockRecordRepository)
	changeService, err := service.NewChangeService(inventory, testPolicy())
	require.NoError(t, err)

	connector := simulated.NewConnector(simulated.Options{
		Hoppers:    []string{"A", "B"},
		PulseWidth: 15 * time.Millisecond,
		PulseGap:   25 * time.Millisecond,
		JamAfter:   jamAfter,
	})
	hardware, err := hopper.NewConnectionManager(connector, testHoppers(), 0, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hardware.Close(context.Background()) })

	svc := NewDispenseApplicationService(changeService, inventory, records, hardware, logger, metrics, Options{
		HopperTimeout:      400 * time.Millisecond,
		TransactionTimeout: 5 * time.Second,
	})
	svc.newID = func() string { return "rec-1" }

	return &fixture{svc: svc, inventory: inventory, records: records, connector: connector, hardware: hardware}
}

func inventoryOf(counts map[coin.Denomination]int64) *coin.Inventory {
	return coin.MustNewInventory(counts)
}

func inventoryMatches(want map[coin.Denomination]int64) interface{} {
	return mock.MatchedBy(func(inv *coin.Inventory) bool {
		for d, n := range want {
			if inv.Count(d) != n {
				return false
			}
		}
		return true
	})
}

func recordMatches(status dispense.Status, applied coin.Breakdown) interface{} {
	return mock.MatchedBy(func(rec *dispense.Record) bool {
		return rec.Status() == status && assert.ObjectsAreEqual(applied, rec.Applied())
	})
}

func TestDispenseApplicationService_DispenseChange(t *testing.T) {
	f := newFixture(t, nil)
	f.inventory.On("Read", mock.Anything).Return(inventoryOf(map[coin.Denomination]int64{1: 20, 5: 20}), nil).Once()
	f.inventory.On("Read", mock.Anything).Return(inventoryOf(map[coin.Denomination]int64{1: 20, 5: 20}), nil).Once()
	f.inventory.On("Write", mock.Anything, inventoryMatches(map[coin.Denomination]int64{1: 18, 5: 18})).Return(nil)
	f.records.On("Save", mock.Anything, recordMatches(dispense.StatusCompleted, coin.Breakdown{5: 2, 1: 2})).Return(nil)

	resp, err := f.svc.DispenseChange(context.Background(), &DispenseChangeRequest{Amount: 12, Reference: "t-1"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "rec-1", resp.RecordID)
	assert.Equal(t, map[int64]int64{5: 2, 1: 2}, resp.Dispensed)
	assert.Equal(t, int64(12), resp.AmountDispensed)
	assert.True(t, resp.InventoryUpdated)
	assert.Empty(t, resp.Failures)

	f.inventory.AssertExpectations(t)
	f.records.AssertExpectations(t)
}

func TestDispenseApplicationService_DispenseChangeJam(t *testing.T) {
	f := newFixture(t, map[string]int64{"A": 1})
	f.inventory.On("Read", mock.Anything).Return(inventoryOf(map[coin.Denomination]int64{1: 20, 5: 20}), nil).Once()
	f.inventory.On("Read", mock.Anything).Return(inventoryOf(map[coin.Denomination]int64{1: 20, 5: 20}), nil).Once()
	// 確定した1枚だけ減らす
	f.inventory.On("Write", mock.Anything, inventoryMatches(map[coin.Denomination]int64{1: 19, 5: 20})).Return(nil)
	f.records.On("Save", mock.Anything, recordMatches(dispense.StatusPartial, coin.Breakdown{1: 1})).Return(nil)

	resp, err := f.svc.DispenseChange(context.Background(), &DispenseChangeRequest{Amount: 2})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "partial", resp.Status)
	assert.Equal(t, map[int64]int64{1: 1}, resp.Dispensed)
	assert.Equal(t, map[int64]int64{1: 2}, resp.Requested)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, HopperFailure{
		Denomination: 1,
		Requested:    2,
		Confirmed:    1,
		Reason:       "jam",
		Message:      resp.Failures[0].Message,
	}, resp.Failures[0])
	assert.True(t, resp.InventoryUpdated)

	f.inventory.AssertExpectations(t)
	f.records.AssertExpectations(t)
}

func TestDispenseApplicationService_DispenseChangeRejected(t *testing.T) {
	tests := []struct {
		name      string
		inventory map[coin.Denomination]int64
		amount    int64
		wantError error
	}{
		{
			name:      "異常系: 予備割れ",
			inventory: map[coin.Denomination]int64{1: 8, 5: 20},
			amount:    3,
			wantError: change.ErrInsufficientReserve,
		},
		{
			name:      "異常系: 上限超過",
			inventory: map[coin.Denomination]int64{1: 20, 5: 20},
			amount:    55,
			wantError: change.ErrChangeLimitExceeded,
		},
		{
			name:      "異常系: 負の金額",
			inventory: map[coin.Denomination]int64{1: 20, 5: 20},
			amount:    -1,
			wantError: change.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.inventory.On("Read", mock.Anything).Return(inventoryOf(tt.inventory), nil)

			_, err := f.svc.DispenseChange(context.Background(), &DispenseChangeRequest{Amount: tt.amount})
			assert.ErrorIs(t, err, tt.wantError)
			// ハードウェアには触れない
			assert.Nil(t, f.connector.Last())
			f.inventory.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
			f.records.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestDispenseApplicationService_DispenseChangeZero(t *testing.T) {
	f := newFixture(t, nil)
	f.inventory.On("Read", mock.Anything).Return(inventoryOf(map[coin.Denomination]int64{1: 20, 5: 20}), nil)

	resp, err := f.svc.DispenseChange(context.Background(), &DispenseChangeRequest{Amount: 0})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Dispensed)
	assert.Nil(t, f.connector.Last())
}

func TestDispenseApplicationService_DispenseChangeHardwareUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.connector.SetAvailable(false)
	f.inventory.On("Read", mock.Anything).Return(inventoryOf(map[coin.Denomination]int64{1: 20, 5: 20}), nil).Once()
	f.records.On("Save", mock.Anything, recordMatches(dispense.StatusFailed, coin.Breakdown{})).Return(nil)

	_, err := f.svc.DispenseChange(context.Background(), &DispenseChangeRequest{Amount: 5})
	assert.ErrorIs(t, err, hopper.ErrHardwareUnavailable)
	f.inventory.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
	f.records.AssertExpectations(t)
}

func TestDispenseApplicationService_DispenseChangeInventoryWriteFails(t *testing.T) {
	f := newFixture(t, nil)
	f.inventory.On("Read", mock.Anything).Return(inventoryOf(map[coin.Denomination]int64{1: 20, 5: 20}), nil).Twice()
	f.inventory.On("Write", mock.Anything, mock.Anything).Return(errors.New("db down"))
	f.records.On("Save", mock.Anything, mock.Anything).Return(nil)

	resp, err := f.svc.DispenseChange(context.Background(), &DispenseChangeRequest{Amount: 5})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.False(t, resp.InventoryUpdated)
}

func TestDispenseApplicationService_ReconnectAfterKill(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	status, err := f.svc.Reconnect(ctx)
	require.NoError(t, err)
	assert.True(t, status.Live)
	assert.Equal(t, uint64(1), status.Generation)

	f.connector.Last().Kill()
	assert.False(t, f.svc.HardwareStatus(ctx).Live)

	f.inventory.On("Read", mock.Anything).Return(inventoryOf(map[coin.Denomination]int64{1: 20, 5: 20}), nil).Twice()
	f.inventory.On("Write", mock.Anything, inventoryMatches(map[coin.Denomination]int64{5: 19})).Return(nil)
	f.records.On("Save", mock.Anything, mock.Anything).Return(nil)

	resp, err := f.svc.DispenseChange(ctx, &DispenseChangeRequest{Amount: 5})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	hw := f.svc.HardwareStatus(ctx)
	assert.True(t, hw.Live)
	assert.Equal(t, uint64(2), hw.Generation)

	f.connector.SetAvailable(false)
	_, err = f.svc.Reconnect(ctx)
	assert.ErrorIs(t, err, hopper.ErrHardwareUnavailable)
}
