package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authapp "change-server/internal/application/auth"
	dispenseapp "change-server/internal/application/change_dispense"
	historyapp "change-server/internal/application/history"
	paymentapp "change-server/internal/application/payment"
	settingsapp "change-server/internal/application/settings"
	"change-server/internal/domain/change"
	"change-server/internal/domain/coin"
	"change-server/internal/domain/dispense"
	"change-server/internal/domain/hopper"
	"change-server/internal/domain/service"
	"change-server/internal/infrastructure/config"
	"change-server/internal/infrastructure/hardware/simulated"
	otelinfra "change-server/internal/infrastructure/observability/otel"
	restmiddleware "change-server/internal/presentation/rest/middleware"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
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

// MockSettingsRepository モック設定リポジトリ
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockSettingsRepository) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

// MockDatabaseChecker モックDB疎通確認
type MockDatabaseChecker struct {
	mock.Mock
}

func (m *MockDatabaseChecker) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// testEnv 実際のアプリケーションサービスとモックリポジトリ、模擬ホッパーの組み合わせ
type testEnv struct {
	echo      *echo.Echo
	inventory *MockInventoryRepository
	records   *MockRecordRepository
	settings  *MockSettingsRepository
	db        *MockDatabaseChecker
	connector *simulated.Connector
	jwt       *config.JWTConfig

	payment  *PaymentHandler
	change   *ChangeHandler
	admin    *AdminHandler
	history  *HistoryHandler
	auth     *AuthHandler
	health   *HealthHandler
	hardware *hopper.ConnectionManager
}

func newTestEnv(t *testing.T, jamAfter map[string]int64) *testEnv {
	t.Helper()

	logger := otelinfra.NewLoggerWithWriter(noop.NewTracerProvider().Tracer("test"), &bytes.Buffer{}, otelinfra.LogLevelDebug)
	metrics, err := otelinfra.NewMetrics("test")
	require.NoError(t, err)

	env := &testEnv{
		echo:      echo.New(),
		inventory: new(MockInventoryRepository),
		records:   new(MockRecordRepository),
		settings:  new(MockSettingsRepository),
		db:        new(MockDatabaseChecker),
		jwt: &config.JWTConfig{
			Secret:     "test-secret",
			Expiration: time.Hour,
			Issuer:     "change-server",
		},
	}
	env.echo.Use(restmiddleware.ErrorHandlerMiddleware(logger))

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
	env.hardware, err = hopper.NewConnectionManager(env.connector, []hopper.Config{
		{ID: "A", Denomination: 1, Filter: filter},
		{ID: "B", Denomination: 5, Filter: filter},
	}, 0, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.hardware.Close(context.Background()) })

	paymentService := paymentapp.NewPaymentApplicationService(changeService, logger, metrics)
	dispenseService := dispenseapp.NewDispenseApplicationService(changeService, env.inventory, env.records, env.hardware, logger, metrics, dispenseapp.Options{
		HopperTimeout:      400 * time.Millisecond,
		TransactionTimeout: 5 * time.Second,
	})
	historyService := historyapp.NewHistoryApplicationService(env.records, logger)
	settingsService := settingsapp.NewSettingsApplicationService(env.settings, changeService, logger)
	authService := authapp.NewAuthApplicationService(env.jwt, logger)

	env.payment = NewPaymentHandler(paymentService)
	env.change = NewChangeHandler(paymentService, dispenseService)
	env.admin = NewAdminHandler(dispenseService, settingsService)
	env.history = NewHistoryHandler(historyService)
	env.auth = NewAuthHandler(authService)
	env.health = NewHealthHandler(env.db, dispenseService)
	return env
}

func stocked() *coin.Inventory {
	return coin.MustNewInventory(map[coin.Denomination]int64{1: 20, 5: 20})
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

// serve リクエストを実行してレスポンスを返す
func (env *testEnv) serve(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}
