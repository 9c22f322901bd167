package history

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"change-server/internal/domain/coin"
	"change-server/internal/domain/dispense"
	otelinfra "change-server/internal/infrastructure/observability/otel"
)

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

func testRecords() []*dispense.Record {
	return []*dispense.Record{
		dispense.MustNewRecord("rec-3", dispense.EntryTypeDispense, "t-3", coin.Breakdown{1: 2}, coin.Breakdown{1: 1}, dispense.StatusPartial, "jam"),
		dispense.MustNewRecord("rec-2", dispense.EntryTypeDeposit, "refill", coin.Breakdown{5: 10}, coin.Breakdown{5: 10}, dispense.StatusCompleted, ""),
		dispense.MustNewRecord("rec-1", dispense.EntryTypeDispense, "t-1", coin.Breakdown{5: 1}, coin.Breakdown{5: 1}, dispense.StatusCompleted, ""),
	}
}

func newTestService(repo *MockRecordRepository) *HistoryApplicationService {
	logger := otelinfra.NewLoggerWithWriter(otel.Tracer("test"), &bytes.Buffer{}, otelinfra.LogLevelDebug)
	return NewHistoryApplicationService(repo, logger)
}

func TestHistoryApplicationService_ListRecords(t *testing.T) {
	tests := []struct {
		name       string
		req        *ListRecordsRequest
		setupMocks func(*MockRecordRepository)
		wantError  bool
		wantIDs    []string
		wantLimit  int
	}{
		{
			name: "正常系: デフォルトの件数で取得",
			req:  &ListRecordsRequest{},
			setupMocks: func(m *MockRecordRepository) {
				m.On("FindRecent", mock.Anything, 50, 0).Return(testRecords(), nil)
			},
			wantIDs:   []string{"rec-3", "rec-2", "rec-1"},
			wantLimit: 50,
		},
		{
			name: "正常系: 上限件数に丸めてタイプで絞り込み",
			req:  &ListRecordsRequest{Limit: 500, Offset: -3, EntryType: "dispense"},
			setupMocks: func(m *MockRecordRepository) {
				m.On("FindRecent", mock.Anything, 100, 0).Return(testRecords(), nil)
			},
			wantIDs:   []string{"rec-3", "rec-1"},
			wantLimit: 100,
		},
		{
			name: "正常系: ステータスで絞り込み",
			req:  &ListRecordsRequest{Limit: 10, Status: "partial"},
			setupMocks: func(m *MockRecordRepository) {
				m.On("FindRecent", mock.Anything, 10, 0).Return(testRecords(), nil)
			},
			wantIDs:   []string{"rec-3"},
			wantLimit: 10,
		},
		{
			name:       "異常系: 不明なタイプ",
			req:        &ListRecordsRequest{EntryType: "refund"},
			setupMocks: func(m *MockRecordRepository) {},
			wantError:  true,
		},
		{
			name: "異常系: リポジトリエラー",
			req:  &ListRecordsRequest{},
			setupMocks: func(m *MockRecordRepository) {
				m.On("FindRecent", mock.Anything, 50, 0).Return(nil, errors.New("db down"))
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRecordRepository)
			tt.setupMocks(repo)

			resp, err := newTestService(repo).ListRecords(context.Background(), tt.req)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				ids := make([]string, 0, len(resp.Records))
				for _, rec := range resp.Records {
					ids = append(ids, rec.RecordID())
				}
				assert.Equal(t, tt.wantIDs, ids)
				assert.Equal(t, tt.wantLimit, resp.Limit)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestHistoryApplicationService_GetRecord(t *testing.T) {
	repo := new(MockRecordRepository)
	rec := testRecords()[0]
	repo.On("FindByRecordID", mock.Anything, "rec-3").Return(rec, nil)
	repo.On("FindByRecordID", mock.Anything, "missing").Return(nil, dispense.ErrRecordNotFound)
	svc := newTestService(repo)

	got, err := svc.GetRecord(context.Background(), &GetRecordRequest{RecordID: "rec-3"})
	require.NoError(t, err)
	assert.Same(t, rec, got)

	_, err = svc.GetRecord(context.Background(), &GetRecordRequest{RecordID: "missing"})
	assert.ErrorIs(t, err, dispense.ErrRecordNotFound)
}
