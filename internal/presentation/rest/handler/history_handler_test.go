package handler

import (
	"errors"
	"net/http"
	"testing"

	"change-server/internal/domain/coin"
	"change-server/internal/domain/dispense"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testRecords() []*dispense.Record {
	return []*dispense.Record{
		dispense.MustNewRecord("rec-3", dispense.EntryTypeDispense, "order-3", coin.Breakdown{1: 2}, coin.Breakdown{1: 1}, dispense.StatusPartial, "hopper A jammed"),
		dispense.MustNewRecord("rec-2", dispense.EntryTypeDeposit, "refill", coin.Breakdown{5: 10}, coin.Breakdown{5: 10}, dispense.StatusCompleted, ""),
		dispense.MustNewRecord("rec-1", dispense.EntryTypeDispense, "order-1", coin.Breakdown{5: 2, 1: 2}, coin.Breakdown{5: 2, 1: 2}, dispense.StatusCompleted, ""),
	}
}

func TestHistoryHandler_ListRecords(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMocks     func(*MockRecordRepository)
		expectedStatus int
		expectedIDs    []string
	}{
		{
			name:  "正常系: デフォルトのページ",
			query: "",
			setupMocks: func(m *MockRecordRepository) {
				m.On("FindRecent", mock.Anything, 50, 0).Return(testRecords(), nil)
			},
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{"rec-3", "rec-2", "rec-1"},
		},
		{
			name:  "正常系: 種別と状態でフィルタ",
			query: "?limit=10&offset=5&entry_type=dispense&status=completed",
			setupMocks: func(m *MockRecordRepository) {
				m.On("FindRecent", mock.Anything, 10, 5).Return(testRecords(), nil)
			},
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{"rec-1"},
		},
		{
			name:           "異常系: limitが上限超過",
			query:          "?limit=101",
			setupMocks:     func(m *MockRecordRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "異常系: offsetが負",
			query:          "?offset=-1",
			setupMocks:     func(m *MockRecordRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "異常系: 未知の種別",
			query:          "?entry_type=refund",
			setupMocks:     func(m *MockRecordRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:  "異常系: リポジトリエラー",
			query: "",
			setupMocks: func(m *MockRecordRepository) {
				m.On("FindRecent", mock.Anything, 50, 0).Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			tt.setupMocks(env.records)
			env.echo.GET("/admin/dispenses", env.history.ListRecords)

			rec := env.serve(http.MethodGet, "/admin/dispenses"+tt.query, "")
			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedIDs != nil {
				var resp RecordListResponse
				decode(t, rec, &resp)
				ids := make([]string, len(resp.Records))
				for i, r := range resp.Records {
					ids[i] = r.RecordID
				}
				assert.Equal(t, tt.expectedIDs, ids)
			}
			env.records.AssertExpectations(t)
		})
	}
}

func TestHistoryHandler_GetRecord(t *testing.T) {
	env := newTestEnv(t, nil)
	env.records.On("FindByRecordID", mock.Anything, "rec-3").Return(testRecords()[0], nil)
	env.records.On("FindByRecordID", mock.Anything, "missing").Return(nil, dispense.ErrRecordNotFound)
	env.echo.GET("/admin/dispenses/:record_id", env.history.GetRecord)

	rec := env.serve(http.MethodGet, "/admin/dispenses/rec-3", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var item RecordItem
	decode(t, rec, &item)
	assert.Equal(t, "partial", item.Status)
	assert.Equal(t, "dispense", item.EntryType)
	assert.Equal(t, map[int64]int64{1: 2}, item.Requested)
	assert.Equal(t, map[int64]int64{1: 1}, item.Applied)
	assert.Equal(t, int64(1), item.AmountApplied)
	assert.Equal(t, "hopper A jammed", item.FailureReason)

	rec = env.serve(http.MethodGet, "/admin/dispenses/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
