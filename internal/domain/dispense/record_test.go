package dispense

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"change-server/internal/domain/coin"
)

func TestNewRecord(t *testing.T) {
	tests := []struct {
		name      string
		recordID  string
		entryType EntryType
		reference string
		status    Status
		wantError error
	}{
		{
			name:      "正常系: 払い出し記録の作成",
			recordID:  "rec-123",
			entryType: EntryTypeDispense,
			reference: "kiosk-txn-1",
			status:    StatusCompleted,
		},
		{
			name:      "異常系: 無効な記録ID",
			recordID:  "rec 123",
			entryType: EntryTypeDispense,
			status:    StatusCompleted,
			wantError: ErrInvalidRecordID,
		},
		{
			name:      "異常系: 参照IDが長すぎる",
			recordID:  "rec-123",
			entryType: EntryTypeDispense,
			reference: strings.Repeat("x", 256),
			status:    StatusCompleted,
			wantError: ErrInvalidReference,
		},
		{
			name:      "異常系: 無効なステータス",
			recordID:  "rec-123",
			entryType: EntryTypeDispense,
			status:    Status("unknown"),
			wantError: ErrInvalidRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRecord(tt.recordID, tt.entryType, tt.reference, coin.Breakdown{1: 2}, coin.Breakdown{1: 1}, tt.status, "")
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.recordID, got.RecordID())
			assert.Equal(t, tt.reference, got.Reference())
			assert.Equal(t, int64(2), got.AmountRequested())
			assert.Equal(t, int64(1), got.AmountApplied())
			assert.False(t, got.CreatedAt().IsZero())
		})
	}
}

func TestRecord_BreakdownsAreCopied(t *testing.T) {
	requested := coin.Breakdown{5: 1}
	r := MustNewRecord("rec-1", EntryTypeDispense, "", requested, requested, StatusCompleted, "")
	requested[5] = 9

	assert.Equal(t, int64(1), r.Requested()[5])
	got := r.Applied()
	got[5] = 7
	assert.Equal(t, int64(1), r.Applied()[5])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusCompleted, StatusFor(true, 3))
	assert.Equal(t, StatusPartial, StatusFor(false, 1))
	assert.Equal(t, StatusFailed, StatusFor(false, 0))
}

func TestNewStatusAndEntryType(t *testing.T) {
	s, err := NewStatus("partial")
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, s)
	_, err = NewStatus("done")
	assert.Error(t, err)

	et, err := NewEntryType("deposit")
	require.NoError(t, err)
	assert.Equal(t, EntryTypeDeposit, et)
	_, err = NewEntryType("refund")
	assert.Error(t, err)
}
