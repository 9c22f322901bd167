package coin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDenominationSet(t *testing.T) {
	tests := []struct {
		name      string
		values    []int64
		want      []Denomination
		wantError error
	}{
		{
			name:   "正常系: 降順に並べ替えられる",
			values: []int64{1, 5},
			want:   []Denomination{5, 1},
		},
		{
			name:   "正常系: 3種類以上の額面",
			values: []int64{5, 1, 10, 20},
			want:   []Denomination{20, 10, 5, 1},
		},
		{
			name:      "異常系: 空の集合",
			values:    nil,
			wantError: ErrEmptyDenominationSet,
		},
		{
			name:      "異常系: 0以下の額面",
			values:    []int64{1, 0},
			wantError: ErrInvalidDenomination,
		},
		{
			name:      "異常系: 重複した額面",
			values:    []int64{1, 5, 5},
			wantError: ErrInvalidDenomination,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewDenominationSet(tt.values...)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Descending())
			assert.Equal(t, len(tt.want), got.Len())
		})
	}
}

func TestDenominationSet_Contains(t *testing.T) {
	set := MustNewDenominationSet(1, 5)

	assert.True(t, set.Contains(1))
	assert.True(t, set.Contains(5))
	assert.False(t, set.Contains(10))
}

func TestParseDenomination(t *testing.T) {
	d, err := ParseDenomination("5")
	require.NoError(t, err)
	assert.Equal(t, Denomination(5), d)
	assert.Equal(t, "₱5", d.String())

	_, err = ParseDenomination("five")
	assert.ErrorIs(t, err, ErrInvalidDenomination)

	_, err = ParseDenomination("-1")
	assert.ErrorIs(t, err, ErrInvalidDenomination)
}
