package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockRecord_Operations(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		start         StockRecord
		op            func(*StockRecord) error
		wantErr       error
		wantAvailable int
		wantFrozen    int
	}{
		{"reserve ok", StockRecord{Available: 5}, func(s *StockRecord) error { return s.Reserve(3) }, nil, 2, 3},
		{"reserve exactly available", StockRecord{Available: 3}, func(s *StockRecord) error { return s.Reserve(3) }, nil, 0, 3},
		{"reserve too many", StockRecord{Available: 2, Frozen: 4}, func(s *StockRecord) error { return s.Reserve(3) }, ErrInsufficientStock, 2, 4},
		{"reserve zero", StockRecord{Available: 2}, func(s *StockRecord) error { return s.Reserve(0) }, ErrInvalidQuantity, 2, 0},
		{"release ok", StockRecord{Available: 2, Frozen: 3}, func(s *StockRecord) error { return s.Release(3) }, nil, 5, 0},
		{"release more than frozen", StockRecord{Available: 2, Frozen: 1}, func(s *StockRecord) error { return s.Release(3) }, ErrInsufficientFrozen, 2, 1},
		{"commit ok", StockRecord{Available: 2, Frozen: 3}, func(s *StockRecord) error { return s.Commit(3) }, nil, 2, 0},
		{"commit more than frozen", StockRecord{Available: 9, Frozen: 2}, func(s *StockRecord) error { return s.Commit(3) }, ErrInsufficientFrozen, 9, 2},
		{"commit negative", StockRecord{Frozen: 2}, func(s *StockRecord) error { return s.Commit(-1) }, ErrInvalidQuantity, 0, 2},
		{"restock", StockRecord{Available: 1, Frozen: 1}, func(s *StockRecord) error { return s.Restock(4) }, nil, 5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := tt.start
			err := tt.op(&rec)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantAvailable, rec.Available)
			assert.Equal(t, tt.wantFrozen, rec.Frozen)
			assert.GreaterOrEqual(t, rec.Available, 0)
			assert.GreaterOrEqual(t, rec.Frozen, 0)
		})
	}
}

func TestStockRecord_ReserveReleaseRoundTrip(t *testing.T) {
	t.Parallel()
	for _, qty := range []int{1, 2, 5} {
		rec := StockRecord{Available: 5, Frozen: 1}
		require.NoError(t, rec.Reserve(qty))
		require.NoError(t, rec.Release(qty))
		assert.Equal(t, StockRecord{Available: 5, Frozen: 1}, rec)
	}
}

func TestStockRecord_FullSale(t *testing.T) {
	t.Parallel()
	rec := StockRecord{Available: 5}
	require.NoError(t, rec.Reserve(3))
	afterReserve := rec.Available
	require.NoError(t, rec.Commit(3))
	assert.Equal(t, afterReserve, rec.Available)
	assert.Equal(t, 2, rec.Available)
	assert.Equal(t, 0, rec.Frozen)
}
