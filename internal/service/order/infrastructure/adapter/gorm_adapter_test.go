package adapter

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/gorm"

	"tomatomall/internal/pkg/database/dbtest"
	invapp "tomatomall/internal/service/inventory/application"
	invinfra "tomatomall/internal/service/inventory/infrastructure"
	"tomatomall/internal/service/order/domain"
	"tomatomall/internal/service/order/infrastructure"
)

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.New(t,
		&invinfra.StockRecordModel{},
		&infrastructure.ProductModel{},
		&infrastructure.CartItemModel{},
		&infrastructure.AccountModel{},
	)
}

func TestGormCart_FindLines(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Create([]infrastructure.CartItemModel{
		{ID: 1, UserID: 7, ProductID: 10, Quantity: 2},
		{ID: 2, UserID: 7, ProductID: 11, Quantity: 1},
		{ID: 3, UserID: 8, ProductID: 10, Quantity: 5},
	}).Error)
	cart := NewGormCart(db)
	ctx := context.Background()

	lines, err := cart.FindLines(ctx, 7, []int64{2, 1, 2})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(2), lines[0].CartItemID)
	assert.Equal(t, int64(1), lines[1].CartItemID)
	assert.Equal(t, 2, lines[1].Quantity)

	_, err = cart.FindLines(ctx, 7, []int64{1, 3})
	assert.ErrorIs(t, err, domain.ErrCartItemNotFound, "another user's cart item")
}

func TestGormAccount(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Create([]infrastructure.AccountModel{
		{ID: 7, Username: "tomato", Name: "番茄", Tomato: 100},
		{ID: 8, Username: "potato"},
	}).Error)
	accounts := NewGormAccount(db)
	ctx := context.Background()

	name, err := accounts.DisplayName(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "番茄", name)
	name, err = accounts.DisplayName(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, "potato", name)
	_, err = accounts.DisplayName(ctx, 9)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	require.NoError(t, accounts.CreditTomato(ctx, 7, 50))
	var acc infrastructure.AccountModel
	require.NoError(t, db.First(&acc, 7).Error)
	assert.Equal(t, 150, acc.Tomato)
	assert.ErrorIs(t, accounts.CreditTomato(ctx, 9, 1), domain.ErrAccountNotFound)
}

func TestGormCatalog_GetProduct(t *testing.T) {
	db := newDB(t)
	ledger := invapp.NewStockLedger(invinfra.NewGormStockRepository(db), noop.NewTracerProvider().Tracer("test"))
	ctx := context.Background()
	require.NoError(t, db.Create(&infrastructure.ProductModel{ID: 1, Title: "番茄炒蛋", Price: decimal.RequireFromString("12.80")}).Error)
	_, err := ledger.Initialize(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, ledger.Restock(ctx, 1, 5))
	require.NoError(t, ledger.Reserve(ctx, 1, 2))
	catalog := NewGormCatalog(db, ledger)

	snap, err := catalog.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "番茄炒蛋", snap.Title)
	assert.True(t, snap.Price.Equal(decimal.RequireFromString("12.8")))
	assert.Equal(t, 3, snap.Available)

	_, err = catalog.GetProduct(ctx, 2)
	assert.ErrorIs(t, err, ErrProductNotFound)
}
