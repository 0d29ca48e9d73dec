package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomatomall/internal/service/order/domain"
)

func at(offset time.Duration) func() time.Time {
	return func() time.Time { return time.Now().UTC().Add(offset) }
}

func TestSweep_ReclaimsExpiredPendingOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.seedProduct(1, "10", 5)
	h.seedCartItem(11, 1, 3)
	resp := h.checkout(11)
	ctx := context.Background()

	h.sweeper.now = at(29 * time.Minute)
	n, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "order inside the pending window is left alone")

	h.sweeper.now = at(31 * time.Minute)
	n, err = h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	available, frozen := h.stock(1)
	assert.Equal(t, 5, available)
	assert.Equal(t, 0, frozen)
	stored := h.order(resp.OrderID)
	assert.Equal(t, domain.StatusTimeout, stored.Status)
	assert.Equal(t, domain.LineReleased, stored.Lines[0].Status)
	assert.Equal(t, 1, h.events.count(domain.EventOrderTimedOut))

	n, err = h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	available, _ = h.stock(1)
	assert.Equal(t, 5, available, "a reclaimed order is never released twice")
}

func TestSweep_SkipsSettledAndCancelledOrders(t *testing.T) {
	h := newHarness(t, nil)
	h.seedProduct(1, "10", 10)
	h.seedCartItem(11, 1, 2)
	h.seedCartItem(12, 1, 3)
	h.seedCartItem(13, 1, 1)
	paid := h.checkout(11)
	cancelled := h.checkout(12)
	pending := h.checkout(13)
	ctx := context.Background()

	require.Equal(t, AckSuccess, h.settlement.HandlePaymentCallback(ctx, paidCallback(paid.OrderID, "20")))
	require.NoError(t, h.orders.CancelOrder(ctx, testUser, cancelled.OrderID))

	h.sweeper.now = at(time.Hour)
	n, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, domain.StatusSuccess, h.order(paid.OrderID).Status)
	assert.Equal(t, domain.StatusFailed, h.order(cancelled.OrderID).Status)
	assert.Equal(t, domain.StatusTimeout, h.order(pending.OrderID).Status)
	available, frozen := h.stock(1)
	assert.Equal(t, 8, available)
	assert.Equal(t, 0, frozen)
}

func TestSweep_FailedReleaseLeavesOrderForNextRound(t *testing.T) {
	h := newHarness(t, nil)
	h.seedProduct(1, "10", 5)
	h.seedCartItem(11, 1, 3)
	resp := h.checkout(11)
	ctx := context.Background()
	require.NoError(t, h.db.Exec("UPDATE stockpiles SET frozen = 0 WHERE product_id = 1").Error)

	h.sweeper.now = at(time.Hour)
	n, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, domain.StatusPending, h.order(resp.OrderID).Status)

	require.NoError(t, h.db.Exec("UPDATE stockpiles SET frozen = 3 WHERE product_id = 1").Error)
	n, err = h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.StatusTimeout, h.order(resp.OrderID).Status)
}

func TestSweep_TomatoOrderHasNoStock(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	resp, err := h.orders.BuyTomato(ctx, &BuyTomatoRequest{UserID: testUser, TomatoCount: 10})
	require.NoError(t, err)

	h.sweeper.now = at(time.Hour)
	require.NoError(t, h.sweeper.Run(ctx))
	assert.Equal(t, domain.StatusTimeout, h.order(resp.OrderID).Status)
}

func TestSweep_StuckOrderDoesNotStarveLaterOrders(t *testing.T) {
	h := newHarness(t, nil)
	h.seedProduct(1, "10", 5)
	h.seedProduct(2, "10", 5)
	h.seedCartItem(11, 1, 1)
	h.seedCartItem(12, 2, 2)
	stuck := h.checkout(11)
	later := h.checkout(12)
	ctx := context.Background()
	// 商品下架后库存行被删，该订单的释放每轮都会失败
	require.NoError(t, h.db.Exec("DELETE FROM stockpiles WHERE product_id = 1").Error)

	h.sweeper.batchSize = 1
	h.sweeper.now = at(time.Hour)
	n, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, domain.StatusPending, h.order(stuck.OrderID).Status)
	assert.Equal(t, domain.StatusTimeout, h.order(later.OrderID).Status)
	available, frozen := h.stock(2)
	assert.Equal(t, 5, available)
	assert.Equal(t, 0, frozen)

	n, err = h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "the stuck order is retried but nothing else is pending")
}
