//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/tableorder/internal/apperr"
	"github.com/ariefcatur/tableorder/internal/inventory"
	"github.com/ariefcatur/tableorder/internal/orders"
	"github.com/ariefcatur/tableorder/internal/postgres"
	"github.com/ariefcatur/tableorder/internal/tables"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tableorder"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.Connect(ctx, dsn, postgres.PoolConfig{MaxConns: 16})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	return pool
}

type env struct {
	store  *postgres.Store
	outbox *postgres.OutboxStore
	svc    *orders.Service
	pool   *pgxpool.Pool
}

func newEnv(t *testing.T) *env {
	t.Helper()
	pool := startPostgres(t)
	store := postgres.NewStore(zap.NewNop(), pool)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.EnsureProduct(ctx, inventory.Product{ID: "p-cake", Name: "Cheesecake", Price: decimal.RequireFromString("5.50"), Stock: inventory.Tracked(1), CreatedAt: now}))
	require.NoError(t, store.EnsureProduct(ctx, inventory.Product{ID: "p-latte", Name: "Latte", Price: decimal.RequireFromString("3.80"), Stock: inventory.Tracked(10), CreatedAt: now}))
	require.NoError(t, store.EnsureProduct(ctx, inventory.Product{ID: "p-water", Name: "Water", Price: decimal.RequireFromString("1.00"), Stock: inventory.Unlimited(), CreatedAt: now}))
	for _, tbl := range orders.DemoTables(now) {
		require.NoError(t, store.EnsureTable(ctx, tbl))
	}

	return &env{
		store:  store,
		outbox: postgres.NewOutboxStore(zap.NewNop(), pool),
		svc:    orders.NewService(store, zap.NewNop(), "order-api-it"),
		pool:   pool,
	}
}

func (e *env) stockQty(t *testing.T, id string) int64 {
	t.Helper()
	var qty int64
	require.NoError(t, e.pool.QueryRow(context.Background(), `SELECT stock_qty FROM products WHERE id = $1`, id).Scan(&qty))
	return qty
}

func (e *env) tableStatus(t *testing.T, number int) tables.Status {
	t.Helper()
	var status string
	require.NoError(t, e.pool.QueryRow(context.Background(), `SELECT status FROM dining_tables WHERE number = $1`, number).Scan(&status))
	return tables.Status(status)
}

func (e *env) count(t *testing.T, sql string) int {
	t.Helper()
	var n int
	require.NoError(t, e.pool.QueryRow(context.Background(), sql).Scan(&n))
	return n
}

func TestIntegrationPlaceAndRelease(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	o, err := e.svc.PlaceOrder(ctx, orders.PlaceOrderRequest{
		UserID:      "u-1",
		TableNumber: 3,
		Items:       []orders.ItemInput{{ProductID: "p-latte", Quantity: 2}, {ProductID: "p-water", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("8.60")))
	assert.Equal(t, int64(8), e.stockQty(t, "p-latte"))
	assert.Equal(t, tables.StatusOccupied, e.tableStatus(t, 3))

	stored, err := e.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "u-1", stored.UserID)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "p-latte", stored.Items[0].ProductID)
	assert.Nil(t, stored.UpdatedAt)

	_, err = e.svc.TransitionStatus(ctx, o.ID, orders.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, tables.StatusAvailable, e.tableStatus(t, 3))

	stored, err = e.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCompleted, stored.Status)
	assert.NotNil(t, stored.UpdatedAt)

	assert.Equal(t, 4, e.count(t, `SELECT count(*) FROM outbox`))
}

func TestIntegrationConcurrentLastUnit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	const racers = 6
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := range racers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.PlaceOrder(ctx, orders.PlaceOrderRequest{
				TableNumber: i + 1,
				Items:       []orders.ItemInput{{ProductID: "p-cake", Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	placed := 0
	for _, err := range errs {
		if err == nil {
			placed++
			continue
		}
		assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
		assert.Equal(t, "insufficient stock for Cheesecake", apperr.Message(err))
	}
	assert.Equal(t, 1, placed)
	assert.Equal(t, int64(0), e.stockQty(t, "p-cake"))
	assert.Equal(t, 1, e.count(t, `SELECT count(*) FROM orders`))
	assert.Equal(t, 1, e.count(t, `SELECT count(*) FROM dining_tables WHERE status = 'OCCUPIED'`))
}

func TestIntegrationConcurrentTableClaim(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	const racers = 6
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := range racers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.PlaceOrder(ctx, orders.PlaceOrderRequest{
				TableNumber: 5,
				Items:       []orders.ItemInput{{ProductID: "p-latte", Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	placed := 0
	for _, err := range errs {
		if err == nil {
			placed++
			continue
		}
		assert.Equal(t, "table not available", apperr.Message(err))
	}
	assert.Equal(t, 1, placed)
	assert.Equal(t, int64(9), e.stockQty(t, "p-latte"), "losers leave stock untouched")
	assert.Equal(t, 1, e.count(t, `SELECT count(*) FROM orders WHERE table_number = 5`))
}

func TestIntegrationFailedPlacementLeavesNoTrace(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.PlaceOrder(ctx, orders.PlaceOrderRequest{
		TableNumber: 2,
		Items: []orders.ItemInput{
			{ProductID: "p-latte", Quantity: 1},
			{ProductID: "p-cake", Quantity: 2},
		},
	})
	require.Error(t, err)

	assert.Equal(t, int64(10), e.stockQty(t, "p-latte"))
	assert.Equal(t, int64(1), e.stockQty(t, "p-cake"))
	assert.Equal(t, tables.StatusAvailable, e.tableStatus(t, 2))
	assert.Zero(t, e.count(t, `SELECT count(*) FROM orders`))
	assert.Zero(t, e.count(t, `SELECT count(*) FROM order_items`))
	assert.Zero(t, e.count(t, `SELECT count(*) FROM outbox`))
}

func TestIntegrationTokenFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tok, err := e.svc.IssueCheckInToken(ctx, "table-07")
	require.NoError(t, err)

	for range 2 {
		_, err := e.svc.PlaceOrder(ctx, orders.PlaceOrderRequest{TableNumber: 7, TableToken: tok, Items: []orders.ItemInput{{ProductID: "p-water", Quantity: 1}}})
		require.NoError(t, err)
	}

	fresh, err := e.svc.IssueCheckInToken(ctx, "table-07")
	require.NoError(t, err)
	_, err = e.svc.CheckIn(ctx, tok)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	tbl, err := e.svc.CheckIn(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, 7, tbl.Number)
}

func TestIntegrationCrossedTokensDoNotDeadlock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tok1, err := e.svc.IssueCheckInToken(ctx, "table-01")
	require.NoError(t, err)
	tok2, err := e.svc.IssueCheckInToken(ctx, "table-02")
	require.NoError(t, err)

	const rounds = 20
	errs := make([]error, 2*rounds)
	var wg sync.WaitGroup
	for i := range rounds {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, errs[2*i] = e.svc.PlaceOrder(ctx, orders.PlaceOrderRequest{TableNumber: 1, TableToken: tok2, Items: []orders.ItemInput{{ProductID: "p-water", Quantity: 1}}})
		}(i)
		go func(i int) {
			defer wg.Done()
			_, errs[2*i+1] = e.svc.PlaceOrder(ctx, orders.PlaceOrderRequest{TableNumber: 2, TableToken: tok1, Items: []orders.ItemInput{{ProductID: "p-water", Quantity: 1}}})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
		assert.Equal(t, "token does not match table", apperr.Message(err))
	}
	assert.Zero(t, e.count(t, `SELECT count(*) FROM orders`))
}

func TestIntegrationOutboxLeasing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.PlaceOrder(ctx, orders.PlaceOrderRequest{TableNumber: 1, Items: []orders.ItemInput{{ProductID: "p-water", Quantity: 1}}})
	require.NoError(t, err)

	batch, err := e.outbox.LockBatch(ctx, "relay-a", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, orders.TopicOrderPlaced, batch[0].Topic)

	again, err := e.outbox.LockBatch(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, e.outbox.MarkSent(ctx, []int64{batch[0].ID}))
	require.NoError(t, e.outbox.MarkFailed(ctx, batch[1].ID, "broker down", 5))
	assert.Equal(t, 1, e.count(t, `SELECT count(*) FROM outbox WHERE status = 'sent'`))
	assert.Equal(t, 1, e.count(t, `SELECT count(*) FROM outbox WHERE status = 'pending' AND retry_count = 1`))
}
