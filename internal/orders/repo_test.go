package orders

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"github.com/ariefcatur/go-order-saga/internal/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a database: TEST_POSTGRES_DSN=postgres://... go test ./internal/orders
func testRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	require.NoError(t, postgres.MigrateUp(dsn))
	pool, err := postgres.Connect(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewRepo(pool)
}

func TestRepo_CreateFindTransition(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	o := Order{
		ID:         uuid.NewString(),
		CustomerID: uuid.NewString(),
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		Items: []Item{
			{ID: uuid.NewString(), ProductID: uuid.NewString(), Quantity: 2},
			{ID: uuid.NewString(), ProductID: uuid.NewString(), Quantity: 1},
		},
	}
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Items, got.Items)
	assert.True(t, o.CreatedAt.Equal(got.CreatedAt))

	mine, err := repo.ListByCustomer(ctx, o.CustomerID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Len(t, mine[0].Items, 2)

	_, changed, err := repo.Transition(ctx, o.ID, func(cur Order) (Status, bool) {
		return StatusCompleted, CanTransition(cur.Status, StatusCompleted)
	})
	require.NoError(t, err)
	assert.True(t, changed)

	got, err = repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	_, _, err = repo.Transition(ctx, uuid.NewString(), func(Order) (Status, bool) { return StatusCancelled, true })
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
