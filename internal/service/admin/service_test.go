package admin

import (
	"context"
	"testing"

	"github.com/diodesmelts/red-whale-render-sub002/internal/repository/memory"
	"github.com/stretchr/testify/require"
)

func TestInitPool(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	svc := New(ledger, nil, nil)

	created, err := svc.InitPool(ctx, 1, 250)
	require.NoError(t, err)
	require.Equal(t, int64(250), created)

	// Idempotent: re-running an already materialized pool is a no-op.
	created, err = svc.InitPool(ctx, 1, 250)
	require.NoError(t, err)
	require.Zero(t, created)

	// Resizing up only creates the tail.
	created, err = svc.InitPool(ctx, 1, 300)
	require.NoError(t, err)
	require.Equal(t, int64(50), created)

	_, err = svc.InitPool(ctx, 2, 0)
	require.ErrorIs(t, err, ErrInvalidPoolSize)
}
