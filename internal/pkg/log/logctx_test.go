package log

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntoFrom_RoundTrip(t *testing.T) {
	t.Parallel()

	lg := slog.New(slog.DiscardHandler)
	ctx := Into(context.Background(), lg)

	require.Same(t, lg, From(ctx))
}

func TestFrom_EmptyContext_Default(t *testing.T) {
	t.Parallel()

	require.Same(t, slog.Default(), From(context.Background()))
}

func TestFrom_NilLogger_Default(t *testing.T) {
	t.Parallel()

	ctx := Into(context.Background(), nil)
	require.Same(t, slog.Default(), From(ctx))
}
