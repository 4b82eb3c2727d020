package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBreaker(t *testing.T) {
	ctx := context.Background()

	t.Run("should stay closed on success", func(t *testing.T) {
		b := NewBreaker(Config{MaxFailures: 2, Timeout: time.Minute})

		require.NoError(t, b.Execute(ctx, func() error { return nil }))

		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("should open after max consecutive failures", func(t *testing.T) {
		b := NewBreaker(Config{MaxFailures: 2, Timeout: time.Minute})

		require.ErrorIs(t, b.Execute(ctx, func() error { return errBoom }), errBoom)
		require.ErrorIs(t, b.Execute(ctx, func() error { return errBoom }), errBoom)

		assert.Equal(t, StateOpen, b.State())
		assert.ErrorIs(t, b.Execute(ctx, func() error { return nil }), ErrCircuitOpen)
	})

	t.Run("should reset failure count on success", func(t *testing.T) {
		b := NewBreaker(Config{MaxFailures: 2, Timeout: time.Minute})

		require.ErrorIs(t, b.Execute(ctx, func() error { return errBoom }), errBoom)
		require.NoError(t, b.Execute(ctx, func() error { return nil }))
		require.ErrorIs(t, b.Execute(ctx, func() error { return errBoom }), errBoom)

		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("should probe after timeout and close on success", func(t *testing.T) {
		b := NewBreaker(Config{MaxFailures: 1, Timeout: 10 * time.Millisecond})

		require.ErrorIs(t, b.Execute(ctx, func() error { return errBoom }), errBoom)
		require.Equal(t, StateOpen, b.State())

		time.Sleep(20 * time.Millisecond)

		require.NoError(t, b.Execute(ctx, func() error { return nil }))
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("should reopen on failed probe", func(t *testing.T) {
		b := NewBreaker(Config{MaxFailures: 1, Timeout: 10 * time.Millisecond})

		require.ErrorIs(t, b.Execute(ctx, func() error { return errBoom }), errBoom)
		time.Sleep(20 * time.Millisecond)
		require.ErrorIs(t, b.Execute(ctx, func() error { return errBoom }), errBoom)

		assert.Equal(t, StateOpen, b.State())
	})

	t.Run("should respect cancelled context", func(t *testing.T) {
		b := NewBreaker(Config{MaxFailures: 1, Timeout: time.Minute})
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := b.Execute(cancelled, func() error { return nil })

		assert.ErrorIs(t, err, context.Canceled)
	})
}
