package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirst(t *testing.T) {
	ctx := context.Background()

	t.Run("returns first success and skips the rest", func(t *testing.T) {
		var calls []string
		step := func(name string, value int, err error) Step[int] {
			return Step[int]{Name: name, Try: func(context.Context) (int, error) {
				calls = append(calls, name)
				return value, err
			}}
		}

		got, err := First(ctx, nil,
			step("a", 0, errors.New("nope")),
			step("b", 7, nil),
			step("c", 9, nil),
		)
		require.NoError(t, err)
		assert.Equal(t, 7, got)
		assert.Equal(t, []string{"a", "b"}, calls)
	})

	t.Run("exhaustion wraps every attempt", func(t *testing.T) {
		errA := errors.New("a failed")
		errB := errors.New("b failed")

		err := Do(ctx, nil,
			Action("a", func(context.Context) error { return errA }),
			Action("b", func(context.Context) error { return errB }),
		)
		require.Error(t, err)

		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Len(t, exhausted.Attempts, 2)
		assert.ErrorIs(t, err, errA)
		assert.ErrorIs(t, err, errB)
		assert.Contains(t, err.Error(), "a: a failed")
	})

	t.Run("halt stops the chain", func(t *testing.T) {
		denied := errors.New("denied")
		reached := false

		err := Do(ctx, nil,
			Action("preflight", func(context.Context) error { return Halt(denied) }),
			Action("never", func(context.Context) error { reached = true; return nil }),
		)
		assert.Same(t, denied, err)
		assert.False(t, reached)
		assert.False(t, IsHalt(err))
	})

	t.Run("cancelled context stops before next step", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		err := Do(cctx, nil,
			Action("first", func(context.Context) error { cancel(); return errors.New("fail") }),
			Action("second", func(context.Context) error { t.Fatal("should not run"); return nil }),
		)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("empty chain is exhausted", func(t *testing.T) {
		_, err := First[string](ctx, nil)
		var exhausted *ExhaustedError
		assert.ErrorAs(t, err, &exhausted)
	})

	t.Run("halt of nil is nil", func(t *testing.T) {
		assert.NoError(t, Halt(nil))
	})
}
