// Package chain runs an ordered list of strategies and returns the result of
// the first one that succeeds.
package chain

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Step is one strategy in a chain.
type Step[T any] struct {
	Name string
	Try  func(ctx context.Context) (T, error)
}

// haltError marks an error that must stop the chain instead of escalating to
// the next step.
type haltError struct {
	err error
}

func (e *haltError) Error() string { return e.err.Error() }
func (e *haltError) Unwrap() error { return e.err }

// Halt wraps err so that First returns it immediately.
func Halt(err error) error {
	if err == nil {
		return nil
	}
	return &haltError{err: err}
}

// IsHalt reports whether err was produced by Halt.
func IsHalt(err error) bool {
	var h *haltError
	return errors.As(err, &h)
}

// ExhaustedError is returned when every step failed.
type ExhaustedError struct {
	Attempts []error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d strategies failed: %v", len(e.Attempts), errors.Join(e.Attempts...))
}

func (e *ExhaustedError) Unwrap() []error { return e.Attempts }

// First runs steps in order and returns the first successful result. A step
// failing with a Halt error stops the chain and that error is returned with
// the halt marker removed. Context cancellation is checked between steps.
func First[T any](ctx context.Context, logger *zap.Logger, steps ...Step[T]) (T, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var zero T
	var attempts []error
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := step.Try(ctx)
		if err == nil {
			logger.Debug("strategy succeeded", zap.String("strategy", step.Name))
			return result, nil
		}

		var h *haltError
		if errors.As(err, &h) {
			logger.Debug("strategy halted chain", zap.String("strategy", step.Name), zap.Error(h.err))
			return zero, h.err
		}

		logger.Debug("strategy failed", zap.String("strategy", step.Name), zap.Error(err))
		attempts = append(attempts, fmt.Errorf("%s: %w", step.Name, err))
	}

	return zero, &ExhaustedError{Attempts: attempts}
}

// Do is First for steps that only report success or failure.
func Do(ctx context.Context, logger *zap.Logger, steps ...Step[struct{}]) error {
	_, err := First(ctx, logger, steps...)
	return err
}

// Action adapts a plain function into a Step for Do.
func Action(name string, fn func(ctx context.Context) error) Step[struct{}] {
	return Step[struct{}]{
		Name: name,
		Try: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx)
		},
	}
}
