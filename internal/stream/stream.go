// Package stream implements a small push-based, single-subscription stream
// with completion and error signals.
//
// A Stream does nothing until Subscribe is called. Operators such as Delay
// and OnNext return a new Stream that shares the subscription guard of its
// parent, so a pipeline can be consumed exactly once.
package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/okian/pricetrace/pkg/metrics"
)

// EmitFunc pushes one value downstream. It returns false when the subscriber
// is gone and the source must stop producing.
type EmitFunc[T any] func(v T) bool

// SourceFunc produces values by calling emit. Returning nil completes the
// stream; returning an error terminates it with an error signal.
type SourceFunc[T any] func(ctx context.Context, emit EmitFunc[T]) error

// Stream is a lazy, finite, single-subscription sequence.
type Stream[T any] struct {
	source SourceFunc[T]
	guard  *atomic.Bool
}

// Create builds a stream from a source function.
func Create[T any](src SourceFunc[T]) *Stream[T] {
	return &Stream[T]{source: src, guard: new(atomic.Bool)}
}

// FromSlice builds a stream that emits items in order and completes.
// The slice is copied so later mutation by the caller is not observed.
func FromSlice[T any](items []T) *Stream[T] {
	snapshot := append([]T(nil), items...)
	return Create(func(ctx context.Context, emit EmitFunc[T]) error {
		for _, v := range snapshot {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !emit(v) {
				return ctx.Err()
			}
		}
		return nil
	})
}

// Just builds a stream of the given items.
func Just[T any](items ...T) *Stream[T] {
	return FromSlice(items)
}

// Error builds a stream that terminates immediately with err.
func Error[T any](err error) *Stream[T] {
	return Create(func(context.Context, EmitFunc[T]) error {
		return err
	})
}

func (s *Stream[T]) derive(src SourceFunc[T]) *Stream[T] {
	return &Stream[T]{source: src, guard: s.guard}
}

// Delay postpones every element by d. The wait is a timer raced against
// the subscription context; a cancelled subscriber abandons the pending
// element.
func (s *Stream[T]) Delay(d time.Duration) *Stream[T] {
	if d <= 0 {
		return s
	}
	return s.derive(func(ctx context.Context, emit EmitFunc[T]) error {
		return s.source(ctx, func(v T) bool {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return emit(v)
			case <-ctx.Done():
				return false
			}
		})
	})
}

// OnNext calls fn for every element before it is passed downstream.
func (s *Stream[T]) OnNext(fn func(T)) *Stream[T] {
	return s.derive(func(ctx context.Context, emit EmitFunc[T]) error {
		return s.source(ctx, func(v T) bool {
			fn(v)
			return emit(v)
		})
	})
}

// OnComplete calls fn when the upstream completes normally.
func (s *Stream[T]) OnComplete(fn func()) *Stream[T] {
	return s.derive(func(ctx context.Context, emit EmitFunc[T]) error {
		err := s.source(ctx, emit)
		if err == nil && ctx.Err() == nil {
			fn()
		}
		return err
	})
}

// OnError calls fn when the upstream terminates with an error. Cancellation
// of the subscription is not an error.
func (s *Stream[T]) OnError(fn func(error)) *Stream[T] {
	return s.derive(func(ctx context.Context, emit EmitFunc[T]) error {
		err := s.source(ctx, emit)
		if err != nil && !cancelled(ctx, err) {
			fn(err)
		}
		return err
	})
}

// OnTerminate calls fn exactly once when the subscription ends for any
// reason, including cancellation. err is nil on completion.
func (s *Stream[T]) OnTerminate(fn func(err error)) *Stream[T] {
	return s.derive(func(ctx context.Context, emit EmitFunc[T]) error {
		err := s.source(ctx, emit)
		switch {
		case cancelled(ctx, err):
			fn(context.Cause(ctx))
		default:
			fn(err)
		}
		return err
	})
}

// Subscribe starts the stream and returns its signals. The channel is closed
// after the terminal signal, or without one if ctx is cancelled first.
// A second subscription to the same pipeline receives ErrAlreadySubscribed.
func (s *Stream[T]) Subscribe(ctx context.Context) <-chan Signal[T] {
	out := make(chan Signal[T])

	if !s.guard.CompareAndSwap(false, true) {
		go func() {
			defer close(out)
			select {
			case out <- failed[T](ErrAlreadySubscribed):
			case <-ctx.Done():
			}
		}()
		return out
	}

	go func() {
		defer close(out)
		metrics.StreamStarted()
		defer metrics.StreamFinished()

		send := func(sig Signal[T]) bool {
			select {
			case out <- sig:
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := s.source(ctx, func(v T) bool {
			if ctx.Err() != nil {
				return false
			}
			if !send(next(v)) {
				return false
			}
			metrics.RecordStreamElement()
			return true
		})

		switch {
		case cancelled(ctx, err):
			metrics.RecordStreamCancel()
		case err != nil:
			metrics.RecordStreamError()
			send(failed[T](err))
		default:
			metrics.RecordStreamComplete()
			send(complete[T]())
		}
	}()
	return out
}

// Collect subscribes and gathers all elements. It returns the elements seen
// so far together with the terminal error, or ctx's error when the
// subscription was abandoned.
func (s *Stream[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	for sig := range s.Subscribe(ctx) {
		switch sig.Kind {
		case KindNext:
			items = append(items, sig.Value)
		case KindError:
			return items, sig.Err
		case KindComplete:
			return items, nil
		}
	}
	return items, ctx.Err()
}

// cancelled reports whether err, or the lack of one, is explained by the
// subscription context having ended.
func cancelled(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
