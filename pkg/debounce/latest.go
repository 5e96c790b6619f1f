package debounce

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned to callers whose request was replaced by a newer one.
var ErrSuperseded = errors.New("debounce: superseded by a newer request")

// Latest runs delayed lookups where each new call supersedes the previous one.
// A superseded call is cancelled before it reaches fn if it is still waiting, and
// its result is discarded if fn already started.
type Latest[T any] struct {
	delay time.Duration

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func NewLatest[T any](delay time.Duration) *Latest[T] {
	return &Latest[T]{delay: delay}
}

// Do waits for the delay, runs fn and returns its result unless a newer Do call
// was made in the meantime, in which case it returns ErrSuperseded.
func (l *Latest[T]) Do(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	l.mu.Lock()
	l.seq++
	mine := l.seq
	if l.cancel != nil {
		l.cancel()
	}
	callCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()
	defer cancel()

	if l.delay > 0 {
		timer := time.NewTimer(l.delay)
		select {
		case <-callCtx.Done():
			timer.Stop()
			return zero, l.cancelled(ctx)
		case <-timer.C:
		}
	}

	value, err := fn(callCtx)

	l.mu.Lock()
	current := l.seq == mine
	if current {
		l.cancel = nil
	}
	l.mu.Unlock()

	if !current {
		return zero, ErrSuperseded
	}
	if err != nil {
		return zero, err
	}
	return value, nil
}

// Cancel supersedes any call in flight without starting a new one.
func (l *Latest[T]) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

func (l *Latest[T]) cancelled(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return ErrSuperseded
}
