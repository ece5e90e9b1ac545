package live

import (
	"context"
	"time"
)

// Snapshot is one emission of a live query. Err is set when loading failed; Data is then zero.
type Snapshot[T any] struct {
	Data T
	Err  error
	At   time.Time
}

// Loader reads the full current state of a live query.
type Loader[T any] func(ctx context.Context) (T, error)

// Watch emits a snapshot immediately and a fresh one after every change to tables,
// until ctx is cancelled. The channel is closed when the watcher stops.
func Watch[T any](ctx context.Context, broker *Broker, tables []string, load Loader[T]) <-chan Snapshot[T] {
	out := make(chan Snapshot[T], 1)
	changes, unsubscribe := broker.Subscribe(tables...)

	go func() {
		defer close(out)
		defer unsubscribe()

		emit := func() bool {
			data, err := load(ctx)
			snap := Snapshot[T]{Data: data, Err: err, At: time.Now().UTC()}
			if err != nil {
				var zero T
				snap.Data = zero
			}
			select {
			case <-ctx.Done():
				return false
			case out <- snap:
				return true
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok || ctx.Err() != nil {
					return
				}
				if !emit() {
					return
				}
			}
		}
	}()

	return out
}
