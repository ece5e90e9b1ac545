package live

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan Snapshot[T]) Snapshot[T] {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
	}
	return Snapshot[T]{}
}

func TestBrokerFiltersByTableAndCoalesces(t *testing.T) {
	b := NewBroker()
	ch, unsubscribe := b.Subscribe(TableLessons)
	defer unsubscribe()

	b.Publish(TableStudents)
	select {
	case <-ch:
		t.Fatal("unrelated table delivered")
	default:
	}

	for i := 0; i < 5; i++ {
		b.Publish(TableLessons)
	}
	<-ch
	select {
	case <-ch:
		t.Fatal("notifications were not coalesced")
	default:
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	ch, unsubscribe := b.Subscribe(TableClasses)
	assert.Equal(t, 1, b.Subscribers())
	unsubscribe()
	unsubscribe()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, b.Subscribers())
	b.Publish(TableClasses)
}

func TestBrokerRunsPublishHooks(t *testing.T) {
	b := NewBroker()
	var got []string
	b.OnPublish(func(tables []string) { got = tables })
	b.Publish(TableAttendance, TableLessons)
	assert.Equal(t, []string{TableAttendance, TableLessons}, got)
}

func TestWatchEmitsInitialAndAfterEachChange(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var version int32
	snaps := Watch(ctx, b, []string{TableClasses}, func(context.Context) (int32, error) {
		return atomic.LoadInt32(&version), nil
	})

	first := receive(t, snaps)
	assert.Equal(t, int32(0), first.Data)
	assert.NoError(t, first.Err)
	assert.False(t, first.At.IsZero())

	atomic.StoreInt32(&version, 1)
	b.Publish(TableClasses)
	assert.Equal(t, int32(1), receive(t, snaps).Data)

	atomic.StoreInt32(&version, 2)
	b.Publish(TableClasses)
	assert.Equal(t, int32(2), receive(t, snaps).Data)
}

func TestWatchDeliversLoadErrors(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("disk gone")
	snaps := Watch(ctx, b, []string{TableSubjects}, func(context.Context) ([]string, error) {
		return []string{"stale"}, boom
	})

	snap := receive(t, snaps)
	assert.ErrorIs(t, snap.Err, boom)
	assert.Nil(t, snap.Data)
}

func TestWatchStopsOnCancel(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	snaps := Watch(ctx, b, []string{TableStudents}, func(context.Context) (int, error) { return 1, nil })
	receive(t, snaps)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-snaps:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRedisBridgeIgnoresOwnEchoes(t *testing.T) {
	b := NewBroker()
	bridge := NewRedisBridge(nil, b, "rollcall:changes", nil)
	ch, unsubscribe := b.Subscribe(TableLessons)
	defer unsubscribe()

	own, err := encodeChange(bridge.Origin(), []string{TableLessons})
	require.NoError(t, err)
	bridge.handle(own)
	select {
	case <-ch:
		t.Fatal("own change was re-delivered")
	default:
	}

	remote, err := encodeChange("other-process", []string{TableLessons})
	require.NoError(t, err)
	bridge.handle(remote)
	select {
	case <-ch:
	default:
		t.Fatal("remote change not delivered")
	}

	bridge.handle("not json")
}
