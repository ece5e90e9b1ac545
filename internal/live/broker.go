package live

import (
	"sync"
)

// Table names used as broker topics.
const (
	TableClasses    = "classes"
	TableStudents   = "students"
	TableSubjects   = "subjects"
	TableLessons    = "lessons"
	TableAttendance = "attendance"
)

// Broker fans out table-change notifications to subscribers in publish order.
// Notifications are coalesced: a slow subscriber sees at least one signal after
// the latest commit, never a backlog.
type Broker struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*subscription
	hooks  []func(tables []string)
}

type subscription struct {
	tables map[string]struct{}
	ch     chan struct{}
}

// NewBroker constructs an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]*subscription)}
}

// Subscribe registers interest in the given tables. The returned func unsubscribes
// and closes the channel.
func (b *Broker) Subscribe(tables ...string) (<-chan struct{}, func()) {
	sub := &subscription{tables: make(map[string]struct{}, len(tables)), ch: make(chan struct{}, 1)}
	for _, t := range tables {
		sub.tables[t] = struct{}{}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
}

// OnPublish registers a hook invoked with every locally published change.
func (b *Broker) OnPublish(hook func(tables []string)) {
	b.mu.Lock()
	b.hooks = append(b.hooks, hook)
	b.mu.Unlock()
}

// Publish signals that the given tables changed. Call it after the write committed.
// A nil broker ignores the call.
func (b *Broker) Publish(tables ...string) {
	if b == nil || len(tables) == 0 {
		return
	}
	b.deliver(tables)

	b.mu.RLock()
	hooks := append([]func([]string){}, b.hooks...)
	b.mu.RUnlock()
	for _, hook := range hooks {
		hook(tables)
	}
}

// Subscribers reports the number of active subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) deliver(tables []string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.matches(tables) {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

func (s *subscription) matches(tables []string) bool {
	for _, t := range tables {
		if _, ok := s.tables[t]; ok {
			return true
		}
	}
	return false
}
