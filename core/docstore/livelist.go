package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
)

// DecodeFunc converts a stored document into its typed entity.
type DecodeFunc[T any] func(Document) (T, error)

// LiveList keeps the typed result of a query in sync with the store through a standing subscription.
// Each delivery replaces the whole list. Failed deliveries are logged and the previous list is kept.
type LiveList[T any] struct {
	store  Store
	query  Query
	decode DecodeFunc[T]
	logger core.Logger

	subMu     sync.Mutex // serializes Subscribe; held across the store call, unlike mu
	mu        sync.RWMutex
	items     []T
	revision  uint64
	loaded    bool
	closed    bool
	unsub     Unsubscribe
	ready     chan struct{}
	readyOnce sync.Once
}

func NewLiveList[T any](store Store, q Query, decode DecodeFunc[T], logger core.Logger) *LiveList[T] {
	return &LiveList[T]{
		store:  store,
		query:  q,
		decode: decode,
		logger: logger,
		items:  make([]T, 0),
		ready:  make(chan struct{}),
	}
}

// Subscribe starts the standing subscription. The first snapshot is applied before it returns.
func (l *LiveList[T]) Subscribe(ctx context.Context) error {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	l.mu.RLock()
	closed, subscribed := l.closed, l.unsub != nil
	l.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if subscribed {
		return nil
	}

	unsub, err := l.store.Subscribe(ctx, l.query, l.apply, l.fail)
	if err != nil {
		l.logger.Error(fmt.Sprintf("subscribing to %s: %v", l.query.Collection, err), err)
		return errors.Wrapf(err, "subscribing to %s", l.query.Collection)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		unsub()
		return ErrClosed
	}
	l.unsub = unsub
	l.mu.Unlock()
	return nil
}

func (l *LiveList[T]) apply(snap Snapshot) {
	items := make([]T, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		item, err := l.decode(doc)
		if err != nil {
			l.logger.Warn(fmt.Sprintf("skipping malformed %s document %q: %v", l.query.Collection, doc.ID, err), err)
			continue
		}
		items = append(items, item)
	}

	l.mu.Lock()
	if l.closed || (l.loaded && snap.Revision <= l.revision) {
		l.mu.Unlock()
		return
	}
	l.items = items
	l.revision = snap.Revision
	l.loaded = true
	l.mu.Unlock()

	l.readyOnce.Do(func() { close(l.ready) })
}

func (l *LiveList[T]) fail(err error) {
	l.logger.Error(fmt.Sprintf("%s subscription: %v", l.query.Collection, err), err)
}

// Items returns a copy of the current list.
func (l *LiveList[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	items := make([]T, len(l.items))
	copy(items, l.items)
	return items
}

// Find returns the first item matching fn.
func (l *LiveList[T]) Find(fn func(T) bool) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, item := range l.items {
		if fn(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Ready is closed once the first snapshot has been applied.
func (l *LiveList[T]) Ready() <-chan struct{} {
	return l.ready
}

func (l *LiveList[T]) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

func (l *LiveList[T]) Revision() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.revision
}

func (l *LiveList[T]) Collection() string {
	return l.query.Collection
}

// Close tears down the subscription. The last list stays readable.
func (l *LiveList[T]) Close() {
	l.mu.Lock()
	l.closed = true
	unsub := l.unsub
	l.unsub = nil
	l.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}
