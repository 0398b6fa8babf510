package docstore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// FetchFunc runs a query against a store.
type FetchFunc func(ctx context.Context, q Query) (Snapshot, error)

type subscription struct {
	query    Query
	onChange func(Snapshot)
	onError  func(error)

	mu        sync.Mutex // serializes deliveries
	closed    atomic.Bool
	delivered bool
	revision  uint64
}

// deliver fetches the query and hands the snapshot over, unless it is not newer than the last one.
func (sub *subscription) deliver(ctx context.Context, fetch FetchFunc) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed.Load() {
		return nil
	}

	snap, err := fetch(ctx, sub.query)
	if err != nil {
		return err
	}
	if sub.delivered && snap.Revision <= sub.revision {
		return nil
	}
	sub.delivered = true
	sub.revision = snap.Revision
	sub.onChange(snap)
	return nil
}

func (sub *subscription) fail(err error) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed.Load() && sub.onError != nil {
		sub.onError(err)
	}
}

// close never waits for an in-flight delivery, so it can be called from a callback.
func (sub *subscription) close() {
	sub.closed.Store(true)
}

// Hub is the subscription registry shared by the store drivers.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
	closed bool
}

// Subscribe registers a subscription and delivers its initial snapshot.
func (h *Hub) Subscribe(
	ctx context.Context,
	q Query,
	onChange func(Snapshot),
	onError func(error),
	fetch FetchFunc,
) (Unsubscribe, error) {
	if onChange == nil {
		return nil, errors.New("onChange is required")
	}
	sub := &subscription{query: q, onChange: onChange, onError: onError}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if h.subs == nil {
		h.subs = make(map[uint64]*subscription)
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = sub
	h.mu.Unlock()

	unsubscribe := func() {
		sub.close()
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}

	if err := sub.deliver(ctx, fetch); err != nil {
		unsubscribe()
		return nil, errors.Wrapf(err, "subscribing to %s", q.Collection)
	}
	return unsubscribe, nil
}

func (h *Hub) collectionSubs(collection string) []*subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := make([]*subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if collection == "" || sub.query.Collection == collection {
			subs = append(subs, sub)
		}
	}
	return subs
}

// Publish re-runs the queries subscribed to collection and delivers newer snapshots.
// An empty collection publishes to every subscription.
func (h *Hub) Publish(ctx context.Context, collection string, fetch FetchFunc) {
	for _, sub := range h.collectionSubs(collection) {
		if err := sub.deliver(ctx, fetch); err != nil {
			sub.fail(errors.Wrapf(err, "refreshing %s", sub.query.Collection))
		}
	}
}

// Fail reports err to the subscribers of collection. Their last snapshot stays current.
func (h *Hub) Fail(collection string, err error) {
	for _, sub := range h.collectionSubs(collection) {
		sub.fail(err)
	}
}

// Collections lists the collections having at least one subscriber.
func (h *Hub) Collections() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[string]bool)
	colls := make([]string, 0)
	for _, sub := range h.subs {
		if !seen[sub.query.Collection] {
			seen[sub.query.Collection] = true
			colls = append(colls, sub.query.Collection)
		}
	}
	return colls
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
