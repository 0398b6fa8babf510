package pgdb

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const listenerPingInterval = 90 * time.Second

func (db *DB) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventDisconnected:
		db.logger.Warn(fmt.Sprintf("change listener disconnected: %v", err), err)
		db.hub.Fail("", errors.Wrap(err, "change listener disconnected"))
	case pq.ListenerEventConnectionAttemptFailed:
		db.logger.Error(fmt.Sprintf("change listener reconnection failed: %v", err), err)
	case pq.ListenerEventReconnected:
		db.logger.Info("change listener reconnected")
	}
}

// forwardNotifications publishes the collections changed by other processes.
// Our own writes are published directly; the hub drops their echo by revision.
func (db *DB) forwardNotifications() {
	ctx := context.Background()
	for {
		select {
		case <-db.done:
			return
		case n, ok := <-db.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// reconnected: notifications may have been missed
				db.hub.Publish(ctx, "", db.List)
				continue
			}
			db.hub.Publish(ctx, n.Extra, db.List)
		case <-time.After(listenerPingInterval):
			go func() {
				if err := db.listener.Ping(); err != nil {
					db.logger.Warn(fmt.Sprintf("pinging change listener: %v", err), err)
				}
			}()
		}
	}
}
