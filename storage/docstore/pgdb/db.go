// Package pgdb is a docstore.Store backed by a postgres JSONB table.
// Changes made by other processes are picked up through LISTEN/NOTIFY.
package pgdb

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/storage/docstore/pgdb/migrations"
)

// DSN builds the connection string of conf.
func DSN(conf core.DatabaseConfig) string {
	sslMode := "require"
	if conf.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Engine,
		User:     url.UserPassword(conf.User, conf.Password),
		Host:     conf.Address(),
		Path:     conf.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// ping waits for the database to be ready.
func ping(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	backoff := retry.NewFibonacci(100 * time.Millisecond)
	backoff = retry.WithCappedDuration(2*time.Second, backoff)
	backoff = retry.WithMaxDuration(timeout, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return errors.Wrap(err, "DB ping timeout")
}

// Migrate runs the goose command (up, down, status...) against db.
func Migrate(ctx context.Context, db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return errors.Wrapf(goose.RunContext(ctx, command, db, ".", args...), "migrating database (%s)", command)
}

// Connect opens and pings the database at dsn.
func Connect(ctx context.Context, dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(ctx, db, timeout); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Open connects to the database described by conf, migrates it and starts listening for changes.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*DB, error) {
	return OpenDSN(ctx, DSN(conf.Database), conf.Store.RetryTimeout, logger)
}

func OpenDSN(ctx context.Context, dsn string, timeout time.Duration, logger core.Logger) (*DB, error) {
	sqlDB, err := Connect(ctx, dsn, timeout)
	if err != nil {
		return nil, err
	}
	if err = Migrate(ctx, sqlDB, "up"); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	db := &DB{
		db:     sqlx.NewDb(sqlDB, "postgres"),
		logger: logger,
		done:   make(chan struct{}),
	}
	db.listener = pq.NewListener(dsn, 10*time.Second, time.Minute, db.onListenerEvent)
	if err = db.listener.Listen(notifyChannel); err != nil {
		_ = db.listener.Close()
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "listening for changes")
	}
	go db.forwardNotifications()
	return db, nil
}
