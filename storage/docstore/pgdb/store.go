package pgdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/docstore"
)

const notifyChannel = "docstore_changes"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type documentRow struct {
	ID        string      `db:"id"`
	UniqueKey null.String `db:"unique_key"`
	Fields    []byte      `db:"fields"`
}

type DB struct {
	db       *sqlx.DB
	listener *pq.Listener
	logger   core.Logger
	hub      docstore.Hub

	closeOnce sync.Once
	done      chan struct{}
}

var _ docstore.Store = (*DB)(nil)

func encodeFields(fields docstore.Fields) (string, error) {
	normalized, err := docstore.Normalize(fields, core.NowFunc())
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(normalized)
	return string(data), err
}

// write runs fn in a transaction that also bumps the collection revision and notifies listeners.
func (db *DB) write(ctx context.Context, collection string, fn func(tx *sqlx.Tx) error) error {
	select {
	case <-db.done:
		return docstore.ErrClosed
	default:
	}

	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	const bump = `INSERT INTO collection_revisions (collection, revision) VALUES ($1, 1)
		ON CONFLICT (collection) DO UPDATE SET revision = collection_revisions.revision + 1`
	if _, err = tx.ExecContext(ctx, bump, collection); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "bumping revision")
	}
	if _, err = tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", notifyChannel, collection); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "notifying change")
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	db.hub.Publish(ctx, collection, db.List)
	return nil
}

func (db *DB) List(ctx context.Context, q docstore.Query) (docstore.Snapshot, error) {
	query := psql.Select("id", "unique_key", "fields").From("documents").Where(sq.Eq{"collection": q.Collection})
	if len(q.Where) > 0 {
		filter := make(docstore.Fields, len(q.Where))
		for _, w := range q.Where {
			filter[w.Field] = w.Value
		}
		data, err := json.Marshal(filter)
		if err != nil {
			return docstore.Snapshot{}, errors.Wrap(err, "encoding filter")
		}
		query = query.Where("fields @> ?::jsonb", string(data))
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return docstore.Snapshot{}, errors.Wrap(err, "building query")
	}

	tx, err := db.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return docstore.Snapshot{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var revision int64
	const revQuery = `SELECT COALESCE((SELECT revision FROM collection_revisions WHERE collection = $1), 0)`
	if err = tx.GetContext(ctx, &revision, revQuery, q.Collection); err != nil {
		return docstore.Snapshot{}, errors.Wrap(err, "reading revision")
	}
	var rows []documentRow
	if err = tx.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return docstore.Snapshot{}, errors.Wrapf(err, "listing %s", q.Collection)
	}

	snap := docstore.Snapshot{Revision: uint64(revision), Docs: make([]docstore.Document, 0, len(rows))}
	for _, row := range rows {
		var fields docstore.Fields
		if err = json.Unmarshal(row.Fields, &fields); err != nil {
			return docstore.Snapshot{}, errors.Wrapf(err, "decoding %s", row.ID)
		}
		snap.Docs = append(snap.Docs, docstore.Document{ID: row.ID, Fields: fields})
	}
	docstore.SortDocuments(snap.Docs, q.OrderBy)
	return snap, nil
}

func (db *DB) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	stmt, args, err := psql.Select("id", "unique_key", "fields").From("documents").
		Where(sq.Eq{"collection": collection, "id": id}).ToSql()
	if err != nil {
		return docstore.Document{}, errors.Wrap(err, "building query")
	}

	var row documentRow
	if err = db.db.GetContext(ctx, &row, stmt, args...); err != nil {
		if err == sql.ErrNoRows {
			return docstore.Document{}, docstore.ErrNotFound
		}
		return docstore.Document{}, errors.Wrapf(err, "getting %s/%s", collection, id)
	}
	var fields docstore.Fields
	if err = json.Unmarshal(row.Fields, &fields); err != nil {
		return docstore.Document{}, errors.Wrapf(err, "decoding %s", id)
	}
	return docstore.Document{ID: row.ID, Fields: fields}, nil
}

func (db *DB) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	return db.CreateUnique(ctx, collection, "", fields)
}

func (db *DB) CreateUnique(ctx context.Context, collection, key string, fields docstore.Fields) (string, error) {
	data, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	err = db.write(ctx, collection, func(tx *sqlx.Tx) error {
		stmt, args, err := psql.Insert("documents").
			Columns("collection", "id", "unique_key", "fields").
			Values(collection, id, null.NewString(key, key != ""), data).
			Suffix("ON CONFLICT (collection, unique_key) DO NOTHING RETURNING id").
			ToSql()
		if err != nil {
			return err
		}
		var inserted string
		err = tx.GetContext(ctx, &inserted, stmt, args...)
		if err != sql.ErrNoRows {
			return err
		}

		const owner = `SELECT id FROM documents WHERE collection = $1 AND unique_key = $2`
		if err = tx.GetContext(ctx, &id, owner, collection, key); err != nil {
			return errors.Wrap(err, "finding key owner")
		}
		return docstore.ErrDuplicate
	})
	if err == docstore.ErrDuplicate {
		return id, err
	}
	if err != nil {
		return "", errors.Wrapf(err, "creating %s document", collection)
	}
	return id, nil
}

func (db *DB) Upsert(ctx context.Context, collection, key string, fields docstore.Fields) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("upsert requires a unique key")
	}
	data, err := encodeFields(fields)
	if err != nil {
		return "", false, err
	}

	var res struct {
		ID      string `db:"id"`
		Created bool   `db:"created"`
	}
	err = db.write(ctx, collection, func(tx *sqlx.Tx) error {
		stmt, args, err := psql.Insert("documents").
			Columns("collection", "id", "unique_key", "fields").
			Values(collection, uuid.NewString(), key, data).
			Suffix(`ON CONFLICT (collection, unique_key) DO UPDATE
				SET fields = documents.fields || EXCLUDED.fields, updated_at = now()
				RETURNING id, (xmax = 0) AS created`).
			ToSql()
		if err != nil {
			return err
		}
		return tx.GetContext(ctx, &res, stmt, args...)
	})
	if err != nil {
		return "", false, errors.Wrapf(err, "upserting %s document", collection)
	}
	return res.ID, res.Created, nil
}

func (db *DB) Set(ctx context.Context, collection, id string, fields docstore.Fields) error {
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}
	return db.write(ctx, collection, func(tx *sqlx.Tx) error {
		stmt, args, err := psql.Insert("documents").
			Columns("collection", "id", "fields").
			Values(collection, id, data).
			Suffix("ON CONFLICT (collection, id) DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()").
			ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, stmt, args...)
		return err
	})
}

func (db *DB) Patch(ctx context.Context, collection, id string, fields docstore.Fields) error {
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}
	return db.write(ctx, collection, func(tx *sqlx.Tx) error {
		stmt, args, err := psql.Update("documents").
			Set("fields", sq.Expr("fields || ?::jsonb", data)).
			Set("updated_at", sq.Expr("now()")).
			Where(sq.Eq{"collection": collection, "id": id}).
			ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return docstore.ErrNotFound
		}
		return nil
	})
}

func (db *DB) Delete(ctx context.Context, collection, id string) error {
	return db.write(ctx, collection, func(tx *sqlx.Tx) error {
		stmt, args, err := psql.Delete("documents").Where(sq.Eq{"collection": collection, "id": id}).ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, stmt, args...)
		return err
	})
}

func (db *DB) Subscribe(
	ctx context.Context,
	q docstore.Query,
	onChange func(docstore.Snapshot),
	onError func(error),
) (docstore.Unsubscribe, error) {
	return db.hub.Subscribe(ctx, q, onChange, onError, db.List)
}

func (db *DB) Close() error {
	var err error
	db.closeOnce.Do(func() {
		close(db.done)
		db.hub.Close()
		if lErr := db.listener.Close(); lErr != nil {
			db.logger.Warn("closing listener", lErr)
		}
		err = db.db.Close()
	})
	return err
}
