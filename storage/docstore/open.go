// Package docstore opens the docstore.Store selected by the config.
package docstore

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/docstore"
	"github.com/trezcool/classroom/storage/docstore/boltdb"
	"github.com/trezcool/classroom/storage/docstore/memdb"
	"github.com/trezcool/classroom/storage/docstore/pgdb"
)

// drivers
const (
	DriverMemory   = "memory"
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

func Open(ctx context.Context, conf *core.Config, logger core.Logger) (docstore.Store, error) {
	switch conf.Store.Driver {
	case DriverMemory, "":
		logger.Warn("using the in-memory store: data will be lost on exit")
		return memdb.New(), nil
	case DriverBolt:
		db, err := boltdb.Open(conf.Store.BoltPath)
		if err != nil {
			return nil, errors.Wrap(err, "opening bolt store")
		}
		return db, nil
	case DriverPostgres:
		db, err := pgdb.Open(ctx, conf, logger)
		if err != nil {
			return nil, errors.Wrap(err, "opening postgres store")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", conf.Store.Driver)
	}
}
