package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/classroom"
	"github.com/trezcool/classroom/core/user"
	identitysvc "github.com/trezcool/classroom/services/identity"
	logsvc "github.com/trezcool/classroom/services/logger"
	storage "github.com/trezcool/classroom/storage/docstore"
	"github.com/trezcool/classroom/storage/docstore/pgdb"
)

var stdLogger *log.Logger

func main() {
	stdLogger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	defer logger.Close()

	ctx, cancel := context.WithTimeout(context.Background(), conf.Store.RetryTimeout)
	defer cancel()

	cli := commandLine{logger: logger}
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if conf.Store.Driver == storage.DriverPostgres {
			db, err := pgdb.Connect(ctx, pgdb.DSN(conf.Database), conf.Store.RetryTimeout)
			errAndDie(err)
			defer db.Close()
			cli.db = db
		}
	} else {
		store, err := storage.Open(ctx, conf, logger)
		errAndDie(err)
		defer store.Close()

		validate, translator := validator.New(), core.NewTranslator()
		core.InitValidators(validate, translator)
		classroom.InitValidators(validate, translator)
		user.InitValidators(validate, translator)

		cli.accounts = identitysvc.NewService(store, logger)
		cli.profiles = user.NewProfileRepository(store, validate, logger)
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		cancel()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		stdLogger.Fatal(err)
	}
}
