package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/classroom/apps/api/echo"
	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/classroom"
	"github.com/trezcool/classroom/core/docstore"
	"github.com/trezcool/classroom/core/user"
	emailsvc "github.com/trezcool/classroom/services/email"
	identitysvc "github.com/trezcool/classroom/services/identity"
	logsvc "github.com/trezcool/classroom/services/logger"
	storage "github.com/trezcool/classroom/storage/docstore"
)

type StoreLoggerParam struct {
	dig.In
	Logger core.Logger `name:"storeLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newStoreLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "STORE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newStore(conf *core.Config, loggerParam StoreLoggerParam) docstore.Store {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Store.RetryTimeout)
	defer cancel()

	store, err := storage.Open(ctx, conf, loggerParam.Logger)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up store: %v", err), err)
	}
	return store
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	stdLogger := log.New(os.Stdout, "EMAIL : ", log.LstdFlags)
	return emailsvc.NewService(stdLogger, conf, logger)
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	classroom.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func newServer(
	conf *core.Config,
	store docstore.Store,
	accounts *identitysvc.Service,
	validate *validator.Validate,
	translator ut.Translator,
	mailer core.EmailService,
	logger core.Logger,
) echoapi.Server {
	return echoapi.NewServer(conf, &echoapi.Deps{
		Store:      store,
		Accounts:   accounts,
		Validate:   validate,
		Translator: translator,
		Mailer:     mailer,
		Logger:     logger,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newStoreLogger, dig.Name("storeLogger")))
	must(c.Provide(newStore))
	must(c.Provide(identitysvc.NewService))
	must(c.Provide(newEmailService))
	must(c.Provide(newValidator))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
