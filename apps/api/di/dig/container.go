package dig_container

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/umoorsehhat/sehhat/apps/api/echo"
	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/araz"
	"github.com/umoorsehhat/sehhat/core/audit"
	"github.com/umoorsehhat/sehhat/core/evaluation"
	"github.com/umoorsehhat/sehhat/core/its"
	"github.com/umoorsehhat/sehhat/core/medical"
	"github.com/umoorsehhat/sehhat/core/moze"
	"github.com/umoorsehhat/sehhat/core/notification"
	"github.com/umoorsehhat/sehhat/core/petition"
	"github.com/umoorsehhat/sehhat/core/student"
	"github.com/umoorsehhat/sehhat/core/user"
	"github.com/umoorsehhat/sehhat/services/blob"
	"github.com/umoorsehhat/sehhat/services/cache"
	"github.com/umoorsehhat/sehhat/services/email"
	"github.com/umoorsehhat/sehhat/services/logger"
	"github.com/umoorsehhat/sehhat/storage/database"
	"github.com/umoorsehhat/sehhat/storage/database/inmem"
	"github.com/umoorsehhat/sehhat/storage/database/sqlboiler"
	"github.com/umoorsehhat/sehhat/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Closer releases the database connections of the container.
type Closer func() error

type Repositories struct {
	dig.Out

	Users         user.Repository
	Mozes         moze.Repository
	Petitions     petition.Repository
	Araz          araz.Repository
	Evaluations   evaluation.Repository
	Medical       medical.Repository
	Students      student.Repository
	Notifications notification.Repository
	Audit         audit.Repository
	Close         Closer
}

type Services struct {
	dig.In

	Users         *user.Service
	Mozes         *moze.Service
	Petitions     *petition.Service
	Araz          *araz.Service
	Evaluations   *evaluation.Service
	Medical       *medical.Service
	Students      *student.Service
	Notifications *notification.Service
	Audit         *audit.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

// newRepositories backs the repositories with postgres, or with the in-memory database
// when conf.Database.InMemory is set.
func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	if conf.Database.InMemory {
		loggerParam.Logger.Info("using the in-memory database")
		db := inmemdb.Open()
		return Repositories{
			Users:         inmemdb.NewUserRepository(db),
			Mozes:         inmemdb.NewMozeRepository(db),
			Petitions:     inmemdb.NewPetitionRepository(db),
			Araz:          inmemdb.NewArazRepository(db),
			Evaluations:   inmemdb.NewEvaluationRepository(db),
			Medical:       inmemdb.NewMedicalRepository(db),
			Students:      inmemdb.NewStudentRepository(db),
			Notifications: inmemdb.NewNotificationRepository(db),
			Audit:         inmemdb.NewAuditRepository(db),
			Close:         func() error { return nil },
		}
	}

	setUp := func() (*sql.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		return database.OpenAndMigrate(conf)
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	xdb := sqlxrepos.NewDB(db)
	return Repositories{
		Users:         boiledrepos.NewUserRepository(db),
		Mozes:         boiledrepos.NewMozeRepository(db),
		Petitions:     boiledrepos.NewPetitionRepository(db),
		Araz:          boiledrepos.NewArazRepository(db),
		Evaluations:   boiledrepos.NewEvaluationRepository(db),
		Medical:       boiledrepos.NewMedicalRepository(db),
		Students:      boiledrepos.NewStudentRepository(db),
		Notifications: sqlxrepos.NewNotificationRepository(xdb),
		Audit:         sqlxrepos.NewAuditRepository(xdb),
		Close:         db.Close,
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newITSProvider queries the ITS directory at conf.ITS.APIURL, or the bundled sample profiles
// when it is unset. Lookups are cached in redis when conf.Redis.URL is set, in memory otherwise.
func newITSProvider(conf *core.Config, logger core.Logger) its.Provider {
	var provider its.Provider
	if conf.ITS.APIURL != "" {
		provider = its.NewRESTProvider(conf.ITS.APIURL, conf.ITS.APIKey)
	} else {
		pools, err := its.LoadPools()
		if err != nil {
			logger.Fatal(fmt.Sprintf("loading ITS sample profiles: %v", err), err)
		}
		provider = its.NewMockProvider(pools, conf.ITS.AllowedIDs...)
	}

	var cache its.Cache = cachesvc.NewMemoryCache()
	if conf.Redis.URL != "" {
		rc, err := cachesvc.NewRedisCache(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		cache = rc
	}
	return its.NewCachedProvider(provider, cache, conf.ITS.CacheTTL, logger)
}

// newAttachmentStore keeps petition attachments in S3 when conf.S3.Bucket is set, in memory otherwise.
func newAttachmentStore(conf *core.Config, logger core.Logger) petition.AttachmentStore {
	if conf.S3.Bucket == "" {
		logger.Info("storing attachments in memory")
		return blobsvc.NewMemoryStore()
	}
	store, err := blobsvc.NewS3Store(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up S3 store: %v", err), err)
	}
	return store
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	evaluation.InitValidators(validate, translator)
	return validate, translator
}

func newAuditRecorder(svc *audit.Service) audit.Recorder {
	return svc
}

func newServerDeps(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	provider its.Provider,
	services Services,
) echoapi.ServerDeps {
	return echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		ITS:             provider,
		UserSvc:         services.Users,
		MozeSvc:         services.Mozes,
		PetitionSvc:     services.Petitions,
		ArazSvc:         services.Araz,
		EvaluationSvc:   services.Evaluations,
		MedicalSvc:      services.Medical,
		StudentSvc:      services.Students,
		NotificationSvc: services.Notifications,
		AuditSvc:        services.Audit,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newITSProvider))
	must(c.Provide(newAttachmentStore))
	must(c.Provide(newValidator))

	must(c.Provide(audit.NewService))
	must(c.Provide(newAuditRecorder))
	must(c.Provide(user.NewService))
	must(c.Provide(moze.NewService))
	must(c.Provide(notification.NewService))
	must(c.Provide(petition.NewService))
	must(c.Provide(araz.NewService))
	must(c.Provide(evaluation.NewService))
	must(c.Provide(medical.NewService))
	must(c.Provide(student.NewService))

	must(c.Provide(newServerDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
