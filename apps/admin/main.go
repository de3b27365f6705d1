package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/audit"
	"github.com/umoorsehhat/sehhat/core/its"
	"github.com/umoorsehhat/sehhat/core/user"
	"github.com/umoorsehhat/sehhat/services/email"
	"github.com/umoorsehhat/sehhat/services/logger"
	"github.com/umoorsehhat/sehhat/storage/database"
	"github.com/umoorsehhat/sehhat/storage/database/inmem"
	"github.com/umoorsehhat/sehhat/storage/database/sqlboiler"
	"github.com/umoorsehhat/sehhat/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up DB & repos
	var (
		db       *sql.DB
		usrRepo  user.Repository
		auditSvc *audit.Service
	)
	if conf.Database.InMemory {
		mem := inmemdb.Open()
		usrRepo = inmemdb.NewUserRepository(mem)
		auditSvc = audit.NewService(inmemdb.NewAuditRepository(mem))
	} else {
		var err error
		if err = database.CreateIfNotExist(conf); err != nil {
			logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
		}
		if db, err = database.Open(conf); err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer func() { _ = db.Close() }()
		if err = db.Ping(); err != nil {
			logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
		}
		usrRepo = boiledrepos.NewUserRepository(db)
		auditSvc = audit.NewService(sqlxrepos.NewAuditRepository(sqlxrepos.NewDB(db)))
	}

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

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:       db,
		usrRepo:  usrRepo,
		usrSvc:   user.NewService(usrRepo, emailsvc.NewConsoleService(conf, logger), provider, auditSvc, conf),
		validate: validate,
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		if db != nil {
			_ = db.Close()
		}
		os.Exit(1)
	}
}
