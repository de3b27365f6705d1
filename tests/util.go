// Package testutil wires an in-memory application stack for the tests.
package testutil

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

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
	"github.com/umoorsehhat/sehhat/services/email"
	"github.com/umoorsehhat/sehhat/services/logger"
	"github.com/umoorsehhat/sehhat/storage/database/inmem"
)

// ITS IDs known to the mock provider of the stack.
var AllowedITSIDs = []string{"20300001", "20300002", "20300003", "30400001", "30400002"}

type Stack struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	ITS        its.Provider
	DB         *inmemdb.DB
	UserRepo   user.Repository
	MozeRepo   moze.Repository

	AuditSvc        *audit.Service
	UserSvc         *user.Service
	MozeSvc         *moze.Service
	NotificationSvc *notification.Service
	PetitionSvc     *petition.Service
	ArazSvc         *araz.Service
	EvaluationSvc   *evaluation.Service
	MedicalSvc      *medical.Service
	StudentSvc      *student.Service
}

// NewConfig returns the TEST configuration.
func NewConfig() *core.Config {
	_ = os.Setenv("ENV", "TEST")
	return core.NewConfig()
}

// NewStack builds every service on top of a fresh in-memory database.
// It panics on failure so that it may be used from TestMain.
func NewStack() *Stack {
	conf := NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	evaluation.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger)
	user.LoadCommonPasswords()

	pools, err := its.LoadPools()
	if err != nil {
		panic(err)
	}
	provider := its.NewMockProvider(pools, AllowedITSIDs...)

	db := inmemdb.Open()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	s := &Stack{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		ITS:        provider,
		DB:         db,
		UserRepo:   inmemdb.NewUserRepository(db),
		MozeRepo:   inmemdb.NewMozeRepository(db),
	}
	s.AuditSvc = audit.NewService(inmemdb.NewAuditRepository(db))
	s.UserSvc = user.NewService(s.UserRepo, mailSvc, provider, s.AuditSvc, conf)
	s.MozeSvc = moze.NewService(s.MozeRepo, s.UserSvc, s.AuditSvc)
	s.NotificationSvc = notification.NewService(inmemdb.NewNotificationRepository(db), mailSvc)
	s.PetitionSvc = petition.NewService(
		inmemdb.NewPetitionRepository(db), blobsvc.NewMemoryStore(), s.UserSvc, s.MozeSvc, s.NotificationSvc, s.AuditSvc,
	)
	s.ArazSvc = araz.NewService(inmemdb.NewArazRepository(db), s.UserSvc, s.MozeSvc, s.NotificationSvc, s.AuditSvc)
	s.EvaluationSvc = evaluation.NewService(inmemdb.NewEvaluationRepository(db), s.AuditSvc)
	s.MedicalSvc = medical.NewService(inmemdb.NewMedicalRepository(db), s.UserSvc, s.AuditSvc)
	s.StudentSvc = student.NewService(inmemdb.NewStudentRepository(db), s.UserSvc, s.AuditSvc)
	return s
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// SetMoze attaches usr to the moze.
func SetMoze(t *testing.T, repo user.Repository, usr user.User, mozeID string) user.User {
	usr.MozeID = mozeID
	usr, err := repo.UpdateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("setMoze() failed: %v", err)
	}
	return usr
}

func CreateMoze(t *testing.T, repo moze.Repository, name, code, aamilID, coordinatorID string) moze.Moze {
	now := time.Now().UTC()
	mz, err := repo.CreateMoze(context.Background(), moze.Moze{
		Name:          name,
		Code:          code,
		AamilID:       aamilID,
		CoordinatorID: coordinatorID,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("createMoze() failed: %v", err)
	}
	return mz
}
