package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

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
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		ITS        its.Provider

		UserSvc         *user.Service
		MozeSvc         *moze.Service
		PetitionSvc     *petition.Service
		ArazSvc         *araz.Service
		EvaluationSvc   *evaluation.Service
		MedicalSvc      *medical.Service
		StudentSvc      *student.Service
		NotificationSvc *notification.Service
		AuditSvc        *audit.Service
	}

	Server struct {
		*http.Server
		app      *echo.Echo
		deps     ServerDeps
		metrics  *metrics
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(deps ServerDeps) *Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.Validate, "Validate"),
		vala.IsNotNil(deps.Translator, "Translator"),
		vala.IsNotNil(deps.ITS, "ITS"),
		vala.IsNotNil(deps.UserSvc, "UserSvc"),
		vala.IsNotNil(deps.MozeSvc, "MozeSvc"),
		vala.IsNotNil(deps.PetitionSvc, "PetitionSvc"),
		vala.IsNotNil(deps.ArazSvc, "ArazSvc"),
		vala.IsNotNil(deps.EvaluationSvc, "EvaluationSvc"),
		vala.IsNotNil(deps.MedicalSvc, "MedicalSvc"),
		vala.IsNotNil(deps.StudentSvc, "StudentSvc"),
		vala.IsNotNil(deps.NotificationSvc, "NotificationSvc"),
		vala.IsNotNil(deps.AuditSvc, "AuditSvc"),
	).CheckAndPanic()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echo.New()
	s := &Server{
		Server: &http.Server{
			Addr:    deps.Conf.Server.Address,
			Handler: app,
		},
		app:      app,
		deps:     deps,
		metrics:  newMetrics(),
		shutdown: shutdown,
		errors:   make(chan error, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware, actorMiddleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, conf.ExposeErrors(), s.SignalShutdown)
	s.app.Debug = conf.ExposeErrors()

	s.app.GET("/", s.home)
	s.app.GET("/metrics", s.metrics.handler())

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(conf))
	auth := func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwt(userMiddleware(s.deps.UserSvc)(next))
	}

	sess := &session{users: s.deps.UserSvc, mozes: s.deps.MozeSvc}
	registerUserAPI(v1, auth, sess, s.deps)
	registerMozeAPI(v1, auth, sess, s.deps)
	registerPetitionAPI(v1, auth, sess, s.deps)
	registerArazAPI(v1, auth, sess, s.deps)
	registerEvaluationAPI(v1, auth, sess, s.deps)
	registerMedicalAPI(v1, auth, sess, s.deps)
	registerStudentAPI(v1, auth, sess, s.deps)
	registerNotificationAPI(v1, auth, sess, s.deps)
	registerAuditAPI(v1, auth, s.deps)
}

// Start blocks while serving; listening errors are sent to Errors().
func (s *Server) Start() {
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the application to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.Server.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
