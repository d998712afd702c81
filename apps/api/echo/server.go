package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/assessment"
	"github.com/trezcool/escola/core/attendance"
	"github.com/trezcool/escola/core/auth"
	"github.com/trezcool/escola/core/chat"
	"github.com/trezcool/escola/core/content"
	"github.com/trezcool/escola/core/feedback"
	"github.com/trezcool/escola/core/gamification"
	"github.com/trezcool/escola/core/invite"
	"github.com/trezcool/escola/core/reminder"
	"github.com/trezcool/escola/core/school"
	"github.com/trezcool/escola/core/user"
)

type (
	// Deps holds everything the API serves.
	Deps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		DB          core.Pinger
		Users       *user.Service
		Sessions    *auth.Manager
		Invites     *invite.Service
		School      *school.Service
		Attendance  *attendance.Service
		Assessments *assessment.Service
		Content     *content.Service
		Feedback    *feedback.Service
		Points      *gamification.Service
		Reminders   *reminder.Service
		Assistant   *chat.Assistant // nil: the chat endpoint answers 503
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		deps     Deps
		app      *echo.Echo
		tokens   tokenIssuer
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps Deps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		tokens:   newTokenIssuer(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metricsMiddleware())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)
	s.app.GET("/healthz", s.healthz)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.tokens.jwtConfig())
	authed := []echo.MiddlewareFunc{jwt, sessionMiddleware(s.deps.Sessions, s.deps.Users)}

	base := baseApi{validate: s.deps.Validate, school: s.deps.School}

	registerAuthAPI(v1, authed, authApi{
		baseApi:  base,
		users:    s.deps.Users,
		sessions: s.deps.Sessions,
		tokens:   s.tokens,
	})
	registerInviteAPI(v1, authed, inviteApi{baseApi: base, invites: s.deps.Invites})
	registerAdminAPI(v1, authed, adminApi{baseApi: base, translator: s.deps.Translator, users: s.deps.Users})
	turmas := v1.Group("/turmas", authed...)
	aulas := v1.Group("/aulas", authed...)
	registerSchoolAPI(turmas, aulas, schoolApi{baseApi: base, assessments: s.deps.Assessments, content: s.deps.Content})
	registerAttendanceAPI(aulas, attendanceApi{baseApi: base, attendance: s.deps.Attendance})
	registerReminderAPI(aulas, reminderApi{baseApi: base, reminders: s.deps.Reminders})
	registerContentAPI(v1, aulas, authed, contentApi{baseApi: base, content: s.deps.Content, feedback: s.deps.Feedback})
	registerAssessmentAPI(v1, authed, assessmentApi{baseApi: base, assessments: s.deps.Assessments})
	registerChatAPI(v1, authed, chatApi{baseApi: base, assistant: s.deps.Assistant})
	registerGamificationAPI(v1, authed, gamificationApi{baseApi: base, points: s.deps.Points})
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error { return s.errors }

func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

func (s *server) healthz(ctx echo.Context) error {
	if s.deps.DB == nil {
		return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}
	if err := s.deps.DB.PingContext(ctx.Request().Context()); err != nil {
		s.deps.Logger.Warn("health check failed", err)
		return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
