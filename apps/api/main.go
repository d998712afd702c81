package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/escola/apps/api/echo"
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
	emailsvc "github.com/trezcool/escola/services/email"
	"github.com/trezcool/escola/services/jobs"
	logsvc "github.com/trezcool/escola/services/logger"
	"github.com/trezcool/escola/storage/cache"
	"github.com/trezcool/escola/storage/database"
	sqlxrepos "github.com/trezcool/escola/storage/database/sqlx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger, flush, err := logsvc.New(conf)
	if err != nil {
		return errors.Wrap(err, "setting up logger")
	}
	defer flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// set up DB
	store, err := setUpDB(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err := store.DB().Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up session revocations
	var revocations auth.RevocationStore
	if conf.Redis.Addr != "" {
		rdb, err := cache.OpenRedis(ctx, conf.Redis)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer rdb.Close()
		revocations = cache.NewRedisRevocationStore(rdb)
	} else {
		logger.Warn("REDIS_ADDR not set: session revocations are kept in memory")
		revocations = cache.NewMemoryRevocationStore()
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrRepo := sqlxrepos.NewUserRepository(store)
	schoolSvc := school.NewService(sqlxrepos.NewSchoolRepository(store), store)
	pointsSvc := gamification.NewService(sqlxrepos.NewGamificationRepository(store), logger)
	inviteSvc := invite.NewService(sqlxrepos.NewInviteRepository(store), usrRepo, mailSvc, conf.InviteTTL, logger)
	usrSvc := user.NewService(usrRepo, schoolSvc, inviteSvc, store)
	contentSvc := content.NewService(sqlxrepos.NewContentRepository(store), schoolSvc)
	assessmentSvc := assessment.NewService(sqlxrepos.NewAssessmentRepository(store), schoolSvc, pointsSvc, store, logger)
	reminderSvc := reminder.NewService(schoolSvc, mailSvc, conf.Jobs.ReminderConcurrency, logger)

	var assistant *chat.Assistant
	if conf.LLM.APIKey != "" {
		llm := chat.NewOpenAIClient(conf.LLM)
		assistant = chat.NewAssistant(llm, conf.LLM, schoolSvc, contentSvc, pointsSvc, assessmentSvc, logger)
	} else {
		logger.Warn("LLM_API_KEY not set: chat assistant disabled")
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	// =========================================================================
	// Start Background Jobs

	runner := jobs.New(ctx, logger)
	if conf.Jobs.Enabled {
		jobs.Schedule(runner, conf.Jobs, reminderSvc, inviteSvc, logger)
	}
	defer runner.Wait()
	defer cancel() // stop the jobs before waiting on them

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.Deps{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		DB:          store,
		Users:       usrSvc,
		Sessions:    auth.NewManager(usrSvc, revocations, conf.JWTRefreshExpirationDelta, logger),
		Invites:     inviteSvc,
		School:      schoolSvc,
		Attendance:  attendance.NewService(sqlxrepos.NewAttendanceRepository(store), schoolSvc, pointsSvc, logger),
		Assessments: assessmentSvc,
		Content:     contentSvc,
		Feedback:    feedback.NewService(sqlxrepos.NewFeedbackRepository(store), schoolSvc),
		Points:      pointsSvc,
		Reminders:   reminderSvc,
		Assistant:   assistant,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		return errors.Wrap(err, "server error")

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(sctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				return errors.Wrap(err, "could not force stop server")
			}
		}
	}
	return nil
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlxrepos.Store, error) {
	if err := database.CreateIfNotExist(ctx, conf.Database); err != nil {
		return nil, err
	}

	db, err := database.Open(conf.Database)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlxrepos.NewStore(db, conf.Database.QueryTimeout), nil
}
