package logsvc

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/user"
)

const sentryFlushTimeout = 2 * time.Second

// SentryLogger sends warnings and errors to Sentry and writes everything locally through zap.
type SentryLogger struct {
	local *ZapLogger
}

var _ core.Logger = (*SentryLogger)(nil)

// NewSentryLogger initializes the Sentry client. A blank DSN leaves it disabled.
func NewSentryLogger(local *ZapLogger, conf *core.Config) (*SentryLogger, error) {
	if conf.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         conf.SentryDSN,
			Environment: conf.Env,
			Release:     conf.Build,
			ServerName:  conf.Server.Host,
		})
		if err != nil {
			return nil, errors.Wrap(err, "initializing sentry")
		}
	}
	return &SentryLogger{local: local}, nil
}

func (l *SentryLogger) capture(level sentry.Level, msg string, args []interface{}) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		var captured error
		for _, arg := range args {
			switch v := arg.(type) {
			case error:
				if captured == nil {
					captured = v
				}
			case map[string]interface{}:
				for k, val := range v {
					scope.SetExtra(k, val)
				}
			case user.Actor:
				scope.SetUser(sentry.User{ID: v.ID, Email: v.Email, Username: v.Name})
			}
		}
		if captured != nil {
			scope.SetExtra("message", msg)
			sentry.CaptureException(captured)
			return
		}
		sentry.CaptureMessage(msg)
	})
}

func (l *SentryLogger) Debug(msg string, args ...interface{}) { l.local.Debug(msg, args...) }
func (l *SentryLogger) Info(msg string, args ...interface{})  { l.local.Info(msg, args...) }

func (l *SentryLogger) Warn(msg string, args ...interface{}) {
	l.capture(sentry.LevelWarning, msg, args)
	l.local.Warn(msg, args...)
}

func (l *SentryLogger) Error(msg string, args ...interface{}) {
	l.capture(sentry.LevelError, msg, args)
	l.local.Error(msg, args...)
}

func (l *SentryLogger) Fatal(msg string, args ...interface{}) {
	l.capture(sentry.LevelFatal, msg, args)
	sentry.Flush(sentryFlushTimeout)
	l.local.Fatal(msg, args...)
}

func (l *SentryLogger) Close() { sentry.Flush(sentryFlushTimeout) }
