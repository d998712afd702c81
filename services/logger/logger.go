package logsvc

import (
	"go.uber.org/zap"

	"github.com/trezcool/escola/core"
)

// New returns the logger for conf.ErrorTracker and a func flushing it, to be deferred by main.
func New(conf *core.Config) (core.Logger, func(), error) {
	z, err := NewZap(conf.LogLevel, conf.Env)
	if err != nil {
		return nil, nil, err
	}
	local := NewZapLogger(z)

	switch conf.ErrorTracker {
	case "rollbar":
		l := NewRollbarLogger(local, conf)
		return l, func() { l.Close(); local.Sync() }, nil
	case "sentry":
		l, err := NewSentryLogger(local, conf)
		if err != nil {
			return nil, nil, err
		}
		return l, func() { l.Close(); local.Sync() }, nil
	}
	return local, local.Sync, nil
}

// NewNop returns a logger discarding everything, for tests.
func NewNop() *ZapLogger {
	return NewZapLogger(zap.NewNop())
}
