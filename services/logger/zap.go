package logsvc

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/user"
)

// NewZap builds the process logger: JSON in PROD, console otherwise, with stack traces from error level.
func NewZap(level, env string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	var cfg zap.Config
	if strings.EqualFold(env, "prod") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build(zap.AddStacktrace(zap.ErrorLevel), zap.AddCallerSkip(2))
}

// ZapLogger only writes locally. It is used when no error tracker is configured.
type ZapLogger struct {
	z *zap.Logger
}

var _ core.Logger = (*ZapLogger)(nil)

func NewZapLogger(z *zap.Logger) *ZapLogger {
	return &ZapLogger{z: z}
}

// fields turns the logger args into zap fields.
// expected args: error, map[string]interface{}, user.Actor
func fields(args []interface{}) []zap.Field {
	flds := make([]zap.Field, 0, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case error:
			flds = append(flds, zap.Error(v))
		case map[string]interface{}:
			for k, val := range v {
				flds = append(flds, zap.Any(k, val))
			}
		case user.Actor:
			flds = append(flds, zap.String("actor_id", v.ID), zap.String("actor_role", v.Role.String()))
		default:
			flds = append(flds, zap.Any(fmt.Sprintf("arg%d", i), v))
		}
	}
	return flds
}

func (l *ZapLogger) print(lvl zapcore.Level, msg string, args []interface{}) {
	if ce := l.z.Check(lvl, msg); ce != nil {
		ce.Write(fields(args)...)
	}
}

func (l *ZapLogger) Debug(msg string, args ...interface{}) { l.print(zap.DebugLevel, msg, args) }
func (l *ZapLogger) Info(msg string, args ...interface{})  { l.print(zap.InfoLevel, msg, args) }
func (l *ZapLogger) Warn(msg string, args ...interface{})  { l.print(zap.WarnLevel, msg, args) }
func (l *ZapLogger) Error(msg string, args ...interface{}) { l.print(zap.ErrorLevel, msg, args) }
func (l *ZapLogger) Fatal(msg string, args ...interface{}) { l.print(zap.FatalLevel, msg, args) }

func (l *ZapLogger) Sync() { _ = l.z.Sync() }
