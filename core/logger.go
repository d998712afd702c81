package core

// Logger logs messages and reports them to the configured error tracker.
// Expected args: error, map[string]interface{} (extras) or the acting user.Actor.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
