// Package logger wraps zap with the session/field conventions the rest of
// sanic-go uses for structured logging.
package logger

import "github.com/uber-go/zap"

// Logger is the zap.Logger interface plus session nesting.
//
//go:generate counterfeiter -o fakes/fake_logger.go . Logger
type Logger interface {
	With(...zap.Field) Logger
	Check(zap.Level, string) *zap.CheckedMessage
	Log(zap.Level, string, ...zap.Field)
	Debug(string, ...zap.Field)
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
	Fatal(string, ...zap.Field)
	Session(string) Logger
	SessionName() string
}

type logger struct {
	source     string
	origLogger zap.Logger
	context    []zap.Field
	zap.Logger
}

// New returns a new zap-backed Logger rooted at the given component name.
func New(component string, options ...zap.Option) Logger {
	enc := zap.NewJSONEncoder(
		zap.LevelString("log_level"),
		zap.MessageKey("message"),
		zap.EpochFormatter("timestamp"),
	)
	origLogger := zap.New(enc, options...)

	return &logger{
		source:     component,
		origLogger: origLogger,
		Logger:     origLogger.With(zap.String("source", component)),
	}
}

func (l *logger) Session(component string) Logger {
	newSource := l.source + "." + component
	return &logger{
		source:     newSource,
		origLogger: l.origLogger,
		Logger:     l.origLogger.With(zap.String("source", newSource)),
		context:    l.context,
	}
}

func (l *logger) SessionName() string {
	return l.source
}

func (l *logger) wrapDataFields(fields ...zap.Field) zap.Field {
	finalFields := append(append([]zap.Field{}, l.context...), fields...)
	return zap.Nest("data", finalFields...)
}

func (l *logger) With(fields ...zap.Field) Logger {
	return &logger{
		source:     l.source,
		origLogger: l.origLogger,
		Logger:     l.Logger,
		context:    append(l.context, fields...),
	}
}

func (l *logger) Log(level zap.Level, msg string, fields ...zap.Field) {
	l.Logger.Log(level, msg, l.wrapDataFields(fields...))
}

func (l *logger) Debug(msg string, fields ...zap.Field) { l.Log(zap.DebugLevel, msg, fields...) }
func (l *logger) Info(msg string, fields ...zap.Field)  { l.Log(zap.InfoLevel, msg, fields...) }
func (l *logger) Warn(msg string, fields ...zap.Field)  { l.Log(zap.WarnLevel, msg, fields...) }
func (l *logger) Error(msg string, fields ...zap.Field) { l.Log(zap.ErrorLevel, msg, fields...) }
func (l *logger) Fatal(msg string, fields ...zap.Field) {
	l.Logger.Fatal(msg, l.wrapDataFields(fields...))
}

// ErrAttr is a convenience field constructor for an error; it returns
// zap.Error(err).
func ErrAttr(err error) zap.Field {
	return zap.Error(err)
}
