package log

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the global logger.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string
	// File, when set, receives a JSON copy of every record.
	File string
	// Development switches the console encoder to zap's development settings.
	Development bool
	// NoConsole drops the stderr sink, e.g. while a full-screen UI runs.
	NoConsole bool
}

var (
	mu     sync.RWMutex
	logger logr.Logger
	zlog   *zap.Logger
	// logFile is the JSON sink opened by the last Init, closed by the next one.
	logFile *os.File
)

func init() {
	zapLog, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	zlog = zapLog
	logger = zapr.NewLogger(zapLog)
}

// Init replaces the global logger according to opts.
func Init(opts Options) error {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	encCfg := zap.NewProductionEncoderConfig()
	if opts.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var cores []zapcore.Core
	if !opts.NoConsole {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level))
	}
	var f *os.File
	if opts.File != "" {
		f, err = os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(f), level))
	}
	zapLog := zap.New(zapcore.NewTee(cores...), zap.AddCaller())

	mu.Lock()
	prevLog, prevFile := zlog, logFile
	zlog = zapLog
	logger = zapr.NewLogger(zapLog)
	logFile = f
	mu.Unlock()

	if prevFile != nil {
		_ = prevLog.Sync()
		_ = prevFile.Close()
	}
	return nil
}

// Logger returns the global logger
func Logger() logr.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger sets the global logger
func SetLogger(l logr.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// Sync flushes buffered records of the zap backend.
func Sync() {
	mu.RLock()
	z := zlog
	mu.RUnlock()
	_ = z.Sync()
}

// Info logs a non-error message with the given key/value pairs as context
func Info(msg string, keysAndValues ...interface{}) {
	Logger().Info(msg, keysAndValues...)
}

// Debug logs a debug message with the given key/value pairs as context
func Debug(msg string, keysAndValues ...interface{}) {
	Logger().V(1).Info(msg, keysAndValues...)
}

// Error logs an error message with the given key/value pairs as context
func Error(err error, msg string, keysAndValues ...interface{}) {
	Logger().Error(err, msg, keysAndValues...)
}

// WithName adds a new element to the logger's name
func WithName(name string) logr.Logger {
	return Logger().WithName(name)
}

// WithValues adds some key-value pairs of context to a logger
func WithValues(keysAndValues ...interface{}) logr.Logger {
	return Logger().WithValues(keysAndValues...)
}
