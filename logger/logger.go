package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/smart1986/go-sessionlink/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LinkLogger struct {
	Logger   *zap.SugaredLogger
	LogLevel zapcore.Level
}

var DefaultLogger *LinkLogger

func NewLogger(c *config.Config) {
	q := &LinkLogger{}
	q.NewLogger(c)
	DefaultLogger = q
}

func (q *LinkLogger) NewLogger(c *config.Config) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
	}

	zapLevel := zap.InfoLevel
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "info":
		zapLevel = zap.InfoLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	}
	q.LogLevel = zapLevel

	var fileCore zapcore.Core
	if c.Log.FileEnable {
		filename := c.Log.File
		if filename == "" {
			filename = "logs/app.log"
		}
		fileSync := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filename,
			MaxSize:    c.Log.MaxSize,
			MaxBackups: c.Log.MaxBack,
			MaxAge:     c.Log.MaxAge,
		})
		fileCore = zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			fileSync,
			zapLevel,
		)
	}

	var consoleCore zapcore.Core
	if c.Log.ConsoleEnable {
		consoleCore = zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			zapLevel,
		)
	}

	var core zapcore.Core
	if c.Log.ConsoleEnable && c.Log.FileEnable {
		core = zapcore.NewTee(fileCore, consoleCore)
	} else if c.Log.ConsoleEnable {
		core = consoleCore
	} else {
		core = fileCore
	}
	if core == nil {
		core = zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			zapLevel,
		)
	}

	zlog := zap.New(core, zap.AddCaller())
	defer func() {
		if err := zlog.Sync(); err != nil {
			fmt.Printf("zap logger sync error: %v", err)
		}
	}()

	q.Logger = zlog.Sugar()
}

func ensureDefault() *LinkLogger {
	if DefaultLogger == nil {
		c := &config.Config{}
		c.Log.Level = "debug"
		c.Log.ConsoleEnable = true
		NewLogger(c)
	}
	return DefaultLogger
}

func logIt(q *LinkLogger, level zapcore.Level, args ...interface{}) {
	q.Logger.Desugar().WithOptions(zap.AddCallerSkip(2)).Sugar().Log(level, args...)
}
func logItFormat(q *LinkLogger, template string, level zapcore.Level, args ...interface{}) {
	q.Logger.Desugar().WithOptions(zap.AddCallerSkip(2)).Sugar().Logf(level, template, args...)
}

func (q *LinkLogger) Debug(args ...interface{}) {
	logIt(q, zap.DebugLevel, args...)
}

func (q *LinkLogger) Info(args ...interface{}) {
	logIt(q, zap.InfoLevel, args...)
}

func (q *LinkLogger) Warn(args ...interface{}) {
	logIt(q, zap.WarnLevel, args...)
}

func (q *LinkLogger) Error(args ...interface{}) {
	logIt(q, zap.ErrorLevel, args...)
}

func (q *LinkLogger) ErrorWithStack(args ...interface{}) {
	args = append(args, zap.Stack("stack"))
	logIt(q, zap.ErrorLevel, args...)
}

func Debug(args ...interface{}) {
	logIt(ensureDefault(), zap.DebugLevel, args...)
}

func Info(args ...interface{}) {
	logIt(ensureDefault(), zap.InfoLevel, args...)
}

func Warn(args ...interface{}) {
	logIt(ensureDefault(), zap.WarnLevel, args...)
}

func Error(args ...interface{}) {
	logIt(ensureDefault(), zap.ErrorLevel, args...)
}

func ErrorWithStack(args ...interface{}) {
	args = append(args, zap.Stack("stack"))
	logIt(ensureDefault(), zap.ErrorLevel, args...)
}

func Debugf(template string, args ...interface{}) {
	logItFormat(ensureDefault(), template, zap.DebugLevel, args...)
}

func Infof(template string, args ...interface{}) {
	logItFormat(ensureDefault(), template, zap.InfoLevel, args...)
}

func Warnf(template string, args ...interface{}) {
	logItFormat(ensureDefault(), template, zap.WarnLevel, args...)
}

func Errorf(template string, args ...interface{}) {
	logItFormat(ensureDefault(), template, zap.ErrorLevel, args...)
}

func ErrorfWithStack(template string, args ...interface{}) {
	args = append(args, zap.Stack("stack"))
	logItFormat(ensureDefault(), template, zap.ErrorLevel, args...)
}
