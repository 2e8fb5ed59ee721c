// Package logger sets up the zap based logging shared by every fsstrata binary. The returned
// Logger can have its level changed while a simulation runs by registering it as a
// configmgr.Listener.
package logger

import (
	"fmt"
	"log/syslog"
	"os"
	"path"
	"path/filepath"
	"reflect"

	"github.com/thinkparq/fsstrata/common/configmgr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zap.Logger and keeps a handle on the atomic level so it can be adjusted after
// startup.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

var _ configmgr.Listener = &Logger{}

// Config represents the configuration for a Logger.
type Config struct {
	Type supportedLogTypes `mapstructure:"type"`
	// File is only used with LogFile and is rotated by lumberjack.
	File string `mapstructure:"file"`
	// Level is 1 (warn), 3 (info) or 5 (debug).
	Level int8 `mapstructure:"level"`
	// MaxSize in megabytes before File is rotated.
	MaxSize         int `mapstructure:"max-size"`
	NumRotatedFiles int `mapstructure:"num-rotated-files"`
	// Developer switches to zap's development encoder with stack traces and debug level.
	Developer bool `mapstructure:"developer"`
}

type supportedLogTypes string

const (
	StdOut supportedLogTypes = "stdout"
	// StdErr keeps log output apart from the progress line and summary printed on stdout.
	StdErr  supportedLogTypes = "stderr"
	LogFile supportedLogTypes = "logfile"
	// Syslog is the slowest option because every entry is re-parsed into a syslog severity.
	Syslog supportedLogTypes = "syslog"
)

// SupportedLogTypes is used for help text and validation.
var SupportedLogTypes = []supportedLogTypes{
	StdOut,
	StdErr,
	LogFile,
	Syslog,
}

// New returns a logger based on the provided configuration. Every destination gets tab separated
// console entries with ISO 8601 timestamps. Developer mode ignores Type and Level and logs at debug
// to stderr. An invalid level or log type is an error.
func New(newConfig Config) (*Logger, error) {

	logMgr := Logger{}

	// Developer mode always logs at debug with stack traces on warn and above.
	if newConfig.Developer {
		logMgr.level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = logMgr.level
		l, err := cfg.Build()
		if err != nil {
			return nil, err
		}
		logMgr.Logger = l
		return &logMgr, nil
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// IMPORTANT: SyslogWriteSyncer.Write() relies on the tab separated console format.
	zapEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	zapLevel, err := getLevel(newConfig.Level)
	if err != nil {
		return nil, err
	}
	logMgr.level = zap.NewAtomicLevelAt(zapLevel)

	var logDestination zapcore.WriteSyncer
	switch newConfig.Type {
	case StdOut:
		logDestination = zapcore.AddSync(os.Stdout)
	case StdErr:
		logDestination = zapcore.AddSync(os.Stderr)
	case LogFile:
		if err := ensureLogsAreWritable(newConfig.File); err != nil {
			return nil, err
		}
		logDestination = zapcore.AddSync(&lumberjack.Logger{
			Filename:   newConfig.File,
			MaxSize:    newConfig.MaxSize,
			MaxBackups: newConfig.NumRotatedFiles,
		})
	case Syslog:
		l, err := NewSyslogWriteSyncer(syslog.LOG_INFO|syslog.LOG_LOCAL0, filepath.Base(os.Args[0]))
		if err != nil {
			return nil, fmt.Errorf("unable to initialize syslog destination: %w", err)
		}
		logDestination = l
	default:
		return nil, fmt.Errorf("unsupported log type: %s (must be one of %v)", newConfig.Type, SupportedLogTypes)
	}

	logMgr.Logger = zap.New(zapcore.NewCore(zapEncoder, logDestination, logMgr.level))
	return &logMgr, nil
}

// NewNop returns a Logger that discards everything. Handy for tests and for library users that
// do not care about fsstrata's output.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// Configurer is implemented by any application configuration that embeds a logger Config.
type Configurer interface {
	GetLoggingConfig() Config
}

// UpdateConfiguration implements configmgr.Listener. Only the log level can change at runtime,
// switching destinations requires a restart.
func (lm *Logger) UpdateConfiguration(newConfig any) error {

	configurer, ok := newConfig.(Configurer)
	if !ok {
		return fmt.Errorf("unable to get log configuration from the application configuration (most likely this indicates a bug and a report should be filed)")
	}

	newLogConfig := configurer.GetLoggingConfig()
	log := lm.Logger.With(zap.String("component", path.Base(reflect.TypeOf(Logger{}).PkgPath())))

	newLevel, err := getLevel(newLogConfig.Level)
	if err != nil {
		return err
	}
	if newLogConfig.Developer {
		newLevel = zapcore.DebugLevel
	}

	if lm.level.Level() != newLevel {
		lm.level.SetLevel(newLevel)
		log.Log(lm.level.Level(), "set log level", zap.Any("logLevel", lm.level.Level()))
	} else {
		log.Debug("no change to log level")
	}

	return nil
}

// getLevel maps the numeric levels used in simulation configuration to zap levels.
func getLevel(newLevel int8) (zapcore.Level, error) {
	switch newLevel {
	case 1:
		return zapcore.WarnLevel, nil
	case 3:
		return zapcore.InfoLevel, nil
	case 5:
		return zapcore.DebugLevel, nil
	default:
		// Never hand out zapcore.InvalidLevel, a caller ignoring the error could panic.
		return zapcore.InfoLevel, fmt.Errorf("the provided log.level (%d) is invalid (must be 1, 3, or 5)", newLevel)
	}
}
