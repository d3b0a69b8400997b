// Package logging builds the zap loggers used by the command line tools.
package logging

import (
	"fmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewConfig returns the console logger config, colored capital levels, ISO8601
// timestamps and no stacktraces.  Logs go to stderr, stdout is left for
// structured output
func NewConfig(level zapcore.Level) zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// ParseLevel converts a level name such as "debug" or "warn" into a level.
// An empty name is Info
func ParseLevel(name string) (zapcore.Level, error) {

	if name == "" {
		return zapcore.InfoLevel, nil
	}

	var lvl zapcore.Level

	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", name, err)
	}

	return lvl, nil
}

// New returns a named console logger writing at the given level and above
func New(name, level string) (*zap.Logger, error) {

	lvl, err := ParseLevel(level)

	if err != nil {
		return nil, err
	}

	logger, err := NewConfig(lvl).Build()

	if err != nil {
		return nil, fmt.Errorf("error building logger: %w", err)
	}

	return logger.Named(name), nil
}

// NewObserved returns a logger recording every entry at the given level and
// above, together with the observer to inspect them
func NewObserved(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}
