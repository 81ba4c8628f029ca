// Package logger provides structured logging using Zap.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

var level = zap.NewAtomicLevel()

// Init builds the process logger. Production writes JSON at info level,
// anything else writes coloured console lines at debug level. The level can
// be changed afterwards with SetLevel.
func Init(env string) {
	once.Do(func() {
		var cfg zap.Config
		if env == "production" {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "ts"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		} else {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		level.SetLevel(cfg.Level.Level())
		cfg.Level = level

		base, err := cfg.Build()
		if err != nil {
			base = zap.NewNop()
		}
		sugar = base.Sugar().With("service", "orgfolio")
	})
}

// SetLevel changes the minimum level of every logger handed out so far.
// An empty name leaves the level untouched.
func SetLevel(name string) error {
	if name == "" {
		return nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	level.SetLevel(l)
	return nil
}

// Level reports the current minimum level.
func Level() zapcore.Level {
	return level.Level()
}

// Get returns the global sugared logger, initializing a development logger
// when Init was never called.
func Get() *zap.SugaredLogger {
	if sugar == nil {
		Init("development")
	}
	return sugar
}

// Named returns a child of the global logger tagged with a component name.
func Named(component string) *zap.SugaredLogger {
	return Get().Named(component)
}

// Sync flushes any buffered log entries.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
