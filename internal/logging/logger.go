// Package logging provides categorized zap logging for agentfoundry.
// Each subsystem logs through a named child logger so log lines carry the
// category and the level can be raised or lowered at runtime (config hot
// reload adjusts the shared atomic level).
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup and shutdown
	CategoryConfig     Category = "config"     // Config load and hot reload
	CategoryStore      Category = "store"      // SQLite persistence
	CategoryCompiler   Category = "compiler"   // Prompt compilation
	CategoryFactory    Category = "factory"    // Factory memory versioning
	CategoryAssignment Category = "assignment" // Entitlement resolution
	CategoryAPI        Category = "api"        // HTTP surface
)

var (
	mu      sync.RWMutex
	base    *zap.Logger
	level   zap.AtomicLevel
	loggers = make(map[Category]*zap.Logger)
)

func init() {
	// Safe default so packages can log before Initialize runs (tests, CLI
	// one-shots). Initialize replaces this.
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base = zap.NewNop()
}

// Initialize builds the process-wide logger. jsonFormat selects production
// JSON encoding; otherwise the console encoder is used.
func Initialize(levelName string, jsonFormat bool) error {
	lvl, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", levelName, err)
	}

	cfg := zap.NewProductionConfig()
	if !jsonFormat {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	base = logger
	level = cfg.Level
	loggers = make(map[Category]*zap.Logger)
	return nil
}

// Get returns the logger for a category, creating it on first use.
func Get(cat Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	l := base.Named(string(cat))
	loggers[cat] = l
	return l
}

// SetLevel adjusts the shared level at runtime. Unknown names are ignored
// with an error return so hot reload never kills a running service.
func SetLevel(levelName string) error {
	lvl, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	mu.RLock()
	defer mu.RUnlock()
	level.SetLevel(lvl)
	return nil
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}
