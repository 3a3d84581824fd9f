// Package logging provides the category-scoped structured logger shared by
// every component of the pipeline, built on go.uber.org/zap.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category tags a logger to one pipeline component so log lines can be
// filtered by subsystem without parsing messages.
type Category string

const (
	Orchestrator Category = "orchestrator"
	Snapshot     Category = "snapshot"
	Container    Category = "container"
	Git          Category = "git"
	Parser       Category = "parser"
	CallGraph    Category = "callgraph"
	Strategy     Category = "strategy"
	Mutator      Category = "mutator"
	Model        Category = "model"
)

var (
	root     *zap.Logger
	rootOnce sync.Once
)

// Root returns the process-wide base logger, built once. Production mode
// (the default) emits JSON at info level; SWESYNTH_DEBUG=1 switches to the
// development encoder at debug level.
func Root() *zap.Logger {
	rootOnce.Do(func() { root = build() })
	if root == nil {
		root = build()
	}
	return root
}

func build() *zap.Logger {
	var cfg zap.Config
	if os.Getenv("SWESYNTH_DEBUG") == "1" {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	return l
}

// For returns a logger scoped to the given category via a "component" field.
func For(cat Category) *zap.Logger {
	return Root().With(zap.String("component", string(cat)))
}

// Sync flushes any buffered log entries; call once at process exit.
func Sync() {
	if root != nil {
		_ = root.Sync()
	}
}

// SetForTest installs a logger for use in tests (e.g. zaptest.NewLogger) and
// returns a restore function.
func SetForTest(l *zap.Logger) func() {
	rootOnce.Do(func() {})
	prev := root
	root = l
	return func() {
		root = prev
	}
}
