// Package logging constructs the process-wide zap logger. Everything else
// receives a *zap.Logger explicitly; there is no package-level logger state.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production logger. With debug enabled the level drops to
// Debug so per-attempt parse diagnostics become visible.
func New(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Development = true
	}
	return cfg.Build()
}
