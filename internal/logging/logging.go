// Package logging constructs the structured loggers shared by the
// daemon and the edge proxy.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style zap logger. When debug is true the
// encoder switches to a human-readable console format and the level
// floor drops to Debug, mirroring the verbosity toggle the teacher
// exposes through its TUN engine LogLevel field.
func New(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		// Build only fails on a malformed config; fall back to a no-op
		// sink rather than taking the process down over logging.
		return zap.NewNop()
	}
	return logger
}

// Component returns a child logger tagged with a component name, used
// so daemon subsystems (forward, peers, ovsctl, ...) are distinguishable
// in aggregated log output.
func Component(base *zap.Logger, name string) *zap.SugaredLogger {
	return base.Named(name).Sugar()
}
