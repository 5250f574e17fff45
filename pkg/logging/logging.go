// Package logging builds the single *zap.SugaredLogger every
// long-running component logs through.
package logging

import (
	"go.uber.org/zap"
)

// NewLogger returns a production-configured, sugared zap logger: JSON
// output, epoch-seconds timestamps under "ts", level included. Callers that want a
// quieter console format for local runs should build their own
// zap.Config instead; this is the one every long-running component
// (Worker, Client, Logger, metrics server) uses by default.
func NewLogger() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	l, err := cfg.Build()
	if err != nil {
		// zap.NewProductionConfig().Build() only fails on a broken sink
		// or encoder registration, neither of which applies to the
		// default config; fall back to a no-op logger rather than
		// letting a logging failure take the whole run down with it.
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}
