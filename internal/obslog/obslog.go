// Package obslog builds the zap loggers shared by cmd/opsd and cmd/obsctl.
package obslog

import "go.uber.org/zap"

// New builds a production or development zap logger depending on level.
// "debug" gets the human-readable development encoder; anything else gets
// the JSON production encoder.
func New(level string) (*zap.Logger, error) {
	switch level {
	case "debug":
		return zap.NewDevelopment()
	default:
		cfg := zap.NewProductionConfig()
		switch level {
		case "warn":
			cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		case "error":
			cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
		}
		return cfg.Build()
	}
}
