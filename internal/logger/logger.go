package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the run logger. debug overrides verbosity with the debug level
// and switches to the console encoder so kernel diagnostics stay readable
// next to the result tables.
func New(verbosity string, debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if debug {
		verbosity = "debug"
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	level, err := zap.ParseAtomicLevel(verbosity)
	if err != nil {
		return nil, err
	}
	config.Level = level
	config.DisableStacktrace = true
	return config.Build()
}
