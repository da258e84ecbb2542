// Package logging builds the process-wide zap logger.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvProduction selects the JSON encoder.
const EnvProduction = "production"

// New builds a logger writing to stdout. Production environments get JSON
// lines, everything else a console encoder. Unknown levels fall back to info.
func New(level, environment string) *zap.Logger {
	return NewWithWriter(level, environment, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(level, environment string, w io.Writer) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(environment, EnvProduction) {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), ParseLevel(level))
	return zap.New(core, zap.AddCaller())
}

// ParseLevel maps debug, info, warn and error onto zap levels.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
