package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap so components can be handed a named child without
// importing the build configuration.
type Logger struct {
	*zap.Logger
	config *LoggerConfig
}

// New builds a logger from cfg. A nil cfg falls back to DefaultConfig.
func New(cfg *LoggerConfig) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var zapConfig zap.Config
	if strings.ToLower(cfg.Level) == "debug" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(cfg.ToZapLevel())

	output := cfg.OutputFile
	if output == "" {
		output = "stdout"
	}
	if output != "stdout" && output != "stderr" {
		logDir := filepath.Dir(output)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to create log directory '%s', defaulting to stdout. Error: %v\n", logDir, err)
			zapConfig.OutputPaths = []string{"stdout"}
			zapConfig.ErrorOutputPaths = []string{"stderr"}
		} else {
			zapConfig.OutputPaths = []string{output, "stdout"}
			zapConfig.ErrorOutputPaths = []string{output, "stderr"}
		}
	} else {
		zapConfig.OutputPaths = []string{output}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "text":
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		zapConfig.Encoding = "json"
	}

	logger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing custom Zap logger: %v. Falling back to basic logger.\n", err)
		logger, _ = zap.NewProduction()
	}

	l := &Logger{Logger: logger, config: cfg}
	l.Info("Logger initialized",
		zap.String("level", cfg.Level),
		zap.String("format", zapConfig.Encoding),
		zap.Strings("output_paths", zapConfig.OutputPaths))
	return l
}

// NewNop is used by tests and by components constructed without a logger.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), config: &LoggerConfig{Level: "info"}}
}

// Named adds a new path segment to the logger's name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name), config: l.config}
}

// With adds structured context to the logger.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...), config: l.config}
}

// Zap exposes the underlying logger for libraries that want *zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.Logger
}
