// Package logging builds the zap.Logger used throughout the client from a
// small declarative Config, the way pkg/logger/logger.go builds the
// gateway's global logger — but as an instance instead of a package
// global, since a library must not dictate process-wide logging state.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the logger built by New. The zero value is valid and
// yields an info-level JSON logger on stdout.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Encoding is "json" or "console". Defaults to json.
	Encoding string
	// ShowCaller adds the calling file:line to every entry.
	ShowCaller bool
	// OutputPath is "stdout", "stderr", or a file path rotated with
	// lumberjack. Defaults to stdout.
	OutputPath string
	// MaxSizeMB caps a rotated log file's size before a new one starts.
	MaxSizeMB int
	// MaxBackups caps how many rotated files are retained.
	MaxBackups int
	// MaxAgeDays caps how long a rotated file is retained.
	MaxAgeDays int
	// Compress gzips rotated files once they age out.
	Compress bool
}

func (c Config) withDefaults() Config {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Encoding == "" {
		c.Encoding = "json"
	}
	if c.OutputPath == "" {
		c.OutputPath = "stdout"
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 100
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 10
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 30
	}
	return c
}

// New builds a zap.Logger from cfg. It never returns an error: an
// unparsable level falls back to info, matching the teacher's
// tolerant-defaults behavior, since a logging misconfiguration should
// never itself prevent a client from starting.
func New(cfg Config) *zap.Logger {
	cfg = cfg.withDefaults()

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	writer := writeSyncer(cfg)
	core := zapcore.NewCore(encoder, writer, level)

	options := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.ShowCaller {
		options = append(options, zap.AddCaller())
	}

	return zap.New(core, options...)
}

// Nop returns a logger that discards everything, for callers that did
// not configure one (e.g. in tests).
func Nop() *zap.Logger {
	return zap.NewNop()
}

func writeSyncer(cfg Config) zapcore.WriteSyncer {
	switch cfg.OutputPath {
	case "stdout", "":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	}

	if dir := filepath.Dir(cfg.OutputPath); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.OutputPath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  true,
	})
}
