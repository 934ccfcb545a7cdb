package utils

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// LoggerConfig configures the application logger.
type LoggerConfig struct {
	// Format is "json" or "text".
	Format string
	// Output defaults to os.Stdout.
	Output io.Writer
	// EnableColors colors text output.
	EnableColors bool
	Level        slog.Level
}

// InitLogger builds the application logger: tint for text, slog's JSON
// handler for json. The result is also installed as the slog default.
func InitLogger(config ...LoggerConfig) *slog.Logger {
	var cfg LoggerConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(cfg.Output, &slog.HandlerOptions{Level: cfg.Level})
	} else {
		handler = tint.NewHandler(cfg.Output, &tint.Options{
			Level:      cfg.Level,
			TimeFormat: time.DateTime,
			NoColor:    !cfg.EnableColors,
		})
	}

	logger := slog.New(handler).With("app", "academy")
	slog.SetDefault(logger)
	return logger
}
