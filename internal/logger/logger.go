// Package logger configures the process-wide slog logger. Production runs
// JSON output, development runs text; when telemetry is enabled both fan out
// to the OpenTelemetry log bridge through a multi-handler.
package logger

import (
	"log/slog"
	"os"

	"cliniq/internal/config"
	"cliniq/internal/monitoring"
)

type Logger struct {
	*slog.Logger
}

func New(cfg *config.Config) *Logger {
	var consoleHandler slog.Handler
	if cfg.Server.Environment == config.EnvironmentProduction {
		consoleHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		consoleHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	handler := consoleHandler
	if cfg.Telemetry.Enabled {
		otelHandler := monitoring.NewOTelHandler(&slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
		handler = NewMultiHandler(otelHandler, consoleHandler)
	}

	logger := slog.New(handler).With(
		"service", cfg.Telemetry.ServiceName,
		"version", cfg.Telemetry.ServiceVersion,
		"environment", cfg.Telemetry.Environment,
	)

	slog.SetDefault(logger)

	return &Logger{Logger: logger}
}
