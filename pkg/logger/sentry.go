package logger

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig holds Sentry integration configuration.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
	// MinLevel selects which records are kept as Sentry logs: warn keeps
	// warnings and errors, error keeps errors only.
	MinLevel string `yaml:"min_level"`
}

// NewWithSentry creates a logger that writes through the handler built from
// cfg and also sends records to Sentry: errors as events, and records at or
// above MinLevel as Sentry logs. If DSN is empty or Sentry fails to
// initialize, only the base handler is used. Context extractors apply to both
// destinations.
func NewWithSentry(cfg Config, scfg SentryConfig, extractors ...ContextExtractor) *slog.Logger {
	base := NewHandler(Writer(cfg), cfg)

	if scfg.DSN == "" {
		return slog.New(NewContextHandler(base, extractors...))
	}

	env := scfg.Environment
	if env == "" {
		env = "production"
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         scfg.DSN,
		Environment: env,
		EnableLogs:  true,
	}); err != nil {
		slog.New(base).Error("failed to initialize Sentry", slog.String("error", err.Error()))
		return slog.New(NewContextHandler(base, extractors...))
	}

	eventLevel := []slog.Level{slog.LevelError}
	logLevel := []slog.Level{slog.LevelWarn, slog.LevelError}
	if ParseLevel(scfg.MinLevel) == slog.LevelError {
		logLevel = []slog.Level{slog.LevelError}
	}

	sentryHandler := sentryslog.Option{
		EventLevel: eventLevel,
		LogLevel:   logLevel,
	}.NewSentryHandler(context.Background())

	return slog.New(NewContextHandler(fanout{base, sentryHandler}, extractors...))
}
