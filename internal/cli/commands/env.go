// Package commands implements the sas7bdat subcommands.
package commands

import (
	"context"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defineEditor/sas7bdat"
	"github.com/defineEditor/sas7bdat/internal/cli/config"
	"github.com/defineEditor/sas7bdat/internal/sasfile"
)

// Env carries what every command needs, built once per invocation.
type Env struct {
	Config    *config.Config
	Logger    log.Logger
	Registry  *prometheus.Registry
	Extractor *sas7bdat.Extractor
}

type envKey struct{}

// NewEnv builds the extractor for cfg.  Log lines go to w in logfmt.
func NewEnv(cfg *config.Config, w io.Writer) *Env {
	logger := NewLogger(w, cfg.LogLevel)
	reg := prometheus.NewRegistry()
	opener := sasfile.NewOpener(
		sasfile.WithLogger(logger),
		sasfile.WithEncoding(cfg.Encoding),
	)
	return &Env{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Extractor: sas7bdat.New(
			sas7bdat.WithOpener(opener),
			sas7bdat.WithLogger(logger),
			sas7bdat.WithMetrics(sas7bdat.NewMetrics(reg)),
		),
	}
}

// NewLogger returns a logfmt logger on w that keeps lines at or above
// the named level.
func NewLogger(w io.Writer, name string) log.Logger {
	var allow level.Option
	switch name {
	case "debug":
		allow = level.AllowDebug()
	case "info":
		allow = level.AllowInfo()
	case "error":
		allow = level.AllowError()
	case "none":
		allow = level.AllowNone()
	default:
		allow = level.AllowWarn()
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	return level.NewFilter(logger, allow)
}

// WithEnv stores env in ctx.
func WithEnv(ctx context.Context, env *Env) context.Context {
	return context.WithValue(ctx, envKey{}, env)
}

// GetEnv returns the Env stored in ctx, or one built from the defaults.
func GetEnv(ctx context.Context) *Env {
	if ctx != nil {
		if env, ok := ctx.Value(envKey{}).(*Env); ok {
			return env
		}
	}
	return NewEnv(&config.Config{
		Output:       config.DefaultOutput,
		LogLevel:     config.DefaultLogLevel,
		BufferLength: config.DefaultBufferLength,
	}, os.Stderr)
}
