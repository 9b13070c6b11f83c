// Package app holds the startup steps shared by the command line programs
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/logging"
	"github.com/sammcj/actorglue/tracing"
)

// Version is reported to MCP peers
const Version = "1.0.0"

const errorRule = "============================================================"

// Options are the flags every command accepts
type Options struct {
	ConfigPath string
	Model      string
	DotEnv     string
}

// LoadConfig builds the configuration: defaults, YAML file, .env and
// environment, then flags. An empty ConfigPath uses (and creates) the
// default file under the home directory.
func LoadConfig(opts Options, getenv func(string) string) (*config.Config, error) {
	if err := config.LoadDotEnv(config.FirstNonEmpty(opts.DotEnv, ".env")); err != nil {
		return nil, err
	}

	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
	} else {
		cfg, _, err = config.LoadOrCreate()
	}
	if err != nil {
		return nil, err
	}

	config.ApplyEnv(cfg, getenv)
	cfg.LLM.Model = config.FirstNonEmpty(opts.Model, cfg.LLM.Model)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Runtime owns the process-wide logger and tracer
type Runtime struct {
	Config *config.Config
	Logger *slog.Logger

	closers []func() error
}

// Start sets up logging and tracing from cfg
func Start(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	shutdown, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	rt := &Runtime{Config: cfg, Logger: logger}
	rt.closers = append(rt.closers, closeLog, func() error { return shutdown(context.Background()) })
	return rt, nil
}

// Close flushes traces and closes log files
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PrintError writes err in the block format the processors use for fatal errors
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, "\n=== ERROR ===")
	fmt.Fprintln(w, err.Error())
	fmt.Fprint(w, errorRule+"\n\n")
}

// StringList is a flag.Value collecting repeated or comma separated values
type StringList []string

func (l *StringList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *StringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}
