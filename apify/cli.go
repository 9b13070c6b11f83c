// Package apify rebuilds and publishes actors on the Apify platform
package apify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"

	"github.com/sammcj/actorglue/config"
)

// Runner runs the platform CLI and returns its combined output
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// CLIRunner runs the apify command-line tool as a subprocess
type CLIRunner struct {
	argv   []string
	env    []string
	logger *slog.Logger
}

// NewCLIRunner prepares the CLI named by cli, which may include arguments
// ("npx apify-cli"). The token is passed through the environment.
func NewCLIRunner(cli, token string, logger *slog.Logger) (*CLIRunner, error) {
	argv, err := shlex.Split(cli)
	if err != nil {
		return nil, fmt.Errorf("parse apify cli %q: %w", cli, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("apify cli command is empty")
	}

	var env []string
	if token != "" {
		env = append(env, config.EnvApifyToken+"="+token)
	}
	return &CLIRunner{argv: argv, env: env, logger: logger}, nil
}

// Run executes the CLI in dir. A non-zero exit is an error; the output is
// returned either way since it carries both logs and error detail.
func (r *CLIRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	full := append(append([]string(nil), r.argv[1:]...), args...)
	cmd := exec.CommandContext(ctx, r.argv[0], full...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), r.env...)

	r.logger.Debug("running apify cli", "dir", dir, "args", strings.Join(full, " "))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w", r.argv[0], strings.Join(full, " "), err)
	}
	return string(out), nil
}
