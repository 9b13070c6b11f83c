// Package interactive runs the line-oriented chat session
package interactive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sammcj/actorglue/config"
)

// Agent answers one user query
type Agent interface {
	Run(ctx context.Context, query string) string
}

type Interactive struct {
	logger  *slog.Logger
	scanner *bufio.Reader
	out     io.Writer
	cfg     *config.Config
	agent   Agent
}

func New(cfg *config.Config, agent Agent, in io.Reader, out io.Writer, logger *slog.Logger) *Interactive {
	return &Interactive{
		scanner: bufio.NewReader(in),
		out:     out,
		logger:  logger,
		cfg:     cfg,
		agent:   agent,
	}
}

// Start reads queries until quit, exit, end of input or ctx is cancelled
func (i *Interactive) Start(ctx context.Context) error {
	fmt.Fprintln(i.out, "MCP Client Started! Type 'quit' to exit.")
	fmt.Fprintln(i.out, "Connected to model:", i.cfg.LLM.Model)
	if i.cfg.LLM.Endpoint != "" {
		fmt.Fprintf(i.out, "Using endpoint: %s\n", i.cfg.LLM.Endpoint)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(i.out, "\nQuery: ")
		input, err := i.scanner.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && input != "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(i.out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "quit", "exit":
			return nil
		}

		i.logger.Debug("sending query to bridge", "query", input)
		response := i.agent.Run(ctx, input)
		fmt.Fprintf(i.out, "\nFinal Response:\n%s\n", response)
	}
}
