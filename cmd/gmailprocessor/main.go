// Command gmailprocessor searches Gmail, extracts attachment text into the
// dataset, or creates a draft with --mode draft.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sammcj/actorglue/app"
	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/dataset"
	"github.com/sammcj/actorglue/gmail"
	"github.com/sammcj/actorglue/llm"
	"github.com/sammcj/actorglue/translate"
	"github.com/sammcj/actorglue/types"
)

const (
	modeSearch = "search"
	modeDraft  = "draft"
)

type flags struct {
	app.Options
	query      string
	natural    bool
	mimeTypes  app.StringList
	mode       string
	to         string
	subject    string
	body       string
	maxResults int
	input      string
}

func parseFlags(args []string) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("gmailprocessor", flag.ContinueOnError)
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config.yaml")
	fs.StringVar(&f.Model, "model", "", "Model id used by --nl")
	fs.StringVar(&f.query, "query", "", `Gmail search query (e.g. "subject:invoice after:2024/01/01")`)
	fs.StringVar(&f.query, "q", "", "Shorthand for --query")
	fs.BoolVar(&f.natural, "nl", false, "Treat --query as natural language and translate it to Gmail syntax")
	fs.Var(&f.mimeTypes, "mime-types", "Target attachment MIME types (default application/pdf)")
	fs.Var(&f.mimeTypes, "m", "Shorthand for --mime-types")
	fs.StringVar(&f.mode, "mode", modeSearch, "search or draft")
	fs.StringVar(&f.to, "to", "", "Draft recipient")
	fs.StringVar(&f.subject, "subject", "", "Draft subject")
	fs.StringVar(&f.body, "body", "", "Draft body")
	fs.IntVar(&f.maxResults, "max-results", 0, "Maximum emails to process (default from config)")
	fs.StringVar(&f.input, "input", "", "JSON input payload")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.mode != modeSearch && f.mode != modeDraft {
		return nil, &types.ConfigError{Field: "mode", Message: fmt.Sprintf("must be %s or %s, got %q", modeSearch, modeDraft, f.mode)}
	}
	return f, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	f, err := parseFlags(args)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		app.PrintError(out, err)
		return 1
	}

	cfg, err := app.LoadConfig(f.Options, os.Getenv)
	if err != nil {
		app.PrintError(out, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, cfg)
	if err != nil {
		app.PrintError(out, err)
		return 1
	}
	defer rt.Close()

	if err := process(ctx, f, cfg, rt.Logger, out); err != nil {
		rt.Logger.Error("gmail processor failed", "error", err)
		app.PrintError(out, err)
		return 1
	}
	return 0
}

func process(ctx context.Context, f *flags, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	input, err := config.LoadInput(f.input)
	if err != nil {
		return err
	}
	src, local, err := app.GmailSources(cfg, os.Getenv(config.EnvGmailCredentials), input)
	if err != nil {
		return err
	}

	if f.mode == modeDraft {
		draft := gmail.Draft{
			To:      config.FirstNonEmpty(f.to, input.String("to")),
			Subject: config.FirstNonEmpty(f.subject, input.String("subject")),
			Body:    config.FirstNonEmpty(f.body, input.String("body")),
		}
		if err := draft.Validate(); err != nil {
			return err
		}
		mb, err := app.OpenMailbox(ctx, cfg, src, logger)
		if err != nil {
			return err
		}
		id, err := gmail.CreateDraft(ctx, mb, draft)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Draft created successfully. Draft ID: %s\n", id)
		return nil
	}

	query := config.FirstNonEmpty(f.query, cfg.Gmail.Query, local.String("gmailQuery"), input.String("gmailQuery"), config.DefaultGmailQuery)
	if f.natural && f.query != "" {
		query, err = translateQuery(ctx, cfg, f.query, logger)
		if err != nil {
			return err
		}
	}

	opts := gmail.Options{
		Query:      query,
		MimeTypes:  config.FirstNonEmptyList(f.mimeTypes, cfg.Gmail.MimeTypes, local.Strings("attachmentMimeTypes"), input.Strings("attachmentMimeTypes"), config.DefaultMimeTypes),
		MaxResults: cfg.Gmail.MaxResults,
	}
	if f.maxResults > 0 {
		opts.MaxResults = f.maxResults
	}

	mb, err := app.OpenMailbox(ctx, cfg, src, logger)
	if err != nil {
		return err
	}
	store, err := dataset.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := gmail.NewProcessor(mb, store, cfg.Gmail.RequestsPerSecond, logger).Run(ctx, opts)
	if err != nil {
		return err
	}
	report.Print(out)
	return nil
}

func translateQuery(ctx context.Context, cfg *config.Config, request string, logger *slog.Logger) (string, error) {
	provider, err := llm.New(cfg.LLM, logger)
	if err != nil {
		return "", err
	}
	res, err := translate.New(provider, cfg.LLM.Model, logger).Translate(ctx, request, translate.GmailSearch)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", res.ParseError
	}
	logger.Info("translated search request", "request", request, "query", res.Text)
	return res.Text, nil
}
