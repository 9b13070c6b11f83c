// Command mcpclient is the interactive agent: a model with the Apify MCP
// server's tools and the local tools, driven from the terminal, over HTTP
// (--serve) or exposed as an MCP server itself (--mcp-serve).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sammcj/actorglue/apify"
	"github.com/sammcj/actorglue/app"
	"github.com/sammcj/actorglue/bridge"
	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/dataset"
	"github.com/sammcj/actorglue/gmail"
	"github.com/sammcj/actorglue/interactive"
	"github.com/sammcj/actorglue/llm"
	"github.com/sammcj/actorglue/mcpserver"
	"github.com/sammcj/actorglue/retell"
	"github.com/sammcj/actorglue/server"
	"github.com/sammcj/actorglue/tools"
	"github.com/sammcj/actorglue/watchdog"
)

func main() {
	os.Exit(run())
}

func run() int {
	var opts app.Options
	fs := flag.NewFlagSet("mcpclient", flag.ExitOnError)
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to config.yaml (default ~/.config/actorglue/config.yaml)")
	fs.StringVar(&opts.Model, "model", "", "Model id, e.g. claude-sonnet-4-5")
	serve := fs.Bool("serve", false, "Serve the chat API over HTTP instead of the terminal")
	mcpServe := fs.Bool("mcp-serve", false, "Expose the local tools as an MCP server on stdio")
	fs.Parse(os.Args[1:])

	cfg, err := app.LoadConfig(opts, os.Getenv)
	if err != nil {
		app.PrintError(os.Stdout, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, cfg)
	if err != nil {
		app.PrintError(os.Stdout, err)
		return 1
	}
	defer rt.Close()
	logger := rt.Logger

	store, err := dataset.Open(cfg.Database.Path)
	if err != nil {
		app.PrintError(os.Stdout, err)
		return 1
	}

	if *mcpServe {
		defer store.Close()
		registry := bridge.NewRegistry(nil, cfg.Tools.CallTimeout, logger)
		registerTools(ctx, cfg, registry, store, logger)
		if err := mcpserver.NewMCPServer(registry, app.Version, logger).Serve(ctx, os.Stdin, os.Stdout); err != nil {
			logger.Error("mcp server failed", "error", err)
			return 1
		}
		return 0
	}

	provider, err := llm.New(cfg.LLM, logger)
	if err != nil {
		store.Close()
		app.PrintError(os.Stdout, err)
		return 1
	}

	remote, err := bridge.NewMCPClient(ctx, cfg.MCPServer, map[string]string{config.EnvApifyToken: cfg.Apify.Token}, logger)
	if err != nil {
		store.Close()
		app.PrintError(os.Stdout, err)
		return 1
	}

	registry := bridge.NewRegistry(remote, cfg.Tools.CallTimeout, logger)
	detector := watchdog.New(cfg.Tools.SlowCallAfter/2, cfg.Tools.SlowCallAfter, logger)
	registry.SetTracker(detector)
	registerTools(ctx, cfg, registry, store, logger)

	// closing the bridge stops the MCP subprocess and the watchdog
	b := bridge.New(provider, registry, cfg.LLM, logger, remote, detector)

	if *serve || cfg.Server.Enable {
		srv := server.New(cfg, b, logger)
		sm := server.NewShutdownManager(srv.HTTPServer(), logger)
		sm.Register("bridge", b)
		sm.Register("dataset", store)

		go func() {
			<-ctx.Done()
			if err := sm.Shutdown(); err != nil {
				logger.Error("shutdown failed", "error", err)
			}
		}()

		if err := srv.Start(); err != nil {
			logger.Error("server failed", "error", err)
			sm.Shutdown()
			return 1
		}
		sm.WaitForShutdown()
		return 0
	}

	defer store.Close()
	defer b.Close()

	if err := interactive.New(cfg, b, os.Stdin, os.Stdout, logger).Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// registerTools adds the local tools whose collaborators are configured
func registerTools(ctx context.Context, cfg *config.Config, registry *bridge.Registry, store *dataset.Store, logger *slog.Logger) {
	register := func(e bridge.Executor) {
		if err := registry.Register(e); err != nil {
			logger.Error("failed to register tool", "tool", e.Descriptor().Name, "error", err)
		}
	}

	register(tools.NewQueryDataset(store))

	if cfg.Apify.Token != "" {
		runner, err := apify.NewCLIRunner(cfg.Apify.CLI, cfg.Apify.Token, logger)
		if err != nil {
			logger.Warn("build_apify_actor disabled", "error", err)
		} else {
			register(tools.NewBuildActor(apify.NewBuilder(runner, apify.NewClient(cfg.Apify), cfg.Apify, logger)))
		}
	} else {
		logger.Warn("build_apify_actor disabled", "reason", config.EnvApifyToken+" is not set")
	}

	if mb, err := openMailbox(ctx, cfg, logger); err != nil {
		logger.Warn("create_gmail_draft disabled", "error", err)
	} else {
		register(tools.NewGmailDraft(mb))
	}

	if cfg.Retell.APIKey != "" {
		register(tools.NewPhoneCall(retell.NewProcessor(retell.NewClient(cfg.Retell), store, logger), cfg.Retell))
	}
}

func openMailbox(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gmail.API, error) {
	src, _, err := app.GmailSources(cfg, os.Getenv(config.EnvGmailCredentials), nil)
	if err != nil {
		return nil, err
	}
	return app.OpenMailbox(ctx, cfg, src, logger)
}
