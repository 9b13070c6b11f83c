// Command retellprocessor places an outbound phone call through Retell AI
package main

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/sammcj/actorglue/llm"
	"github.com/sammcj/actorglue/retell"
	"github.com/sammcj/actorglue/translate"
)

type flags struct {
	app.Options
	fromNumber string
	toNumber   string
	agentID    string
	variables  string
	request    string
	input      string
}

// errBadVariables is reported in the plain "Error:" form rather than the error block
var errBadVariables = errors.New("invalid dynamic variables")

func parseFlags(args []string) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("retellprocessor", flag.ContinueOnError)
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config.yaml")
	fs.StringVar(&f.Model, "model", "", "Model id used by --request")
	fs.StringVar(&f.fromNumber, "from-number", "", "Caller number in E.164 format")
	fs.StringVar(&f.fromNumber, "f", "", "Shorthand for --from-number")
	fs.StringVar(&f.toNumber, "to-number", "", "Destination number in E.164 format")
	fs.StringVar(&f.toNumber, "t", "", "Shorthand for --to-number")
	fs.StringVar(&f.agentID, "agent-id", "", "Retell agent id")
	fs.StringVar(&f.agentID, "a", "", "Shorthand for --agent-id")
	fs.StringVar(&f.variables, "dynamic-variables", "", `JSON object of dynamic variables, e.g. '{"customer_name": "Sam"}'`)
	fs.StringVar(&f.variables, "d", "", "Shorthand for --dynamic-variables")
	fs.StringVar(&f.request, "request", "", "Describe the call in natural language")
	fs.StringVar(&f.input, "input", "", "JSON input payload")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// flagRequest turns the explicit flags into a call request
func (f *flags) flagRequest() (retell.CallRequest, error) {
	req := retell.CallRequest{FromNumber: f.fromNumber, ToNumber: f.toNumber, AgentID: f.agentID}
	if f.variables == "" {
		return req, nil
	}
	var vars map[string]any
	if err := json.Unmarshal([]byte(f.variables), &vars); err != nil || vars == nil {
		return req, fmt.Errorf("%w: %s", errBadVariables, f.variables)
	}
	decoded, err := retell.DecodeRequest(map[string]any{"retell_llm_dynamic_variables": vars})
	if err != nil {
		return req, err
	}
	req.DynamicVariables = decoded.DynamicVariables
	return req, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	f, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		app.PrintError(out, err)
		return 1
	}

	flagReq, err := f.flagRequest()
	if err != nil {
		if errors.Is(err, errBadVariables) {
			fmt.Fprintf(out, "Error: Invalid JSON in --dynamic-variables: %s\n", f.variables)
			return 1
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

	if err := place(ctx, f, flagReq, cfg, rt.Logger, out); err != nil {
		rt.Logger.Error("retell processor failed", "error", err)
		app.PrintError(out, err)
		return 1
	}
	return 0
}

func place(ctx context.Context, f *flags, flagReq retell.CallRequest, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	local, ok, err := config.LoadOptionalInput(cfg.Retell.ConfigFile)
	if err != nil {
		return err
	}
	if ok {
		logger.Info("loaded local call settings", "path", cfg.Retell.ConfigFile)
	}
	input, err := config.LoadInput(f.input)
	if err != nil {
		return err
	}

	key, err := retell.ResolveAPIKey(cfg.Retell.APIKey, local, input)
	if err != nil {
		return err
	}
	cfg.Retell.APIKey = key

	var translated retell.CallRequest
	if f.request != "" {
		translated, err = translateRequest(ctx, cfg, f.request, logger)
		if err != nil {
			return err
		}
	}

	req, err := retell.Resolve(retell.Sources{
		Flags:      flagReq,
		Translated: translated,
		Local:      local,
		Input:      input,
		Defaults:   cfg.Retell,
	})
	if err != nil {
		return err
	}

	store, err := dataset.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	outcome, err := retell.NewProcessor(retell.NewClient(cfg.Retell), store, logger).Call(ctx, req)
	if err != nil {
		return err
	}
	outcome.Print(out)
	return nil
}

func translateRequest(ctx context.Context, cfg *config.Config, request string, logger *slog.Logger) (retell.CallRequest, error) {
	provider, err := llm.New(cfg.LLM, logger)
	if err != nil {
		return retell.CallRequest{}, err
	}
	res, err := translate.New(provider, cfg.LLM.Model, logger).Translate(ctx, request, translate.PhoneCall)
	if err != nil {
		return retell.CallRequest{}, err
	}
	if !res.OK() {
		return retell.CallRequest{}, res.ParseError
	}
	logger.Info("translated call request", "request", request, "params", res.Text)
	return retell.DecodeRequest(res.Data)
}
