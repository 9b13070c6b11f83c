// Command gmailtoken runs the one-time OAuth consent flow and prints the
// credentials JSON to store in GMAIL_CREDENTIALS_JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sammcj/actorglue/app"
	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/gmail"
	"github.com/sammcj/actorglue/logging"
)

const banner = "============================================================"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("gmailtoken", flag.ContinueOnError)
	secretPath := fs.String("client-secret", "client_secret.json", "OAuth client secret downloaded from the Google Cloud console")
	outPath := fs.String("out", "", "Also write the credentials to this file")
	logLevel := fs.String("log-level", "info", "Log level")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	logger, closeLog, err := logging.New(config.LoggingConfig{Level: *logLevel, Format: "text", Output: "stderr"})
	if err != nil {
		app.PrintError(out, err)
		return 1
	}
	defer closeLog()

	secret, err := gmail.LoadClientSecret(*secretPath)
	if err != nil {
		app.PrintError(out, err)
		return 1
	}
	fmt.Fprintf(out, "Using OAuth client: %s...\n", prefix(secret.ClientID, 20))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	creds, err := gmail.Authorize(ctx, secret, func(url string) {
		fmt.Fprintf(out, "\nOpen this URL in your browser to authorize access:\n\n%s\n\n", url)
	}, logger)
	if err != nil {
		app.PrintError(out, err)
		return 1
	}

	data, err := json.Marshal(creds)
	if err != nil {
		app.PrintError(out, err)
		return 1
	}

	fmt.Fprintln(out, "\n"+banner)
	fmt.Fprintln(out, "COPY THIS ENTIRE JSON STRING (GMAIL_CREDENTIALS_JSON):")
	fmt.Fprintln(out, banner)
	fmt.Fprintln(out, string(data))
	fmt.Fprintln(out, banner)

	if *outPath != "" {
		wrapped, _ := json.MarshalIndent(map[string]string{config.EnvGmailCredentials: string(data)}, "", "  ")
		if err := os.WriteFile(*outPath, wrapped, 0600); err != nil {
			app.PrintError(out, err)
			return 1
		}
		fmt.Fprintf(out, "Saved credentials to %s\n", *outPath)
	}
	return 0
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
