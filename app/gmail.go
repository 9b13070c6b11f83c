package app

import (
	"context"
	"log/slog"

	"google.golang.org/api/option"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/gmail"
)

// OpenMailbox resolves Gmail credentials and builds the API client.
// Placeholder client ids are replaced from the client secret file when it
// is readable.
func OpenMailbox(ctx context.Context, cfg *config.Config, src gmail.CredentialSources, logger *slog.Logger) (*gmail.API, error) {
	creds, err := gmail.ResolveCredentials(src)
	if err != nil {
		return nil, err
	}

	if creds.HasPlaceholders() {
		logger.Info("detected placeholder credentials, loading client secret", "path", cfg.Gmail.ClientSecretFile)
		secret, err := gmail.LoadClientSecret(cfg.Gmail.ClientSecretFile)
		if err != nil {
			logger.Warn("could not load client secret, token refresh may fail", "error", err)
		} else {
			creds.FillClient(secret)
		}
	}

	mb, err := gmail.NewAPI(ctx, cfg.Gmail.UserID, option.WithTokenSource(creds.TokenSource(ctx)))
	if err != nil {
		return nil, err
	}
	logger.Info("initialized Gmail API service")
	return mb, nil
}

// GmailSources gathers the credential sources for the configured files
func GmailSources(cfg *config.Config, explicit string, input config.Input) (gmail.CredentialSources, config.Input, error) {
	local, _, err := config.LoadOptionalInput(cfg.Gmail.CredentialsFile)
	if err != nil {
		return gmail.CredentialSources{}, nil, err
	}
	return gmail.CredentialSources{
		Explicit:  explicit,
		Local:     local,
		LocalPath: cfg.Gmail.CredentialsFile,
		Input:     input,
	}, local, nil
}
