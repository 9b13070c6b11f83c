package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/types"
)

// Scopes requested by Authorize. Search needs read access, drafts need compose.
var Scopes = []string{gmailapi.GmailReadonlyScope, gmailapi.GmailComposeScope}

const (
	wrapperKey      = "GMAIL_CREDENTIALS_JSON"
	inputKey        = "gmail_credentials.json"
	placeholderID   = "YOUR_CLIENT_ID"
	placeholderSecr = "YOUR_CLIENT_SECRET"
)

// Credentials is an authorized-user OAuth2 credential in the JSON layout
// produced by Google's client libraries.
type Credentials struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes,omitempty"`
	Expiry       string   `json:"expiry,omitempty"`
}

// ParseCredentials decodes either a bare credentials object or one wrapped
// under GMAIL_CREDENTIALS_JSON (as a JSON string or object).
func ParseCredentials(data []byte) (*Credentials, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("credentials are not a JSON object: %w", err)
	}

	if wrapped, ok := probe[wrapperKey]; ok {
		var inner string
		if err := json.Unmarshal(wrapped, &inner); err == nil {
			return ParseCredentials([]byte(inner))
		}
		return ParseCredentials(wrapped)
	}

	_, hasToken := probe["token"]
	_, hasRefresh := probe["refresh_token"]
	if !hasToken && !hasRefresh {
		return nil, errors.New("credentials object has neither token nor refresh_token")
	}

	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return &c, nil
}

// CredentialSources lists where credentials may come from, in precedence order
type CredentialSources struct {
	// Explicit is a flag or GMAIL_CREDENTIALS_JSON value
	Explicit string
	// Local is the parsed local credentials file and LocalPath its location
	Local     config.Input
	LocalPath string
	// Input is the --input payload
	Input config.Input
}

// ResolveCredentials picks the first available credential source
func ResolveCredentials(src CredentialSources) (*Credentials, error) {
	if src.Explicit != "" {
		return ParseCredentials([]byte(src.Explicit))
	}

	if len(src.Local) > 0 {
		if !src.Local.Has(wrapperKey) && !src.Local.Has("token") && !src.Local.Has("refresh_token") {
			return nil, &types.ConfigError{
				Field:   "gmail.credentials_file",
				Message: fmt.Sprintf("Invalid format in %s. Expected '%s' key or credentials object.", src.LocalPath, wrapperKey),
			}
		}
		data, err := json.Marshal(map[string]any(src.Local))
		if err != nil {
			return nil, err
		}
		return ParseCredentials(data)
	}

	if v, ok := src.Input[inputKey]; ok {
		switch val := v.(type) {
		case string:
			return ParseCredentials([]byte(val))
		default:
			data, err := json.Marshal(val)
			if err != nil {
				return nil, err
			}
			return ParseCredentials(data)
		}
	}

	return nil, types.Missing(wrapperKey, "the environment, "+config.DefaultConfig().Gmail.CredentialsFile+", or the input payload")
}

// HasPlaceholders reports whether the client id or secret were left as template values
func (c *Credentials) HasPlaceholders() bool {
	return strings.HasPrefix(c.ClientID, placeholderID) || strings.HasPrefix(c.ClientSecret, placeholderSecr)
}

// FillClient copies the client id and secret from an OAuth client file
func (c *Credentials) FillClient(secret *ClientSecret) {
	c.ClientID = secret.ClientID
	c.ClientSecret = secret.ClientSecret
	if c.TokenURI == "" {
		c.TokenURI = secret.TokenURI
	}
}

// OAuthConfig returns the client configuration for refreshing the token
func (c *Credentials) OAuthConfig() *oauth2.Config {
	endpoint := google.Endpoint
	if c.TokenURI != "" {
		endpoint.TokenURL = c.TokenURI
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       c.Scopes,
	}
}

// OAuthToken converts the stored token. An unparsable expiry is treated as
// expired so the refresh token is used.
func (c *Credentials) OAuthToken() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  c.Token,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
	}
	if c.Expiry != "" {
		if t, err := time.Parse(time.RFC3339Nano, c.Expiry); err == nil {
			tok.Expiry = t
		} else {
			tok.Expiry = time.Unix(1, 0)
		}
	}
	return tok
}

// TokenSource returns an auto-refreshing token source
func (c *Credentials) TokenSource(ctx context.Context) oauth2.TokenSource {
	return c.OAuthConfig().TokenSource(ctx, c.OAuthToken())
}

// ClientSecret is the OAuth client downloaded from the Google Cloud console
type ClientSecret struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURI      string   `json:"auth_uri"`
	TokenURI     string   `json:"token_uri"`
	RedirectURIs []string `json:"redirect_uris"`
}

// LoadClientSecret reads client_secret.json in either the "installed" or "web" layout
func LoadClientSecret(path string) (*ClientSecret, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseClientSecret(data)
}

// ParseClientSecret decodes a client secret file
func ParseClientSecret(data []byte) (*ClientSecret, error) {
	var file struct {
		Installed *ClientSecret `json:"installed"`
		Web       *ClientSecret `json:"web"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("client secret is not valid JSON: %w", err)
	}

	secret := file.Installed
	if secret == nil {
		secret = file.Web
	}
	if secret == nil {
		return nil, errors.New("client secret must contain either 'installed' or 'web' key")
	}
	if secret.ClientID == "" || secret.ClientSecret == "" {
		return nil, errors.New("client_id and client_secret are required in the client secret")
	}
	if secret.AuthURI == "" {
		secret.AuthURI = google.Endpoint.AuthURL
	}
	if secret.TokenURI == "" {
		secret.TokenURI = google.Endpoint.TokenURL
	}
	return secret, nil
}
