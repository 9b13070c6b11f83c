package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/oauth2"
)

// Authorize runs the installed-app OAuth flow on a loopback listener with a
// random port. prompt is given the consent URL to show the user. The
// returned credentials include a refresh token because offline access and
// forced consent are requested.
func Authorize(ctx context.Context, secret *ClientSecret, prompt func(url string), logger *slog.Logger) (*Credentials, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for oauth redirect: %w", err)
	}
	defer ln.Close()

	cfg := &oauth2.Config{
		ClientID:     secret.ClientID,
		ClientSecret: secret.ClientSecret,
		Endpoint:     oauth2.Endpoint{AuthURL: secret.AuthURI, TokenURL: secret.TokenURI},
		RedirectURL:  fmt.Sprintf("http://127.0.0.1:%d/", ln.Addr().(*net.TCPAddr).Port),
		Scopes:       Scopes,
	}

	state := ulid.Make().String()
	type callback struct {
		code string
		err  error
	}
	done := make(chan callback, 1)

	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			var cb callback
			switch {
			case q.Get("error") != "":
				cb.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
			case q.Get("state") != state:
				cb.err = errors.New("oauth state mismatch")
			case q.Get("code") == "":
				cb.err = errors.New("no authorization code in redirect")
			default:
				cb.code = q.Get("code")
			}
			if cb.err != nil {
				http.Error(w, cb.err.Error(), http.StatusBadRequest)
			} else {
				fmt.Fprintln(w, "The authentication flow has completed. You may close this window.")
			}
			select {
			case done <- cb:
			default:
			}
		}),
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("oauth redirect server failed", "error", err)
		}
	}()
	defer srv.Close()

	prompt(cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")))

	var cb callback
	select {
	case cb = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if cb.err != nil {
		return nil, cb.err
	}

	tok, err := cfg.Exchange(ctx, cb.code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if tok.RefreshToken == "" {
		logger.Warn("no refresh token returned, the credentials will stop working when the access token expires")
	}

	return &Credentials{
		Token:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenURI:     secret.TokenURI,
		ClientID:     secret.ClientID,
		ClientSecret: secret.ClientSecret,
		Scopes:       Scopes,
		Expiry:       tok.Expiry.UTC().Format(time.RFC3339Nano),
	}, nil
}
