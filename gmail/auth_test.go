package gmail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammcj/actorglue/logging"
)

func TestAuthorizeLoopbackFlow(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	secret := &ClientSecret{
		ClientID:     "id",
		ClientSecret: "secret",
		AuthURI:      "https://accounts.example.com/auth",
		TokenURI:     tokenSrv.URL,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prompt := func(authURL string) {
		u, err := url.Parse(authURL)
		if !assert.NoError(t, err) {
			return
		}
		q := u.Query()
		assert.Equal(t, "offline", q.Get("access_type"))
		assert.Equal(t, "consent", q.Get("prompt"))

		redirect := q.Get("redirect_uri") + "?code=the-code&state=" + url.QueryEscape(q.Get("state"))
		go func() {
			resp, err := http.Get(redirect)
			if err == nil {
				resp.Body.Close()
			}
		}()
	}

	creds, err := Authorize(ctx, secret, prompt, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "at", creds.Token)
	assert.Equal(t, "rt", creds.RefreshToken)
	assert.Equal(t, "id", creds.ClientID)
	assert.Equal(t, Scopes, creds.Scopes)
}

func TestAuthorizeRejectsStateMismatch(t *testing.T) {
	secret := &ClientSecret{ClientID: "id", ClientSecret: "s", AuthURI: "https://a.example", TokenURI: "https://t.example"}

	prompt := func(authURL string) {
		u, _ := url.Parse(authURL)
		redirect := u.Query().Get("redirect_uri") + "?code=c&state=forged"
		go func() {
			resp, err := http.Get(redirect)
			if err == nil {
				resp.Body.Close()
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := Authorize(ctx, secret, prompt, logging.Discard())
	assert.ErrorContains(t, err, "state mismatch")
}
