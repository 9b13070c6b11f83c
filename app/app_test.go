package app

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/gmail"
	"github.com/sammcj/actorglue/logging"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, "llm:\n  model: from-file\n")
	env := map[string]string{config.EnvModel: "from-env", config.EnvAnthropicKey: "sk"}
	getenv := func(k string) string { return env[k] }
	dotenv := filepath.Join(t.TempDir(), ".env")

	cfg, err := LoadConfig(Options{ConfigPath: path, DotEnv: dotenv}, getenv)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, "sk", cfg.LLM.APIKey)

	cfg, err = LoadConfig(Options{ConfigPath: path, Model: "from-flag", DotEnv: dotenv}, getenv)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.LLM.Model)
}

func TestLoadConfigReportsBadFile(t *testing.T) {
	path := writeConfig(t, "llm:\n  max_turns: -1\n")
	_, err := LoadConfig(Options{ConfigPath: path, DotEnv: filepath.Join(t.TempDir(), ".env")}, func(string) string { return "" })
	assert.ErrorContains(t, err, "max_turns")
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, errors.New("from_number is required"))
	assert.Equal(t, "\n=== ERROR ===\nfrom_number is required\n"+errorRule+"\n\n", buf.String())
}

func TestStringListFlag(t *testing.T) {
	var mimes StringList
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&mimes, "m", "")
	fs.Var(&mimes, "mime-types", "")

	require.NoError(t, fs.Parse([]string{"-m", "application/pdf, image/png", "--mime-types", "text/csv"}))
	assert.Equal(t, StringList{"application/pdf", "image/png", "text/csv"}, mimes)
	assert.Equal(t, "application/pdf,image/png,text/csv", mimes.String())
}

func TestRuntimeStartAndClose(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Output = filepath.Join(t.TempDir(), "actorglue.log")

	rt, err := Start(context.Background(), cfg)
	require.NoError(t, err)
	rt.Logger.Info("hello")
	require.NoError(t, rt.Close())

	data, err := os.ReadFile(cfg.Logging.Output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestOpenMailboxFillsPlaceholders(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Gmail.CredentialsFile = filepath.Join(dir, "gmail_credentials.json")
	cfg.Gmail.ClientSecretFile = filepath.Join(dir, "client_secret.json")
	require.NoError(t, os.WriteFile(cfg.Gmail.CredentialsFile,
		[]byte(`{"token":"t","refresh_token":"r","client_id":"YOUR_CLIENT_ID","client_secret":"YOUR_CLIENT_SECRET"}`), 0600))
	require.NoError(t, os.WriteFile(cfg.Gmail.ClientSecretFile,
		[]byte(`{"installed":{"client_id":"id","client_secret":"secret"}}`), 0600))

	src, local, err := GmailSources(cfg, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "t", local.String("token"))

	mb, err := OpenMailbox(context.Background(), cfg, src, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, mb)

	_, err = OpenMailbox(context.Background(), cfg, gmail.CredentialSources{}, logging.Discard())
	assert.Error(t, err)
}
