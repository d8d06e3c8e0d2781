package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
telegram:
  token: "123456:ABCDEF"
destinations:
  urgent: "-1001"
  repair: "-1002"
  rental: "-1003"
  audit: "@audit"
database:
  driver: sqlite
  dsn: ":memory:"
`

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "BOT_TELEGRAM_TOKEN", "PORT", "BOT_HTTP_PORT",
		"CHANNEL_URGENT", "CHANNEL_REPAIR", "CHANNEL_RENTAL", "CHANNEL_AUDIT",
		"BOT_DATABASE_DRIVER", "BOT_DATABASE_DSN", "BOT_STATE_BACKEND",
	} {
		t.Setenv(key, "")
	}
}

func TestCheckConfig(t *testing.T) {
	isolateEnv(t)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check-config", "--config", writeTestConfig(t, testConfig)})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Configuration is valid")
	assert.Contains(t, out.String(), "@audit")
	assert.Contains(t, out.String(), "request_redelivery")
}

func TestExecute_ExitCodes(t *testing.T) {
	isolateEnv(t)

	assert.Equal(t, 0, execute(context.Background(), []string{"migrate", "--config", writeTestConfig(t, testConfig)}))
	assert.Equal(t, 1, execute(context.Background(), []string{"check-config", "--config", writeTestConfig(t, "log: {level: loud}")}))
	assert.Equal(t, 1, execute(context.Background(), []string{"check-config", "--config", filepath.Join(t.TempDir(), "missing.yaml")}))
}
