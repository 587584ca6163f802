package credential

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakePlesk(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "plesk")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"+script), 0o755))
	return bin
}

func TestPleskIssuerArgs(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	bin := fakePlesk(t, `printf '%s\n' "$@" > `+argsFile+"\necho '  key-123  '\n")

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	iss := PleskIssuer{Binary: bin, Hostname: "web01", IPAddress: "10.0.0.5", Now: func() time.Time { return at }}

	tok, err := iss.Issue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key-123", tok)

	raw, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, []string{
		"bin", "secret_key", "-c", "-ip-address", "10.0.0.5",
		"-description", "Admin access token for web01 at 2024-05-01T10:00:00Z",
	}, args)
}

func TestPleskIssuerFailure(t *testing.T) {
	bin := fakePlesk(t, "echo 'access denied' >&2\nexit 1\n")

	_, err := PleskIssuer{Binary: bin, Hostname: "web01", IPAddress: "10.0.0.5"}.Issue(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
