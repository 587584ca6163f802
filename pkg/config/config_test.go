package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func baseYAML(t *testing.T) string {
	dir := t.TempDir()
	return `
queue:
  dir: ` + filepath.Join(dir, "queue") + `
uplink:
  url: https://collector.example.com/ingest
  token: secret
log:
  path: ` + filepath.Join(dir, "logs") + `
`
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, baseYAML(t)))
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Uplink.BatchSize)
	assert.Equal(t, 10, cfg.Uplink.Attempts)
	assert.Equal(t, 100*time.Second, cfg.Uplink.Interval)
	assert.True(t, cfg.Uplink.OffsetAuto)
	assert.Equal(t, 24*time.Hour, cfg.Collect.Interval)
	assert.Equal(t, 10, cfg.Collect.Attempts)
	assert.Equal(t, cfg.Queue.Dir+".deadletter", cfg.Queue.DeadletterDir)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PLESK_SITEKICK_UPLINK_BATCH_SIZE", "50")
	t.Setenv("PLESK_SITEKICK_UPLINK_INTERVAL", "5m")

	cfg, err := Load(writeConfig(t, baseYAML(t)))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Uplink.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Uplink.Interval)
}

func TestLoadRejectsInvalid(t *testing.T) {
	const uplinkOK = "uplink:\n  url: https://collector.example.com/ingest\n  token: secret\n"
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown hook",
			body: uplinkOK + "collect:\n  hooks: [run-shell]\n",
			want: "unknown hook",
		},
		{
			name: "offset not inside interval",
			body: uplinkOK + "  offset_auto: false\n  offset: 100s\n",
			want: "uplink.offset",
		},
		{
			name: "missing token",
			body: "uplink:\n  url: https://collector.example.com/ingest\n",
			want: "uplink.token",
		},
		{
			name: "no provider",
			body: uplinkOK + "providers:\n  plesk: {enable: false}\n  server: {enable: false}\n",
			want: "at least one provider",
		},
		{
			name: "backup and age",
			body: uplinkOK + "log:\n  max_backup: 3\n  max_age: 7\n",
			want: "mutually exclusive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Setenv("PLESK_SITEKICK_QUEUE_DIR", filepath.Join(dir, "queue"))
			t.Setenv("PLESK_SITEKICK_LOG_PATH", filepath.Join(dir, "logs"))

			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigWithCliFlagsWin(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("env-file", "", "")
	cmd.Flags().Int("uplink.batch-size", 200, "")
	cmd.Flags().Bool("uplink.gzip", false, "")

	require.NoError(t, cmd.Flags().Set("config", writeConfig(t, baseYAML(t))))
	require.NoError(t, cmd.Flags().Set("uplink.batch-size", "7"))

	cfg, err := LoadConfigWithCli(cmd)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Uplink.BatchSize)
	assert.False(t, cfg.Uplink.Gzip)
	assert.Equal(t, "secret", cfg.Uplink.Token)
}

func TestLoadConfigWithCliEnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PLESK_SITEKICK_UPLINK_ATTEMPTS=3\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PLESK_SITEKICK_UPLINK_ATTEMPTS") })

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("env-file", "", "")
	require.NoError(t, cmd.Flags().Set("config", writeConfig(t, baseYAML(t))))
	require.NoError(t, cmd.Flags().Set("env-file", envPath))

	cfg, err := LoadConfigWithCli(cmd)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Uplink.Attempts)
}

func TestQueueValidateDeadletterInsideQueue(t *testing.T) {
	q := QueueConfig{Dir: "/var/q", DeadletterDir: "/var/q/dead"}
	assert.Error(t, q.Validate())
	q.DeadletterDir = "/var/q.deadletter"
	assert.NoError(t, q.Validate())
}
