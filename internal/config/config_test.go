package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"database_url": "postgres://localhost/runner",
		"storage": "postgres",
		"data_dir": "/var/lib/runner",
		"port": 9090,
		"scheduler_interval": "30s",
		"min_artifact_bytes": 512
	}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/runner", cfg.DatabaseURL)
	assert.Equal(t, "/var/lib/runner", cfg.DataDir)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, int64(512), cfg.MinArtifactBytes)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/runner")
	t.Setenv("RUNNER_DATA_DIR", "/env/data")
	t.Setenv("PORT", "7070")

	var cfg Config
	cfg.ApplyEnv()
	assert.Equal(t, "postgres://env/runner", cfg.DatabaseURL)
	assert.Equal(t, "/env/data", cfg.DataDir)
	assert.Equal(t, 7070, cfg.Port)

	// Explicit values are not overwritten
	cfg = Config{DatabaseURL: "postgres://explicit/runner", Port: 8081}
	cfg.ApplyEnv()
	assert.Equal(t, "postgres://explicit/runner", cfg.DatabaseURL)
	assert.Equal(t, 8081, cfg.Port)
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{Port: 9090}
	merged := cfg.MergeWithDefaults(Default())

	assert.Equal(t, 9090, merged.Port)
	assert.Equal(t, "postgres", merged.Storage)
	assert.Equal(t, "data", merged.DataDir)
	assert.Equal(t, "tmux", merged.TmuxBin)
	assert.Equal(t, "1m", merged.SchedulerInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory storage needs no db", Config{Storage: "memory"}, false},
		{"postgres needs db url", Config{Storage: "postgres"}, true},
		{"postgres with db url", Config{Storage: "postgres", DatabaseURL: "postgres://x"}, false},
		{"unknown storage", Config{Storage: "sqlite"}, true},
		{"negative port", Config{Storage: "memory", Port: -1}, true},
		{"huge port", Config{Storage: "memory", Port: 70000}, true},
		{"negative threshold", Config{Storage: "memory", MinArtifactBytes: -1}, true},
		{"bad interval", Config{Storage: "memory", SchedulerInterval: "soon"}, true},
		{"good interval", Config{Storage: "memory", SchedulerInterval: "2m30s"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTickInterval(t *testing.T) {
	cfg := Config{SchedulerInterval: "30s"}
	assert.Equal(t, 30*time.Second, cfg.TickInterval())

	cfg = Config{}
	assert.Equal(t, time.Minute, cfg.TickInterval())

	cfg = Config{SchedulerInterval: "-5s"}
	assert.Equal(t, time.Minute, cfg.TickInterval())
}
