package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/collatz/internal/engine"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collatz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, uint64(100000), cfg.BatchSize)
	assert.Equal(t, "2^68", cfg.Threshold)
	assert.Equal(t, uint64(100000), cfg.MaxSteps)
	assert.Equal(t, "threshold", cfg.EarlyExit)
	assert.Equal(t, "collatz.db", cfg.Database)
	assert.Equal(t, 30*time.Second, cfg.CheckpointInterval)
	assert.Equal(t, 5, cfg.SaveRetries)
	assert.Equal(t, 10*time.Second, cfg.StatusInterval)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
workers: 4
batch_size: 5000
threshold: 1000
early_exit: watermark
checkpoint_interval: 5s
database: /tmp/verify.db
`)

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, uint64(5000), cfg.BatchSize)
	assert.Equal(t, "1000", cfg.Threshold)
	assert.Equal(t, "watermark", cfg.EarlyExit)
	assert.Equal(t, 5*time.Second, cfg.CheckpointInterval)
	assert.Equal(t, "/tmp/verify.db", cfg.Database)
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, "workerz: 4\n")

	_, err := Load(New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workerz")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("COLLATZ_WORKERS", "3")
	t.Setenv("COLLATZ_EARLY_EXIT", "watermark")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "watermark", cfg.EarlyExit)
}

func TestLoadEnvFile(t *testing.T) {
	t.Cleanup(func() { os.Unsetenv("COLLATZ_MAX_STEPS") })
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("COLLATZ_MAX_STEPS=777\n"), 0o600))

	require.NoError(t, LoadEnvFile(path))
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, uint64(777), cfg.MaxSteps)
}

func TestLoadEnvFile_Missing(t *testing.T) {
	err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load env file")
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "workers: 4\nbatch_size: 5000\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 0, "")
	flags.Uint64("batch-size", 0, "")
	require.NoError(t, flags.Parse([]string{"--workers", "16"}))

	v := New()
	require.NoError(t, BindFlags(v, flags))

	cfg, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Workers, "set flag wins")
	assert.Equal(t, uint64(5000), cfg.BatchSize, "unset flag does not override file")
}

func TestValidate_Errors(t *testing.T) {
	valid := func() Config {
		cfg, err := Load(New(), "")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad early exit", func(c *Config) { c.EarlyExit = "sometimes" }, "early_exit"},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"threshold syntax", func(c *Config) { c.Threshold = "3^5" }, "threshold"},
		{"empty database", func(c *Config) { c.Database = "" }, "database"},
		{"negative interval", func(c *Config) { c.CheckpointInterval = -time.Second }, "checkpoint_interval"},
		{"threshold exponent", func(c *Config) { c.Threshold = "2^200" }, "threshold"},
		{"decimal threshold above 2^127", func(c *Config) { c.Threshold = "340282366920938463463374607431768211455" }, "threshold"},
		{"threshold too small", func(c *Config) { c.Threshold = "1" }, "threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestEngineOptions(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	cfg.Threshold = "100"
	cfg.CheckpointInterval = 0

	o, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.Equal(t, "100", o.Threshold.String())
	assert.Equal(t, engine.EarlyExitThreshold, o.EarlyExit)
	assert.Less(t, o.CheckpointInterval, time.Duration(0), "zero interval disables the timer")
}

func TestEngineOptions_ZeroSaveRetries(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	cfg.SaveRetries = 0

	o, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.Negative(t, o.SaveRetries, "zero retries disables retrying")
	assert.Equal(t, 0, engine.New(nil, o).Options().SaveRetries)

	cfg.SaveRetries = 7
	o, err = cfg.EngineOptions()
	require.NoError(t, err)
	assert.Equal(t, 7, o.SaveRetries)
}
