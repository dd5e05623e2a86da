package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scooter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearEnvOverrides(t *testing.T) {
	t.Helper()

	for _, key := range []string{EnvPresenceModel, EnvParkingModel, EnvSharedLibrary, EnvServerAddr, EnvBotToken} {
		t.Setenv(key, "")
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 224, cfg.Preprocess.TargetWidth)
	assert.Equal(t, 224, cfg.Preprocess.TargetHeight)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout())
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout())
	assert.Equal(t, int64(10<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 3*time.Second, cfg.Watch.Interval())
	assert.Empty(t, cfg.Models.PresencePath)
}

func TestLoadEmptyPathYieldsDefaults(t *testing.T) {
	clearEnvOverrides(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadReadsYAML(t *testing.T) {
	clearEnvOverrides(t)

	path := writeConfigFile(t, `
models:
  presencePath: models/presence.onnx
  parkingPath: models/parking.onnx
runtime:
  sharedLibraryPath: third_party/libonnxruntime.so
  intraOpThreads: 2
server:
  addr: ":9090"
  readTimeoutSeconds: 30
bot:
  token: from-file
watch:
  intervalMillis: 500
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "models/presence.onnx", cfg.Models.PresencePath)
	assert.Equal(t, "models/parking.onnx", cfg.Models.ParkingPath)
	assert.Equal(t, "third_party/libonnxruntime.so", cfg.Runtime.SharedLibraryPath)
	assert.Equal(t, 2, cfg.Runtime.IntraOpThreads)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout())
	assert.Equal(t, "from-file", cfg.Bot.Token)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Interval())

	// Values the file does not mention keep their defaults.
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout())
	assert.Equal(t, 224, cfg.Preprocess.TargetWidth)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearEnvOverrides(t)

	path := writeConfigFile(t, `
models:
  presencePath: from-file.onnx
bot:
  token: from-file
`)

	t.Setenv(EnvPresenceModel, "from-env.onnx")
	t.Setenv(EnvParkingModel, "parking-env.onnx")
	t.Setenv(EnvServerAddr, "127.0.0.1:7000")
	t.Setenv(EnvBotToken, "from-env")
	t.Setenv(EnvSharedLibrary, "/opt/ort/libonnxruntime.so")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.onnx", cfg.Models.PresencePath, "environment must beat the file")
	assert.Equal(t, "parking-env.onnx", cfg.Models.ParkingPath)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr)
	assert.Equal(t, "from-env", cfg.Bot.Token)
	assert.Equal(t, "/opt/ort/libonnxruntime.so", cfg.Runtime.SharedLibraryPath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "models: [not a mapping")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Models.PresencePath = "models/presence.onnx"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing presence model", mutate: func(c *Config) { c.Models.PresencePath = "" }},
		{name: "negative threads", mutate: func(c *Config) { c.Runtime.IntraOpThreads = -1 }},
		{name: "zero target size", mutate: func(c *Config) { c.Preprocess.TargetWidth = 0 }},
		{name: "target size off the model contract", mutate: func(c *Config) { c.Preprocess.TargetWidth = 128 }},
		{name: "zero watch interval", mutate: func(c *Config) { c.Watch.IntervalMillis = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Models.PresencePath = "models/presence.onnx"
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
