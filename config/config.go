// Package config - YAML configuration with environment overrides for the
// classification binaries.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/models"
)

// Environment variables recognized after the YAML file is applied.
const (
	// EnvPresenceModel overrides the presence model path.
	EnvPresenceModel = "SCOOTER_PRESENCE_MODEL"
	// EnvParkingModel overrides the parking model path.
	EnvParkingModel = "SCOOTER_PARKING_MODEL"
	// EnvSharedLibrary overrides the ONNX Runtime shared library path.
	EnvSharedLibrary = "ONNXRUNTIME_SHARED_LIBRARY_PATH"
	// EnvServerAddr overrides the HTTP listen address.
	EnvServerAddr = "SCOOTER_SERVER_ADDR"
	// EnvBotToken overrides the Telegram bot token.
	EnvBotToken = "SCOOTER_BOT_TOKEN"
)

// ModelsConfig locates the two classifier heads. The parking path may stay
// empty: the pipeline then runs presence-only.
type ModelsConfig struct {
	// PresencePath is the path to the presence model. Required.
	PresencePath string `yaml:"presencePath"`
	// ParkingPath is the path to the parking-status model. Optional.
	ParkingPath string `yaml:"parkingPath"`
}

// RuntimeConfig tunes the native inference runtime.
type RuntimeConfig struct {
	// SharedLibraryPath locates the ONNX Runtime shared library. Empty
	// falls back to the environment variable and the per-platform default.
	SharedLibraryPath string `yaml:"sharedLibraryPath"`
	// IntraOpThreads bounds parallelism inside graph nodes. 0 lets the
	// runtime decide.
	IntraOpThreads int `yaml:"intraOpThreads"`
}

// PreprocessConfig fixes the model input resolution. The trained models
// accept exactly one input size, so Validate rejects any other value.
type PreprocessConfig struct {
	// TargetWidth is the tensor width both models consume.
	TargetWidth int `yaml:"targetWidth"`
	// TargetHeight is the tensor height both models consume.
	TargetHeight int `yaml:"targetHeight"`
}

// ServerConfig tunes the HTTP collaborator.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`
	// ReadTimeoutSeconds bounds request reading.
	ReadTimeoutSeconds int `yaml:"readTimeoutSeconds"`
	// WriteTimeoutSeconds bounds response writing.
	WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds"`
	// MaxBodyBytes caps the accepted request body size.
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`
}

// ReadTimeout returns the read timeout as a duration.
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the write timeout as a duration.
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// BotConfig tunes the Telegram collaborator.
type BotConfig struct {
	// Token authenticates the bot against the Telegram API.
	Token string `yaml:"token"`
	// PollTimeoutSeconds is the long-poll timeout for updates.
	PollTimeoutSeconds int `yaml:"pollTimeoutSeconds"`
}

// WatchConfig tunes the fixed-interval re-classification loop of the CLI.
type WatchConfig struct {
	// IntervalMillis is the delay between classification rounds.
	IntervalMillis int `yaml:"intervalMillis"`
}

// Interval returns the watch interval as a duration.
func (c WatchConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMillis) * time.Millisecond
}

// Config is the root configuration shared by every binary.
type Config struct {
	Models     ModelsConfig     `yaml:"models"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Server     ServerConfig     `yaml:"server"`
	Bot        BotConfig        `yaml:"bot"`
	Watch      WatchConfig      `yaml:"watch"`
}

// Default returns a configuration with working defaults for everything
// except the model paths, which have no sensible default.
func Default() Config {
	return Config{
		Models: ModelsConfig{},
		Runtime: RuntimeConfig{
			IntraOpThreads: 0,
		},
		Preprocess: PreprocessConfig{
			TargetWidth:  224,
			TargetHeight: 224,
		},
		Server: ServerConfig{
			Addr:                ":8080",
			ReadTimeoutSeconds:  60,
			WriteTimeoutSeconds: 60,
			MaxBodyBytes:        10 << 20,
		},
		Bot: BotConfig{
			PollTimeoutSeconds: 60,
		},
		Watch: WatchConfig{
			IntervalMillis: 3000,
		},
	}
}

// Load reads the configuration: defaults first, then the YAML file, then
// environment overrides. An empty path skips the file and yields defaults
// plus environment.
//
// Arguments:
//   - path: Path to a YAML configuration file. May be empty.
//
// Returns:
//   - Config: The merged configuration. Not yet validated; callers apply
//     their own overrides (flags) and then call Validate.
//   - error: An error if the file cannot be read or parsed.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays the recognized environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPresenceModel); v != "" {
		c.Models.PresencePath = v
	}
	if v := os.Getenv(EnvParkingModel); v != "" {
		c.Models.ParkingPath = v
	}
	if v := os.Getenv(EnvSharedLibrary); v != "" {
		c.Runtime.SharedLibraryPath = v
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvBotToken); v != "" {
		c.Bot.Token = v
	}
}

// Validate checks the configuration for values no binary can work with.
// Surface-specific requirements (bot token, listen address) are checked by
// the binary that needs them.
func (c Config) Validate() error {
	if c.Models.PresencePath == "" {
		return fmt.Errorf("a presence model is required, set models.presencePath or %s", EnvPresenceModel)
	}
	if c.Runtime.IntraOpThreads < 0 {
		return fmt.Errorf("runtime.intraOpThreads must not be negative, got %d", c.Runtime.IntraOpThreads)
	}
	if c.Preprocess.TargetWidth != models.InputWidth || c.Preprocess.TargetHeight != models.InputHeight {
		return fmt.Errorf("preprocess target size must be %dx%d to match the model input, got %dx%d",
			models.InputWidth, models.InputHeight,
			c.Preprocess.TargetWidth, c.Preprocess.TargetHeight)
	}
	if c.Watch.IntervalMillis <= 0 {
		return fmt.Errorf("watch.intervalMillis must be positive, got %d", c.Watch.IntervalMillis)
	}
	return nil
}
