package offscreen

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "OFFSCREEN"

// Config holds bridge and engine configuration.
type Config struct {
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEV" default:"false"`

	// CachePath is where persistent browser state lives. Empty keeps
	// everything in memory.
	CachePath      string `envconfig:"CACHE_PATH"`
	UserAgent      string `envconfig:"USER_AGENT"`
	AcceptLanguage string `envconfig:"ACCEPT_LANGUAGE" default:"en-US,en;q=0.9"`
	// BackgroundColor is ARGB, painted where the page paints nothing.
	BackgroundColor     uint32 `envconfig:"BACKGROUND_COLOR" default:"0x00ffffff"`
	RemoteDebuggingPort int    `envconfig:"REMOTE_DEBUGGING_PORT" default:"0"`

	MemoryLimitMB     int   `envconfig:"MEMORY_LIMIT_MB" default:"128"`
	ScriptTimeoutMS   int   `envconfig:"SCRIPT_TIMEOUT_MS" default:"5000"`
	NetworkTimeoutSec int   `envconfig:"NETWORK_TIMEOUT_SEC" default:"30"`
	MaxResponseBytes  int64 `envconfig:"MAX_RESPONSE_BYTES" default:"10485760"`
	MaxTasksPerStep   int   `envconfig:"MAX_TASKS_PER_STEP" default:"64"`

	// BindingName is the page-global function scripts call to hand a
	// value to the host.
	BindingName string `envconfig:"BINDING_NAME" default:"transfer"`
}

// LoadConfig reads configuration from OFFSCREEN_* environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadConfigOrDefault loads configuration from the environment, falling
// back to defaults when it is malformed.
func LoadConfigOrDefault() *Config {
	cfg, err := LoadConfig()
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:          "info",
		AcceptLanguage:    "en-US,en;q=0.9",
		BackgroundColor:   0x00ffffff,
		MemoryLimitMB:     128,
		ScriptTimeoutMS:   5000,
		NetworkTimeoutSec: 30,
		MaxResponseBytes:  10 << 20,
		MaxTasksPerStep:   64,
		BindingName:       "transfer",
	}
}

func (c *Config) scriptTimeout() time.Duration {
	return time.Duration(c.ScriptTimeoutMS) * time.Millisecond
}

func (c *Config) networkTimeout() time.Duration {
	return time.Duration(c.NetworkTimeoutSec) * time.Second
}

func (c *Config) bindingName() string {
	if c.BindingName == "" {
		return "transfer"
	}
	return c.BindingName
}
