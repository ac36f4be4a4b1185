// Package config loads Stencil settings from defaults, an optional YAML
// file and STENCIL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys
const (
	KeyLogLevel       = "log.level"
	KeyLogFile        = "log.file"
	KeySandboxEnabled = "sandbox.enabled"
	KeySandboxProcess = "sandbox.process"
	KeySandboxTimeout = "sandbox.timeout"
	KeyMockSeed       = "mock.seed"
	KeyStrictAny      = "variables.strict_any"
	KeyHTTPTimeout    = "http.timeout"
)

// Config holds the resolved settings
type Config struct {
	LogLevel       string
	LogFile        string
	SandboxEnabled bool
	SandboxProcess bool
	SandboxTimeout time.Duration
	MockSeed       uint64
	StrictAny      bool
	HTTPTimeout    time.Duration
}

// New returns a viper instance with defaults and environment binding set
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeySandboxEnabled, true)
	v.SetDefault(KeySandboxProcess, false)
	v.SetDefault(KeySandboxTimeout, 5*time.Second)
	v.SetDefault(KeyMockSeed, 0)
	v.SetDefault(KeyStrictAny, false)
	v.SetDefault(KeyHTTPTimeout, 30*time.Second)

	v.SetEnvPrefix("STENCIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads an explicit config file, or stencil.yaml from the working
// directory if present, and returns the settings
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stencil")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return &Config{
		LogLevel:       v.GetString(KeyLogLevel),
		LogFile:        v.GetString(KeyLogFile),
		SandboxEnabled: v.GetBool(KeySandboxEnabled),
		SandboxProcess: v.GetBool(KeySandboxProcess),
		SandboxTimeout: v.GetDuration(KeySandboxTimeout),
		MockSeed:       v.GetUint64(KeyMockSeed),
		StrictAny:      v.GetBool(KeyStrictAny),
		HTTPTimeout:    v.GetDuration(KeyHTTPTimeout),
	}, nil
}
