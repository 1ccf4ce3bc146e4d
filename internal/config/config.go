// Package config loads the settings of the tendril command.
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the document directory when no file is given.
const DefaultFile = "tendril.yaml"

// Config represents the structure of tendril.yaml.
type Config struct {
	Dir         string        `mapstructure:"dir"`
	Patterns    []string      `mapstructure:"patterns"`
	LogLevel    string        `mapstructure:"log_level"`
	Concurrency int           `mapstructure:"concurrency"`
	Debounce    time.Duration `mapstructure:"debounce"`
	Session     string        `mapstructure:"session"`
	HTTP        HTTPConfig    `mapstructure:"http"`
	Redis       RedisConfig   `mapstructure:"redis"`
	Redact      []string      `mapstructure:"redact"`

	// EncryptionKey is a base64 AES-256 key. When set, artifact texts are encrypted in the sink.
	EncryptionKey string `mapstructure:"encryption_key"`
}

// HTTPConfig configures the introspection server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// RedisConfig enables the Redis artifact sink and pass lock when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Default returns the settings used for keys missing from the file.
func Default() Config {
	return Config{
		Dir:         ".",
		Patterns:    []string{"**/*.{md,json,yaml,yml}"},
		LogLevel:    "info",
		Concurrency: 4,
		Debounce:    200 * time.Millisecond,
		Session:     "default",
		HTTP:        HTTPConfig{Addr: ":8080"},
		Redis:       RedisConfig{Prefix: "tendril:", LockTTL: 30 * time.Second},
	}
}

// Load reads path (YAML or JSON) on top of the defaults. A missing file is not an error
// unless required is set.
func Load(path string, required bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data, strings.ToLower(filepath.Ext(path)) == ".json")
}

// Parse decodes a config document on top of the defaults.
func Parse(data []byte, asJSON bool) (Config, error) {
	raw := map[string]any{}
	if asJSON {
		if err := json.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse config json: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			numberToDuration,
		),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the command cannot run with.
func (c Config) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("invalid config: concurrency must not be negative, got %d", c.Concurrency)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("invalid config: debounce must not be negative, got %s", c.Debounce)
	}
	if len(c.Patterns) == 0 {
		return fmt.Errorf("invalid config: at least one pattern is required")
	}
	if c.EncryptionKey != "" {
		if _, err := c.Key(); err != nil {
			return err
		}
	}
	return nil
}

// Key decodes EncryptionKey. It returns nil when no key is configured.
func (c Config) Key() ([]byte, error) {
	if c.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid config: encryption_key is not base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid config: encryption_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// numberToDuration reads bare numbers as seconds.
func numberToDuration(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}
