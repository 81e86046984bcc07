// Package config loads arbor settings from an arbor.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "arbor.yaml"

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
)

// Evaluators.
const (
	EvaluatorJS   = "js"
	EvaluatorExpr = "expr"
)

// Config is the full application configuration.
type Config struct {
	Components string     `mapstructure:"components"`
	Document   string     `mapstructure:"document"`
	Outlet     string     `mapstructure:"outlet"`
	Evaluator  string     `mapstructure:"evaluator"`
	Store      Store      `mapstructure:"store"`
	Barrier    Barrier    `mapstructure:"barrier"`
	Transition Transition `mapstructure:"transition"`
	LogLevel   string     `mapstructure:"log_level"`
	BaseURL    string     `mapstructure:"base_url"`
}

// Store selects and configures the context blob backend.
type Store struct {
	Backend       string   `mapstructure:"backend"`
	Key           string   `mapstructure:"key"`
	Path          string   `mapstructure:"path"`
	Redis         Redis    `mapstructure:"redis"`
	EncryptionKey string   `mapstructure:"encryption_key"`
	Mask          []string `mapstructure:"mask"`
}

// Redis holds the redis backend settings.
type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Barrier bounds how long a render pass waits for pending evaluations.
type Barrier struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Transition holds the router's entry/exit delay.
type Transition struct {
	Delay time.Duration `mapstructure:"delay"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Components: "components",
		Document:   "index.html",
		Outlet:     "#app",
		Evaluator:  EvaluatorJS,
		Store: Store{
			Backend: BackendMemory,
			Key:     "context",
			Path:    ".arbor",
			Redis:   Redis{Addr: "localhost:6379", Prefix: "arbor:"},
		},
		Barrier:    Barrier{Timeout: 10 * time.Second},
		Transition: Transition{Delay: 300 * time.Millisecond},
		LogLevel:   "info",
	}
}

// Load reads path over the defaults. A missing file yields the defaults
// unless the path was given explicitly.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data over the defaults.
func Parse(data []byte) (Config, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := Default()
	if err := Decode(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Decode applies a generic map onto cfg. Scalars are weakly typed and
// durations accept strings like "250ms".
func Decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			millisHook,
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// millisHook reads bare numbers as milliseconds.
func millisHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	}
	return data, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch strings.ToLower(c.Store.Backend) {
	case BackendMemory, BackendFile, BackendRedis, BackendBolt:
	default:
		return fmt.Errorf("invalid config: unknown store backend %q", c.Store.Backend)
	}
	switch strings.ToLower(c.Evaluator) {
	case EvaluatorJS, EvaluatorExpr:
	default:
		return fmt.Errorf("invalid config: unknown evaluator %q", c.Evaluator)
	}
	if c.Store.EncryptionKey != "" {
		if n := len(c.Store.EncryptionKey); n != 32 {
			return fmt.Errorf("invalid config: encryption_key must be 32 bytes, got %d", n)
		}
	}
	return nil
}
