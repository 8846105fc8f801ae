// Package config loads the YAML configuration that selects and sets up a
// scripting engine.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/deepnoodle-ai/jsa"
	"github.com/deepnoodle-ai/jsa/bridge"
	"github.com/deepnoodle-ai/jsa/scriptengines/gojaengine"
	"github.com/deepnoodle-ai/jsa/scriptengines/risorengine"
	"gopkg.in/yaml.v3"
)

// Supported engine names
const (
	EngineGoja  = "goja"
	EngineRisor = "risor"
)

// Supported log formats
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config selects an engine and the globals installed into it.
type Config struct {
	Engine           string         `json:"engine" yaml:"engine"`
	LogLevel         string         `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFormat        string         `json:"log_format,omitempty" yaml:"log_format,omitempty"`
	Globals          map[string]any `json:"globals,omitempty" yaml:"globals,omitempty"`
	MaxCallStackSize int            `json:"max_call_stack_size,omitempty" yaml:"max_call_stack_size,omitempty"`

	// Restricted limits the risor engine to builtins without side effects.
	Restricted bool `json:"restricted,omitempty" yaml:"restricted,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Engine:    EngineGoja,
		LogLevel:  "info",
		LogFormat: LogFormatText,
	}
}

// Load reads a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, fills in defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the engine, log level and log format are known.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineGoja, EngineRisor:
	default:
		return fmt.Errorf("unknown engine %q (expected %q or %q)", c.Engine, EngineGoja, EngineRisor)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.MaxCallStackSize < 0 {
		return fmt.Errorf("max_call_stack_size must not be negative")
	}
	if c.Engine == EngineRisor && c.MaxCallStackSize > 0 {
		return fmt.Errorf("max_call_stack_size is only supported by the %s engine", EngineGoja)
	}
	if c.Engine == EngineGoja && c.Restricted {
		return fmt.Errorf("restricted is only supported by the %s engine", EngineRisor)
	}
	return nil
}

// Level parses LogLevel. An empty level is info.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Logger returns a logger for the configured level and format.
func (c *Config) Logger() *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	if c.LogFormat == LogFormatJSON {
		return jsa.NewJSONLogger(level)
	}
	return jsa.NewLogger(level)
}

// Engine is a runtime built from a Config.
type Engine interface {
	jsa.Runtime
	ID() string
	LiveHandles() int
	Close() error
}

var (
	_ Engine = (*gojaengine.Runtime)(nil)
	_ Engine = (*risorengine.Runtime)(nil)
)

// NewRuntime builds the configured engine and installs the configured
// globals into its global object.
func NewRuntime(cfg *Config, logger *slog.Logger) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = jsa.NewDiscardLogger()
	}
	var engine Engine
	switch cfg.Engine {
	case EngineRisor:
		engine = risorengine.New(risorengine.Options{Logger: logger, Restricted: cfg.Restricted})
	default:
		engine = gojaengine.New(gojaengine.Options{
			Logger:           logger,
			MaxCallStackSize: cfg.MaxCallStackSize,
		})
	}
	if err := installGlobals(engine, cfg.Globals); err != nil {
		engine.Close()
		return nil, err
	}
	logger.Debug("runtime created", "engine", engine.Description(), "runtime_id", engine.ID(), "globals", len(cfg.Globals))
	return engine, nil
}

func installGlobals(rt jsa.Runtime, globals map[string]any) error {
	if len(globals) == 0 {
		return nil
	}
	global, err := rt.Global()
	if err != nil {
		return err
	}
	defer global.Release()
	for name, value := range globals {
		v, err := bridge.ToValue(rt, value)
		if err != nil {
			return fmt.Errorf("global %q: %w", name, err)
		}
		err = global.SetProperty(rt, name, v)
		v.Release()
		if err != nil {
			return fmt.Errorf("global %q: %w", name, err)
		}
	}
	return nil
}
