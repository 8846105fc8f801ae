package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/deepnoodle-ai/jsa"
	"github.com/deepnoodle-ai/jsa/bridge"
	"github.com/deepnoodle-ai/jsa/config"
	"github.com/fatih/color"
)

// CLI options
type Options struct {
	ScriptFile string
	Source     string
	ConfigFile string
	Engine     string
	Globals    map[string]any
	Timeout    time.Duration
	Verbose    bool
	JSON       bool
}

func main() {
	opts := parseFlags()

	if opts.ScriptFile == "" && opts.Source == "" {
		color.Red("Error: a script file or -eval source is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg, opts.Verbose)

	source, url := opts.Source, "eval"
	if opts.ScriptFile != "" {
		data, err := os.ReadFile(opts.ScriptFile)
		if err != nil {
			color.Red("Error: script file '%s' could not be read: %v", opts.ScriptFile, err)
			os.Exit(1)
		}
		source, url = string(data), opts.ScriptFile
	}

	rt, err := config.NewRuntime(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create runtime: %v", err)
	}
	defer rt.Close()

	if opts.Verbose {
		color.Blue("Engine: %s (runtime %s)", rt.Description(), rt.ID())
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		if opts.Verbose {
			color.Yellow("Timeout: %v", opts.Timeout)
		}
	}

	startTime := time.Now()
	result, err := rt.EvaluateScript(ctx, source, url)
	duration := time.Since(startTime)
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
	defer result.Release()

	showResult(rt, result, duration, opts)
}

func parseFlags() *Options {
	opts := &Options{
		Globals: make(map[string]any),
	}

	flag.StringVar(&opts.ScriptFile, "file", "", "Path to the script to evaluate")
	flag.StringVar(&opts.ScriptFile, "f", "", "Path to the script to evaluate (shorthand)")

	flag.StringVar(&opts.Source, "eval", "", "Script source to evaluate")
	flag.StringVar(&opts.Source, "e", "", "Script source to evaluate (shorthand)")

	flag.StringVar(&opts.ConfigFile, "config", "", "Path to a YAML configuration file (optional)")
	flag.StringVar(&opts.ConfigFile, "c", "", "Path to a YAML configuration file (shorthand)")

	flag.StringVar(&opts.Engine, "engine", "", "Engine to use: goja or risor (overrides the config file)")

	var globalFlags stringSlice
	flag.Var(&globalFlags, "global", "Global variable in format name=value (can be used multiple times)")
	flag.Var(&globalFlags, "g", "Global variable in format name=value (shorthand, can be used multiple times)")

	flag.DurationVar(&opts.Timeout, "timeout", 0, "Evaluation timeout (e.g., 500ms, 5s)")
	flag.DurationVar(&opts.Timeout, "t", 0, "Evaluation timeout (shorthand)")

	flag.BoolVar(&opts.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&opts.Verbose, "v", false, "Enable verbose logging (shorthand)")

	flag.BoolVar(&opts.JSON, "json", false, "Print the result as JSON")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `jsa - Evaluate a script and inspect the result

Usage: %s [options] (-file <script> | -eval <source>)

Examples:
  # Evaluate an expression with the default engine
  %s -eval '1 + 2'

  # Evaluate a file with Risor and a global
  %s -engine risor -global name=world -file hello.risor

  # Evaluate with a timeout and print JSON
  %s -file script.js -timeout 2s -json

Options:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
		flag.PrintDefaults()

		fmt.Fprintf(os.Stderr, `
Global Format:
  Use -global name=value for each global.
  Values are parsed as JSON if possible, otherwise as strings.

`)
	}

	flag.Parse()

	for _, global := range globalFlags {
		parts := strings.SplitN(global, "=", 2)
		if len(parts) != 2 {
			fmt.Fprintf(os.Stderr, "Error: invalid global format '%s'. Use name=value\n", global)
			os.Exit(1)
		}

		name, value := parts[0], parts[1]

		var parsedValue any
		if err := json.Unmarshal([]byte(value), &parsedValue); err != nil {
			parsedValue = value
		}

		opts.Globals[name] = parsedValue
	}

	return opts
}

// Custom flag type for handling multiple global values
type stringSlice []string

func (s *stringSlice) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func loadConfig(opts *Options) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		loaded, err := config.Load(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.Engine != "" {
		cfg.Engine = opts.Engine
	}
	if len(opts.Globals) > 0 {
		if cfg.Globals == nil {
			cfg.Globals = map[string]any{}
		}
		for name, value := range opts.Globals {
			cfg.Globals[name] = value
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config, verbose bool) *slog.Logger {
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg.Logger()
}

func showResult(rt jsa.Runtime, result *jsa.Value, duration time.Duration, opts *Options) {
	if opts.Verbose {
		color.White("Evaluated in %v", duration)
		color.White("Result: %s", jsa.KindToString(result, rt))
	}

	exported, err := bridge.ToGo(rt, result)
	if err != nil {
		// Functions and other non-data values fall back to the engine's
		// string conversion.
		s, convErr := result.ToString(rt)
		if convErr != nil {
			color.Red("Error: %v", err)
			os.Exit(1)
		}
		defer s.Release()
		text, convErr := s.UTF8(rt)
		if convErr != nil {
			color.Red("Error: %v", convErr)
			os.Exit(1)
		}
		color.Cyan("%s", text)
		return
	}

	if opts.JSON {
		outputBytes, err := json.MarshalIndent(exported, "", "  ")
		if err != nil {
			fmt.Printf("Error formatting result: %v\n", err)
			return
		}
		fmt.Println(string(outputBytes))
		return
	}

	switch v := exported.(type) {
	case string:
		color.Green("%s", v)
	case nil:
		color.Magenta("%s", result.Kind())
	default:
		if valueBytes, err := json.Marshal(v); err == nil {
			color.Green("%s", valueBytes)
		} else {
			color.Green("%v", v)
		}
	}
}
