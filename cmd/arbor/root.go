package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor renders reactive markup components",
	Long: `Arbor evaluates directive attributes over HTML documents, loads markup
components and routes between pages by fragment.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("config", "", "Configuration file (default arbor.yaml when present)")
	f.String("components", "", "Directory holding the document and component markup")
	f.String("document", "", "Document locator")
	f.String("outlet", "", "Selector of the element views mount into")
	f.String("evaluator", "", "Directive expression language: js or expr")
	f.String("store", "", "Context store backend: memory, file, redis or bolt")
	f.String("base-url", "", "Retrieve markup over HTTP from this origin first")
	f.String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig reads the configuration file and layers the changed flags over it.
func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	overrides := map[string]*string{
		"components": &cfg.Components,
		"document":   &cfg.Document,
		"outlet":     &cfg.Outlet,
		"evaluator":  &cfg.Evaluator,
		"store":      &cfg.Store.Backend,
		"base-url":   &cfg.BaseURL,
		"log-level":  &cfg.LogLevel,
	}
	for name, dst := range overrides {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	return logging.New(level), nil
}
