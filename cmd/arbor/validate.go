package main

import (
	"fmt"

	"github.com/aretw0/arbor/internal/adapters/file"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/exprlang"
	"github.com/aretw0/arbor/pkg/script"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the component markup for consistency",
	Long: `Crawls the markup reachable from the document through page links and
component loads, and reports missing components, malformed directives and
expressions that do not compile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}

		var compiler validator.Compiler = script.New()
		if cfg.Evaluator == config.EvaluatorExpr {
			compiler = exprlang.New()
		}

		fetcher := file.NewFetcher(cfg.Components)
		if err := validator.ValidateComponents(cmd.Context(), fetcher, compiler, cfg.Document); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Components are valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
