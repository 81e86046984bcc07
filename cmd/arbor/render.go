package main

import (
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render [page]",
	Short: "Render a page headlessly and print the document",
	Long: `Opens the configured document, navigates to the page (home by default)
and writes the rendered markup to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		set, _ := cmd.Flags().GetStringToString("set")
		initial := domain.Context{}
		for k, v := range set {
			initial[k] = v
		}

		app, err := openApp(cmd.Context(), cfg, logger, initial)
		if err != nil {
			return err
		}
		defer closeQuietly(app)

		fragment := ""
		if len(args) == 1 {
			fragment = domain.PageFragment(args[0])
		}
		return app.RenderPage(cmd.Context(), cmd.OutOrStdout(), fragment)
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringToString("set", nil, "Context entries merged before rendering (key=value)")
}
