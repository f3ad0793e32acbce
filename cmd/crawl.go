package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qfrontier/qfrontier/internal/app"
	"github.com/qfrontier/qfrontier/internal/config"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Starts a crawl",
		Long: `Starts a crawl from the configured seeds. Seed URLs passed as
arguments are added to the ones from the config file.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Crawler.Seeds = append(cfg.Crawler.Seeds, args...)

	application, err := app.Build(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	if err := application.Run(cmd.Context()); err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}
	return nil
}
