// Package cmd defines and implements the CLI commands for the
// qfrontier executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qfrontier",
		Short: "A self-tuning crawl frontier",
		Long: `qfrontier crawls breadth-first at boot and greedily once it has
learned which links pay off. A temporal-difference value estimator
scores every queued link from the experience of completed fetches, and
the frontier reorders itself as those scores firm up.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults plus QFRONTIER_* env when omitted)")
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
