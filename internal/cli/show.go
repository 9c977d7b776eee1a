package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vault-rebalancer/internal/app"
)

var (
	showLimit   int
	showActions bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent reasoning records or rebalance actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:   showLimit,
			Actions: showActions,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of records to display")
	showCmd.Flags().BoolVar(&showActions, "actions", false, "Show rebalance actions instead of reasoning records")
}
