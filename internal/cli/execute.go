package cli

import (
	"os"

	"github.com/spf13/cobra"

	"vault-rebalancer/internal/app"
)

var (
	executeActionID int64
	executeKeyHex   string
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Submit a suggested rebalance action on chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		keyHex := executeKeyHex
		if keyHex == "" {
			keyHex = os.Getenv("REBALANCER_EXECUTOR_KEY")
		}

		opts := app.ExecuteOptions{
			ActionID:      executeActionID,
			PrivateKeyHex: keyHex,
		}

		return getApp().ExecuteAction(cmd.Context(), opts)
	},
}

func init() {
	executeCmd.Flags().Int64Var(&executeActionID, "action", 0, "ID of the suggested action to execute")
	executeCmd.Flags().StringVar(&executeKeyHex, "key", "", "Hex-encoded signing key (falls back to REBALANCER_EXECUTOR_KEY)")
}
