package client

import (
	"github.com/spf13/cobra"
)

// NewRateCommand builds the `rate` command group.
func NewRateCommand(baseURL BaseURLFunc) *cobra.Command {
	rateCmd := &cobra.Command{Use: "rate", Short: "Rate limiter operations"}

	allowCmd := &cobra.Command{
		Use:   "allow <key>",
		Short: "Check and consume one event against a key's window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt64("limit")
			windowMs, _ := cmd.Flags().GetInt64("window-ms")
			return postJSON(baseURL, "/v1/rate/allow", map[string]any{
				"key":      args[0],
				"limit":    limit,
				"windowMs": windowMs,
			})
		},
	}
	allowCmd.Flags().Int64("limit", 100, "Events allowed per window")
	allowCmd.Flags().Int64("window-ms", 60_000, "Window length in milliseconds")
	rateCmd.AddCommand(allowCmd)

	return rateCmd
}
