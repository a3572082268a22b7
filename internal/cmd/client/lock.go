package client

import (
	"github.com/spf13/cobra"
)

// NewLockCommand builds the `lock` command group.
func NewLockCommand(baseURL BaseURLFunc) *cobra.Command {
	lockCmd := &cobra.Command{Use: "lock", Short: "Advisory lock operations"}

	acquireCmd := &cobra.Command{
		Use:   "acquire <key>",
		Short: "Acquire a lock and print its token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttlMs, _ := cmd.Flags().GetInt64("ttl-ms")
			return postJSON(baseURL, "/v1/locks/acquire", map[string]any{
				"key":   args[0],
				"ttlMs": ttlMs,
			})
		},
	}
	acquireCmd.Flags().Int64("ttl-ms", 30_000, "Lock TTL in milliseconds")
	lockCmd.AddCommand(acquireCmd)

	releaseCmd := &cobra.Command{
		Use:   "release <key> <token>",
		Short: "Release a held lock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON(baseURL, "/v1/locks/release", map[string]any{
				"key":   args[0],
				"token": args[1],
			})
		},
	}
	lockCmd.AddCommand(releaseCmd)

	extendCmd := &cobra.Command{
		Use:   "extend <key> <token>",
		Short: "Extend a held lock's TTL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttlMs, _ := cmd.Flags().GetInt64("ttl-ms")
			return postJSON(baseURL, "/v1/locks/extend", map[string]any{
				"key":   args[0],
				"token": args[1],
				"ttlMs": ttlMs,
			})
		},
	}
	extendCmd.Flags().Int64("ttl-ms", 30_000, "New TTL in milliseconds")
	lockCmd.AddCommand(extendCmd)

	return lockCmd
}
