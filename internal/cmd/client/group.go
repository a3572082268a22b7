package client

import (
	"net/url"

	"github.com/spf13/cobra"
)

// NewGroupCommand builds the `group` command group: create, claim, ack, and
// pending against the HTTP API.
func NewGroupCommand(baseURL BaseURLFunc) *cobra.Command {
	groupCmd := &cobra.Command{Use: "group", Short: "Consumer group operations"}

	createCmd := &cobra.Command{
		Use:   "create <topic> <group>",
		Short: "Create a consumer group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, _ := cmd.Flags().GetString("start")
			return postJSON(baseURL, "/v1/groups/create", map[string]any{
				"topic": args[0],
				"group": args[1],
				"start": start,
			})
		},
	}
	createCmd.Flags().String("start", "0", "Start ID: 0 for the beginning, a record ID for the tail position")
	groupCmd.AddCommand(createCmd)

	claimCmd := &cobra.Command{
		Use:   "claim <topic> <group> <consumer>",
		Short: "Claim records for a consumer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			blockMs, _ := cmd.Flags().GetInt64("block-ms")
			return postJSON(baseURL, "/v1/groups/claim", map[string]any{
				"topic":    args[0],
				"group":    args[1],
				"consumer": args[2],
				"count":    count,
				"blockMs":  blockMs,
			})
		},
	}
	claimCmd.Flags().Int("count", 1, "Max records to claim")
	claimCmd.Flags().Int64("block-ms", 0, "Wait this long for new records when none are available")
	groupCmd.AddCommand(claimCmd)

	ackCmd := &cobra.Command{
		Use:   "ack <topic> <group> <id>",
		Short: "Acknowledge a claimed record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON(baseURL, "/v1/groups/ack", map[string]any{
				"topic": args[0],
				"group": args[1],
				"id":    args[2],
			})
		},
	}
	groupCmd.AddCommand(ackCmd)

	pendingCmd := &cobra.Command{
		Use:   "pending <topic> <group>",
		Short: "List unacknowledged entries",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"topic": {args[0]}, "group": {args[1]}}
			return getJSON(baseURL, "/v1/groups/pending?"+q.Encode())
		},
	}
	groupCmd.AddCommand(pendingCmd)

	return groupCmd
}
