package client

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// NewTopicCommand builds the `topic` command group: append, read, list,
// create, trim, and subscribe against the HTTP API.
func NewTopicCommand(baseURL BaseURLFunc) *cobra.Command {
	topicCmd := &cobra.Command{Use: "topic", Short: "Topic operations"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(baseURL, "/v1/topics")
		},
	}
	topicCmd.AddCommand(listCmd)

	appendCmd := &cobra.Command{
		Use:   "append <topic> <key=value>...",
		Short: "Append a record",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(args[1:])
			if err != nil {
				return err
			}
			return postJSON(baseURL, "/v1/topics/append", map[string]any{
				"topic":  args[0],
				"fields": fields,
			})
		},
	}
	topicCmd.AddCommand(appendCmd)

	readCmd := &cobra.Command{
		Use:   "read <topic>",
		Short: "Read records from a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			limit, _ := cmd.Flags().GetInt("limit")
			return postJSON(baseURL, "/v1/topics/read", map[string]any{
				"topic": args[0],
				"from":  from,
				"to":    to,
				"limit": limit,
			})
		},
	}
	readCmd.Flags().String("from", "", "Start ID (inclusive, empty for beginning)")
	readCmd.Flags().String("to", "", "End ID (inclusive, empty for end)")
	readCmd.Flags().Int("limit", 100, "Max records")
	topicCmd.AddCommand(readCmd)

	createCmd := &cobra.Command{
		Use:   "create <topic>",
		Short: "Create a topic with a retention policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxLen, _ := cmd.Flags().GetInt64("max-len")
			ageMs, _ := cmd.Flags().GetInt64("retention-age-ms")
			return postJSON(baseURL, "/v1/topics/create", map[string]any{
				"topic":          args[0],
				"maxLen":         maxLen,
				"retentionAgeMs": ageMs,
			})
		},
	}
	createCmd.Flags().Int64("max-len", 0, "Keep at most this many records (0 = unlimited)")
	createCmd.Flags().Int64("retention-age-ms", 0, "Drop records older than this (0 = unlimited)")
	topicCmd.AddCommand(createCmd)

	trimCmd := &cobra.Command{
		Use:   "trim <topic>",
		Short: "Apply the topic's retention policy now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON(baseURL, "/v1/topics/trim", map[string]any{"topic": args[0]})
		},
	}
	topicCmd.AddCommand(trimCmd)

	subscribeCmd := &cobra.Command{
		Use:   "subscribe <topic>",
		Short: "Stream live records over SSE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			q := url.Values{"topic": {args[0]}}
			if filter != "" {
				q.Set("filter", filter)
			}
			resp, err := http.Get(baseURL() + "/v1/topics/subscribe?" + q.Encode())
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			scanner := bufio.NewScanner(resp.Body)
			for scanner.Scan() {
				line := scanner.Text()
				if strings.HasPrefix(line, "data: ") {
					fmt.Println(strings.TrimPrefix(line, "data: "))
				}
			}
			return scanner.Err()
		},
	}
	subscribeCmd.Flags().String("filter", "", "CEL filter expression")
	topicCmd.AddCommand(subscribeCmd)

	return topicCmd
}

// parseFields turns key=value arguments into a field map.
func parseFields(args []string) (map[string]string, error) {
	fields := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid field %q, expected key=value", arg)
		}
		fields[k] = v
	}
	return fields, nil
}
