package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command registering every client command
// group.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "strand",
		Short: "Strand client commands",
	}
	root.AddCommand(NewTopicCommand(baseURL))
	root.AddCommand(NewGroupCommand(baseURL))
	root.AddCommand(NewLockCommand(baseURL))
	root.AddCommand(NewRateCommand(baseURL))
	return root
}
