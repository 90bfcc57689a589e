package cmd

import (
	"context"
	"fmt"

	"github.com/corey/chatscan/internal/domain/session"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <session> <keyword-file>",
	Short: "Rescan a session whenever its keyword file is saved",
	Long: "Reads keywords from a file (one or more per line, comma separated, # comments)\n" +
		"and applies them to the session now and after every save. A save during a\n" +
		"running scan cancels it and starts over with the new keywords. Ctrl-C stops.",
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVarP(&linksFlag, "links", "l", false, "print a VOD link under every match")
}

func runWatch(cmd *cobra.Command, args []string) error {
	return withBackend(func(ctx context.Context, b backend) error {
		fmt.Printf("⚡ watching %s (ctrl-c to stop)\n", args[1])
		return b.WatchKeywords(ctx, args[0], args[1], func(st session.Status) {
			if jsonOutput {
				writeJSON(cmd.OutOrStdout(), st)
				return
			}
			fmt.Print(formatStatus(st, linksFlag))
		})
	})
}
