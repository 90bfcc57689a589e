package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var contextCmd = &cobra.Command{
	Use:   "context <recording-id> <offset>",
	Short: "Show the chat around a moment of a recording",
	Long: "Prints the messages from 30s before to 120s after offset. The offset is in\n" +
		"seconds or h:mm:ss, as printed next to every match.",
	Args: cobra.ExactArgs(2),
	RunE: runContext,
}

var streamersCmd = &cobra.Command{
	Use:   "streamers",
	Short: "List streamers, for use with search --streamer",
	Args:  cobra.NoArgs,
	RunE:  runStreamers,
}

// parseOffset accepts plain seconds, m:ss or h:mm:ss.
func parseOffset(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, fmt.Errorf("invalid offset %q", s)
		}
		total = total*60 + n
	}
	return total, nil
}

func runContext(cmd *cobra.Command, args []string) error {
	offset, err := parseOffset(args[1])
	if err != nil {
		return err
	}
	return withBackend(func(ctx context.Context, b backend) error {
		res, err := b.Context(ctx, args[0], offset)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(os.Stdout, res)
		}
		fmt.Print(formatContext(res))
		return nil
	})
}

func runStreamers(cmd *cobra.Command, args []string) error {
	return withBackend(func(ctx context.Context, b backend) error {
		res, err := b.Streamers(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(os.Stdout, res)
		}
		fmt.Print(formatStreamers(res))
		return nil
	})
}
