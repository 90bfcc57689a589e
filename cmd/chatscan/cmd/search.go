package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corey/chatscan/internal/domain/session"
	"github.com/spf13/cobra"
)

var (
	streamerFlag string
	linksFlag    bool
	morePages    int
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword> [keyword...]",
	Short: "Start a new search session",
	Long: "Creates a session for the given keywords and scans the first batch of pages.\n" +
		"Keywords may also be comma separated: chatscan search \"gg, pog\".",
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var moreCmd = &cobra.Command{
	Use:   "more <session>",
	Short: "Scan more pages of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runMore,
}

var restartCmd = &cobra.Command{
	Use:   "restart <session>",
	Short: "Discard results and rescan from the first page",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestart,
}

var showCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Print a session's results without scanning",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List search sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

var rmCmd = &cobra.Command{
	Use:   "rm <session> [session...]",
	Short: "Delete search sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRm,
}

var keywordsCmd = &cobra.Command{
	Use:   "keywords <session> <keyword> [keyword...]",
	Short: "Replace a session's keywords and rescan",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runKeywords,
}

var filterCmd = &cobra.Command{
	Use:   "filter <session> [streamer-id]",
	Short: "Restrict a session to one streamer (omit the id to clear) and rescan",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runFilter,
}

func init() {
	searchCmd.Flags().StringVarP(&streamerFlag, "streamer", "s", "", "only scan recordings of this streamer id")
	for _, c := range []*cobra.Command{searchCmd, moreCmd, restartCmd, showCmd, keywordsCmd, filterCmd} {
		c.Flags().BoolVarP(&linksFlag, "links", "l", false, "print a VOD link under every match")
	}
	moreCmd.Flags().IntVarP(&morePages, "pages", "n", 1, "continue this many times (stops early at the end of chat)")
}

// withBackend loads config, opens a backend and runs fn with a context
// cancelled on SIGINT/SIGTERM.
func withBackend(fn func(ctx context.Context, b backend) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := openBackend(cfg, cliLogger(cfg))
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, b)
}

func printStatus(st session.Status) error {
	if jsonOutput {
		return writeJSON(os.Stdout, st)
	}
	fmt.Print(formatStatus(st, linksFlag))
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	var kws []string
	for _, a := range args {
		kws = append(kws, session.ParseKeywordList(a)...)
	}
	if len(kws) == 0 {
		return fmt.Errorf("no keywords given")
	}
	return withBackend(func(ctx context.Context, b backend) error {
		st, err := b.CreateSession(ctx, kws, streamerFlag)
		if err != nil {
			return err
		}
		return printStatus(st)
	})
}

func runMore(cmd *cobra.Command, args []string) error {
	if morePages < 1 {
		return fmt.Errorf("--pages must be at least 1")
	}
	return withBackend(func(ctx context.Context, b backend) error {
		var st session.Status
		var err error
		for i := 0; i < morePages; i++ {
			st, err = b.Continue(ctx, args[0])
			if err != nil {
				return err
			}
			if !st.CanContinue || st.LastError != "" {
				break
			}
		}
		return printStatus(st)
	})
}

func runRestart(cmd *cobra.Command, args []string) error {
	return withBackend(func(ctx context.Context, b backend) error {
		st, err := b.Restart(ctx, args[0])
		if err != nil {
			return err
		}
		return printStatus(st)
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	return withBackend(func(ctx context.Context, b backend) error {
		st, err := b.Session(args[0])
		if err != nil {
			return err
		}
		return printStatus(st)
	})
}

func runSessions(cmd *cobra.Command, args []string) error {
	return withBackend(func(ctx context.Context, b backend) error {
		list, err := b.Sessions()
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(os.Stdout, list)
		}
		fmt.Print(formatSessions(list, time.Now()))
		return nil
	})
}

func runRm(cmd *cobra.Command, args []string) error {
	return withBackend(func(ctx context.Context, b backend) error {
		for _, id := range args {
			if err := b.Delete(id); err != nil {
				return err
			}
			fmt.Printf("⚡ removed %s\n", id)
		}
		return nil
	})
}

func runKeywords(cmd *cobra.Command, args []string) error {
	var kws []string
	for _, a := range args[1:] {
		kws = append(kws, session.ParseKeywordList(a)...)
	}
	return withBackend(func(ctx context.Context, b backend) error {
		st, err := b.SetKeywords(ctx, args[0], kws)
		if err != nil {
			return err
		}
		return printStatus(st)
	})
}

func runFilter(cmd *cobra.Command, args []string) error {
	filter := ""
	if len(args) == 2 {
		filter = args[1]
	}
	return withBackend(func(ctx context.Context, b backend) error {
		st, err := b.SetFilter(ctx, args[0], filter)
		if err != nil {
			return err
		}
		return printStatus(st)
	})
}
