package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/corey/chatscan/internal/adapters/socket"
	"github.com/corey/chatscan/internal/app"
	"github.com/corey/chatscan/internal/config"
	"github.com/corey/chatscan/internal/domain/session"
	"github.com/spf13/cobra"
)

var shareCmd = &cobra.Command{
	Use:   "share <session>",
	Short: "Print a shareable query string for a session",
	Long: "Prints the keywords and streamer filter of a session as a query string. Anyone can\n" +
		"recreate the search with: chatscan open '<query>'. With the daemon running, a\n" +
		"dashboard URL is printed too.",
	Args: cobra.ExactArgs(1),
	RunE: runShare,
}

var openCmd = &cobra.Command{
	Use:   "open [query]",
	Short: "Recreate a shared search, or open the dashboard",
	Long: "With a query string or URL produced by share, starts a new session for it.\n" +
		"Without arguments, opens the web dashboard in your browser (daemon required).",
	Args: cobra.MaximumNArgs(1),
	RunE: runOpen,
}

func init() {
	openCmd.Flags().BoolVarP(&linksFlag, "links", "l", false, "print a VOD link under every match")
}

// dashboardURL returns the daemon's web address, or "" if it is not serving.
func dashboardURL(cfg *config.Config) string {
	if !socket.NewClient(socket.SocketPath(cfg.Store.DBPath)).Ping() {
		return ""
	}
	data, err := os.ReadFile(app.NewPaths(cfg.Store.DBPath).PortFile)
	if err != nil {
		return ""
	}
	return "http://localhost:" + strings.TrimSpace(string(data))
}

func runShare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return withBackend(func(ctx context.Context, b backend) error {
		st, err := b.Session(args[0])
		if err != nil {
			return err
		}
		q := session.EncodeQuery(st.Keywords, st.SourceFilter)
		url := ""
		if base := dashboardURL(cfg); base != "" {
			url = base + "/?" + q
		}
		if jsonOutput {
			return writeJSON(os.Stdout, map[string]string{"query": q, "url": url})
		}
		fmt.Println(q)
		if url != "" {
			fmt.Println(url)
		}
		return nil
	})
}

func runOpen(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return openDashboard()
	}
	kws, filter, err := session.DecodeQuery(args[0])
	if err != nil {
		return err
	}
	if len(kws) == 0 {
		return fmt.Errorf("query has no keywords")
	}
	return withBackend(func(ctx context.Context, b backend) error {
		st, err := b.CreateSession(ctx, kws, filter)
		if err != nil {
			return err
		}
		return printStatus(st)
	})
}

func openDashboard() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	url := dashboardURL(cfg)
	if url == "" {
		return fmt.Errorf("dashboard not available. Start the daemon with: chatscan daemon start")
	}

	var openErr error
	switch runtime.GOOS {
	case "linux":
		openErr = exec.Command("xdg-open", url).Start()
	case "darwin":
		openErr = exec.Command("open", url).Start()
	default:
		openErr = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}

	if openErr != nil {
		fmt.Printf("⚡ dashboard: %s\n", url)
		fmt.Printf("  (could not open browser: %v)\n", openErr)
		return nil
	}
	fmt.Printf("⚡ opening %s\n", url)
	return nil
}
