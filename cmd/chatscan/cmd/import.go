package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/corey/chatscan/internal/adapters/sqlite"
	"github.com/corey/chatscan/internal/adapters/tailer"
	"github.com/corey/chatscan/internal/config"
	"github.com/spf13/cobra"
)

var (
	importDB     string
	importFollow bool
)

var importCmd = &cobra.Command{
	Use:   "import <dump.jsonl|->",
	Short: "Load a JSONL chat dump into the local SQLite mirror",
	Long: "Reads one comment per line, in the archive API's row format, into the mirror\n" +
		"used by corpus.driver=sqlite. Re-importing a message replaces it.",
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importDB, "db", "", "mirror database (default corpus.sqlite_path)")
	importCmd.Flags().BoolVarP(&importFollow, "follow", "f", false, "keep importing lines appended to the dump until interrupted")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dbPath := importDB
	if dbPath == "" {
		dbPath = cfg.Corpus.SQLitePath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}

	if importFollow && args[0] == "-" {
		return fmt.Errorf("--follow needs a file, not stdin")
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if importFollow {
		return followImport(ctx, cfg, store, args[0])
	}

	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	stats, err := store.Import(ctx, in)
	if err != nil {
		return err
	}
	recordings, messages, err := store.Counts(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(os.Stdout, map[string]int{
			"imported":   stats.Messages,
			"skipped":    stats.Skipped,
			"recordings": recordings,
			"messages":   messages,
		})
	}
	fmt.Printf("%s⚡ imported %d messages%s (%d skipped)\n", colorBold, stats.Messages, colorReset, stats.Skipped)
	fmt.Printf("  %s: %d recordings, %d messages\n", dbPath, recordings, messages)
	return nil
}

// followImport replays the dump, then imports each batch of appended lines
// until ctx is done.
func followImport(ctx context.Context, cfg *config.Config, store *sqlite.Store, path string) error {
	log := cliLogger(cfg)
	t := tailer.New(tailer.Config{
		Path:      path,
		FromStart: true,
		OnBatch: func(lines [][]byte) error {
			data := append(bytes.Join(lines, []byte("\n")), '\n')
			stats, err := store.Import(ctx, bytes.NewReader(data))
			if err != nil {
				return err
			}
			fmt.Printf("⚡ imported %d messages (%d skipped)\n", stats.Messages, stats.Skipped)
			return nil
		},
		OnError: func(err error) {
			if ctx.Err() == nil {
				log.Warn().Err(err).Str("file", path).Msg("follow import")
			}
		},
	})
	t.Start()
	fmt.Printf("⚡ following %s (ctrl-c to stop)\n", path)
	<-ctx.Done()
	t.Stop()
	return nil
}
