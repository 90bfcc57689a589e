package cmd

import (
	"os"

	"github.com/corey/chatscan/internal/config"
	"github.com/corey/chatscan/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "chatscan",
	Short: "chatscan: fuzzy keyword search over VOD chat",
	Long: "Scans archived chat page by page for approximate keyword matches, groups them by\n" +
		"recording, and resumes on demand. Talks to the daemon when it is running and\n" +
		"works in-process otherwise.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if jsonOutput || !isStdoutTTY() || os.Getenv("NO_COLOR") != "" {
			disableColor()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON instead of formatted output")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(moreCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(keywordsCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(streamersCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(importCmd)
}

// loadConfig reads the config file named by --config, or the default one.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// cliLogger writes human readable warnings to stderr. The daemon logs JSON.
func cliLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.Log.Level
	if level == "info" {
		level = "warn"
	}
	return logger.Console(os.Stderr, level).With().Str("service", "chatscan").Logger()
}
