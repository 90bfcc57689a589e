package cmd

import (
	"fmt"
	"os"

	"github.com/corey/chatscan/internal/adapters/socket"
	"github.com/corey/chatscan/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
	Long: "Shows the config file, session database, socket path and daemon status, then\n" +
		"every effective setting (file plus CHATSCAN_* environment overrides).",
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one effective setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting in the config file",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every setting key",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(os.Stdout, cfg)
	}

	sockPath := socket.SocketPath(cfg.Store.DBPath)
	daemonStatus := fmt.Sprintf("%s✗ not running%s", colorYellow, colorReset)
	if socket.NewClient(sockPath).Ping() {
		daemonStatus = fmt.Sprintf("%s✓ running%s", colorGreen, colorReset)
	}

	fmt.Printf("%s⚡ chatscan config%s\n", colorBold, colorReset)
	fmt.Printf("  File:       %s\n", resolvedConfigPath())
	fmt.Printf("  Sessions:   %s\n", cfg.Store.DBPath)
	fmt.Printf("  Socket:     %s\n", sockPath)
	fmt.Printf("  Daemon:     %s\n", daemonStatus)
	if url := dashboardURL(cfg); url != "" {
		fmt.Printf("  Dashboard:  %s\n", url)
	}
	fmt.Println()
	for _, key := range config.ListKeys() {
		v, _ := cfg.Get(key)
		fmt.Printf("  %s%-22s%s %s\n", colorCyan, key, colorReset, v)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	v, err := cfg.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path := resolvedConfigPath()
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(args[0], args[1]); err != nil {
		return err
	}
	if err := cfg.SaveToFile(path); err != nil {
		return err
	}
	fmt.Printf("⚡ %s = %s (%s)\n", args[0], args[1], path)
	return nil
}

func runConfigList(cmd *cobra.Command, args []string) error {
	for _, key := range config.ListKeys() {
		fmt.Println(key)
	}
	return nil
}
