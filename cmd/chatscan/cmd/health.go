package cmd

import (
	"fmt"
	"os"

	"github.com/corey/chatscan/internal/adapters/socket"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check daemon status",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := socket.NewClient(socket.SocketPath(cfg.Store.DBPath))

	if !client.Ping() {
		fmt.Println("⚡ chatscan daemon is not running")
		return nil
	}

	health, err := client.Health()
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(os.Stdout, health)
	}
	fmt.Print(formatHealth(*health))
	return nil
}
