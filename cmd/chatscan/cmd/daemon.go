package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/corey/chatscan/internal/adapters/socket"
	"github.com/corey/chatscan/internal/app"
	"github.com/corey/chatscan/internal/logger"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the chatscan daemon",
	Long: "The daemon keeps sessions in memory, serves the CLI over a Unix socket and\n" +
		"the dashboard plus JSON API over HTTP on localhost.",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the foreground",
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	RunE:  runDaemonStop,
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sockPath := socket.SocketPath(cfg.Store.DBPath)

	client := socket.NewClient(sockPath)
	if client.Ping() {
		fmt.Println("⚡ daemon already running")
		return nil
	}

	paths := app.NewPaths(cfg.Store.DBPath)
	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(paths.DaemonLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open daemon log: %w", err)
	}
	defer logFile.Close()
	log := logger.NewWithWriter("chatscan-daemon", io.MultiWriter(os.Stdout, logFile), cfg.Log.Level)

	a, err := app.NewFromConfig(cfg, log)
	if err != nil {
		if isDBLockError(err) {
			return fmt.Errorf("%s", diagnoseDBLock(cfg.Store.DBPath))
		}
		return fmt.Errorf("init: %w", err)
	}

	if err := a.Start(); err != nil {
		a.Close()
		return err
	}
	if err := os.WriteFile(paths.PIDFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		log.Warn().Err(err).Msg("write pid file")
	}
	log.Info().
		Str("socket", sockPath).
		Str("http", a.WebServer.URL()).
		Str("corpus", a.Sources.Name).
		Msg("daemon started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-a.Server.ShutdownCh():
	}

	log.Info().Msg("shutting down")
	err = a.Stop()
	paths.CleanEphemeral()
	return err
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := socket.NewClient(socket.SocketPath(cfg.Store.DBPath))

	if !client.Ping() {
		fmt.Println("⚡ daemon is not running")
		return nil
	}

	if err := client.Shutdown(); err != nil {
		return err
	}

	fmt.Println("⚡ daemon stopped")
	return nil
}
