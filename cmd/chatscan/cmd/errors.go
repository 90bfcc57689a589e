package cmd

import (
	"fmt"
	"os"

	"github.com/corey/chatscan/internal/adapters/bbolt"
	"github.com/corey/chatscan/internal/adapters/socket"
)

// isDBLockError reports whether err comes from bbolt failing to take the
// session database's file lock.
func isDBLockError(err error) bool {
	return err != nil && bbolt.IsLocked(err)
}

// diagnoseDBLock explains a lock failure: running daemon, stale socket, or
// some other holder.
func diagnoseDBLock(dbPath string) string {
	sockPath := socket.SocketPath(dbPath)
	client := socket.NewClient(sockPath)

	if client.Ping() {
		return "session database is locked by the running daemon\n" +
			"  → stop it first:  chatscan daemon stop\n" +
			"  → then retry your command"
	}

	if _, err := os.Stat(sockPath); err == nil {
		return fmt.Sprintf("session database is locked; daemon socket exists but is not responding\n"+
			"  → a previous daemon may have crashed\n"+
			"  → find the process:  ps aux | grep 'chatscan daemon'\n"+
			"  → kill it:           kill <PID>\n"+
			"  → clean up socket:   rm %s", sockPath)
	}

	return "session database is locked by another process\n" +
		"  → find the process:  ps aux | grep chatscan\n" +
		"  → kill it:           kill <PID>\n" +
		"  → then retry your command"
}
