package app

import (
	"os"
	"path/filepath"
)

// Paths holds all resolved filesystem paths under the data directory.
// All fields are pre-computed strings.
type Paths struct {
	Root string // data dir
	DB   string // sessions.db (bbolt)

	LogDir    string // log/
	DaemonLog string // log/daemon.log

	RunDir   string // run/
	PIDFile  string // run/daemon.pid
	PortFile string // run/http.port
}

// NewPaths derives every path from the session database location; its
// directory is the data directory.
func NewPaths(dbPath string) *Paths {
	root := filepath.Dir(dbPath)
	return &Paths{
		Root: root,
		DB:   dbPath,

		LogDir:    filepath.Join(root, "log"),
		DaemonLog: filepath.Join(root, "log", "daemon.log"),

		RunDir:   filepath.Join(root, "run"),
		PIDFile:  filepath.Join(root, "run", "daemon.pid"),
		PortFile: filepath.Join(root, "run", "http.port"),
	}
}

// EnsureDirs creates the data directory and its subdirectories. Idempotent.
func (p *Paths) EnsureDirs() error {
	for _, d := range []string{p.Root, p.LogDir, p.RunDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}

// CleanEphemeral removes ephemeral runtime files (PID file and port file).
// Called on clean daemon shutdown.
func (p *Paths) CleanEphemeral() {
	os.Remove(p.PIDFile)
	os.Remove(p.PortFile)
}
