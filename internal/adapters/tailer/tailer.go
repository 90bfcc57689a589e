// Package tailer follows a growing JSONL file, such as a chat dump that a
// logger keeps appending to, and hands complete new lines to a callback in
// batches. A trailing line without its newline is held back until it is
// finished.
package tailer

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"sync"
	"time"
)

// DefaultPollInterval is how often the file is checked for new data.
const DefaultPollInterval = 500 * time.Millisecond

// Tailer polls one file and emits new complete lines.
//
// Thread-safe: Start/Stop can be called from any goroutine.
type Tailer struct {
	path         string
	pollInterval time.Duration
	onBatch      func(lines [][]byte) error
	onError      func(error)

	mu     sync.Mutex
	offset int64

	done    chan struct{}
	started chan struct{} // closed after the first read attempt
	wg      sync.WaitGroup
}

// Config holds parameters for creating a Tailer.
type Config struct {
	// Path is the file to follow. It may not exist yet.
	Path string

	// FromStart replays existing content. Otherwise tailing begins at the
	// current end of the file.
	FromStart bool

	// PollInterval is how often to check for new lines. Default 500ms.
	PollInterval time.Duration

	// OnBatch receives the non-empty lines read in one poll, newline
	// stripped. Must be non-nil. A returned error goes to OnError; the
	// lines are not redelivered.
	OnBatch func(lines [][]byte) error

	// OnError is called for read and batch errors. Optional.
	OnError func(error)
}

// New creates a Tailer. Does not start tailing until Start() is called.
func New(cfg Config) *Tailer {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := &Tailer{
		path:         cfg.Path,
		pollInterval: interval,
		onBatch:      cfg.OnBatch,
		onError:      cfg.OnError,
		done:         make(chan struct{}),
		started:      make(chan struct{}),
	}
	if !cfg.FromStart {
		if info, err := os.Stat(cfg.Path); err == nil {
			t.offset = info.Size()
		}
	}
	return t
}

// Start begins the tailing loop in a background goroutine.
func (t *Tailer) Start() {
	t.wg.Add(1)
	go t.loop()
}

// Stop terminates the tailing loop and waits for it to finish.
// Safe to call multiple times.
func (t *Tailer) Stop() {
	t.mu.Lock()
	select {
	case <-t.done:
		t.mu.Unlock()
		return
	default:
		close(t.done)
	}
	t.mu.Unlock()
	t.wg.Wait()
}

// Offset returns the number of bytes consumed so far.
func (t *Tailer) Offset() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offset
}

// Started returns a channel that closes after the first poll completes.
func (t *Tailer) Started() <-chan struct{} {
	return t.started
}

func (t *Tailer) loop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	t.readNewLines()
	close(t.started)

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.readNewLines()
		}
	}
}

func (t *Tailer) readNewLines() {
	f, err := os.Open(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.fail(err)
		}
		return // not created yet
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		t.fail(err)
		return
	}

	t.mu.Lock()
	offset := t.offset
	t.mu.Unlock()

	if info.Size() < offset {
		// truncated or replaced: start over
		offset = 0
	}
	if info.Size() == offset {
		return
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		t.fail(err)
		return
	}

	reader := bufio.NewReaderSize(f, 1024*1024)
	var batch [][]byte
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			// a partial last line waits for its newline
			break
		}
		offset += int64(len(line))
		if line = bytes.TrimSpace(trimNewline(line)); len(line) > 0 {
			batch = append(batch, line)
		}
	}

	t.mu.Lock()
	t.offset = offset
	t.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := t.onBatch(batch); err != nil {
		t.fail(err)
	}
}

func (t *Tailer) fail(err error) {
	if t.onError != nil {
		t.onError(err)
	}
}

// trimNewline removes trailing \n and \r\n from a line.
func trimNewline(line []byte) []byte {
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line
}
