package socket

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/corey/chatscan/internal/domain/session"
)

// ScanTimeout bounds requests that may run a scan pass on the daemon.
const ScanTimeout = 10 * time.Minute

// Client connects to the chatscan daemon over a Unix socket.
type Client struct {
	sockPath string
}

// NewClient creates a client that will connect to the given socket path.
func NewClient(sockPath string) *Client {
	return &Client{sockPath: sockPath}
}

// Health sends a health check request.
func (c *Client) Health() (*HealthResult, error) {
	var result HealthResult
	if err := c.do(MethodHealth, nil, &result, 5*time.Second); err != nil {
		return nil, err
	}
	return &result, nil
}

// Shutdown sends a shutdown request to the daemon.
func (c *Client) Shutdown() error {
	return c.do(MethodShutdown, nil, nil, 5*time.Second)
}

// CreateSession creates a session and runs its first scan pass.
func (c *Client) CreateSession(keywords []string, sourceFilter string) (*session.Status, error) {
	return c.status(MethodSessionCreate, CreateParams{Keywords: keywords, SourceFilter: sourceFilter}, ScanTimeout)
}

// Session fetches a session's current status.
func (c *Client) Session(id string) (*session.Status, error) {
	return c.status(MethodSessionGet, SessionParams{ID: id}, 5*time.Second)
}

// Sessions lists known sessions.
func (c *Client) Sessions() (*SessionListResult, error) {
	var result SessionListResult
	if err := c.do(MethodSessionList, nil, &result, 5*time.Second); err != nil {
		return nil, err
	}
	return &result, nil
}

// Continue scans one more page for a session.
func (c *Client) Continue(id string) (*session.Status, error) {
	return c.status(MethodSessionContinue, SessionParams{ID: id}, ScanTimeout)
}

// Restart rescans a session from page 1.
func (c *Client) Restart(id string) (*session.Status, error) {
	return c.status(MethodSessionRestart, SessionParams{ID: id}, ScanTimeout)
}

// SetKeywords replaces a session's keywords and rescans.
func (c *Client) SetKeywords(id string, keywords []string) (*session.Status, error) {
	return c.status(MethodSessionKeywords, KeywordsParams{ID: id, Keywords: keywords}, ScanTimeout)
}

// SetFilter changes a session's streamer filter and rescans.
func (c *Client) SetFilter(id, sourceFilter string) (*session.Status, error) {
	return c.status(MethodSessionFilter, FilterParams{ID: id, SourceFilter: sourceFilter}, ScanTimeout)
}

// DeleteSession removes a session.
func (c *Client) DeleteSession(id string) error {
	return c.do(MethodSessionDelete, SessionParams{ID: id}, nil, 5*time.Second)
}

// Context fetches the chat around a message.
func (c *Client) Context(recordingID string, offset int) (*ContextResult, error) {
	var result ContextResult
	if err := c.do(MethodContext, ContextParams{RecordingID: recordingID, Offset: offset}, &result, time.Minute); err != nil {
		return nil, err
	}
	return &result, nil
}

// Streamers lists recording owners.
func (c *Client) Streamers() (*StreamersResult, error) {
	var result StreamersResult
	if err := c.do(MethodStreamers, nil, &result, time.Minute); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ping checks if the daemon is reachable.
func (c *Client) Ping() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (c *Client) status(method string, params interface{}, timeout time.Duration) (*session.Status, error) {
	var st session.Status
	if err := c.do(method, params, &st, timeout); err != nil {
		return nil, err
	}
	return &st, nil
}

// do performs a call and decodes the result into out (nil to discard).
func (c *Client) do(method string, params interface{}, out interface{}, timeout time.Duration) error {
	resp, err := c.callWithTimeout(Request{ID: "1", Method: method, Params: params}, timeout)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	// Re-marshal the generic result to decode into the typed target
	resultJSON, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := json.Unmarshal(resultJSON, out); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

func (c *Client) callWithTimeout(req Request, timeout time.Duration) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.sockPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	// Set deadline for the whole request/response
	conn.SetDeadline(time.Now().Add(timeout))

	// Send request
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	// Read response
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 16*1024*1024), 16*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return nil, fmt.Errorf("empty response")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("server error: %s", resp.Error)
	}
	return &resp, nil
}
