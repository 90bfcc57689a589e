// Package drf reads the chat corpus from the archive's REST API (a Django
// REST Framework service). It implements ports.PageSource,
// ports.ContextSource and ports.Directory over resty.
//
// The API pages comments newest recording first, then by ascending offset
// within a recording, which is the stable order the scan controller needs.
package drf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	BaseURL   string        // e.g. http://localhost:8000/api
	Timeout   time.Duration // per request; 0 = DefaultTimeout
	UserAgent string
}

// Client talks to the archive API.
type Client struct {
	http *resty.Client
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("api status %d", e.Code)
	}
	return fmt.Sprintf("api status %d: %s", e.Code, body)
}

// StatusCode returns the HTTP status code.
func (e *StatusError) StatusCode() int { return e.Code }

// New creates a Client for cfg.BaseURL.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	if cfg.UserAgent != "" {
		c.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Client{http: c}
}

// get issues a GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	return resp.Body(), nil
}

// isInvalidPage reports the 404 DRF's PageNumberPagination returns for a
// page past the end.
func isInvalidPage(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == http.StatusNotFound && strings.Contains(strings.ToLower(se.Body), "invalid page")
}

// decodeList accepts either a bare JSON array or a paginated envelope
// with a "results" array.
func decodeList[T any](body []byte) ([]T, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var out []T
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var env struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return env.Results, nil
}

func itoa(n int) string { return strconv.Itoa(n) }
