package drf

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/corey/chatscan/internal/ports"
)

// commentJSON is one row of /comments/. Nullable columns are pointers.
type commentJSON struct {
	ID             string  `json:"id"`
	VideoID        string  `json:"video_id"`
	VideoTitle     *string `json:"video_title"`
	VideoStreamer  *string `json:"video_streamer"`
	VideoCreatedAt *string `json:"video_created_at"`
	DisplayName    *string `json:"commenter_display_name"`
	Login          *string `json:"commenter_login"`
	Offset         *int    `json:"content_offset_seconds"`
	Message        *string `json:"message"`
}

type commentPage struct {
	Count   int           `json:"count"`
	Next    *string       `json:"next"`
	Results []commentJSON `json:"results"`
}

// Time layouts DRF emits for DateTimeField, with and without a zone.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07:00",
}

func parseTime(s *string) time.Time {
	if s == nil || *s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// toMessage converts a row. Rows without an id or recording id are malformed
// and reported as !ok.
func (c commentJSON) toMessage() (ports.Message, bool) {
	if c.ID == "" || c.VideoID == "" {
		return ports.Message{}, false
	}
	author := deref(c.DisplayName)
	if author == "" {
		author = deref(c.Login)
	}
	offset := 0
	if c.Offset != nil {
		offset = *c.Offset
	}
	return ports.Message{
		ID:                 c.ID,
		Author:             author,
		Text:               deref(c.Message),
		Offset:             offset,
		RecordingID:        c.VideoID,
		RecordingTitle:     strings.TrimSpace(deref(c.VideoTitle)),
		RecordingOwner:     deref(c.VideoStreamer),
		RecordingCreatedAt: parseTime(c.VideoCreatedAt),
	}, true
}

func toMessages(rows []commentJSON) []ports.Message {
	out := make([]ports.Message, 0, len(rows))
	for _, r := range rows {
		if m, ok := r.toMessage(); ok {
			out = append(out, m)
		}
	}
	return out
}

// FetchPage implements ports.PageSource.
//
// A 404 "Invalid page" (the page is past the end) is an empty final page,
// not an error.
func (c *Client) FetchPage(ctx context.Context, filter ports.Filter, page, pageSize int) (ports.Page, error) {
	params := map[string]string{
		"page":      itoa(page),
		"page_size": itoa(pageSize),
	}
	if !filter.IsZero() {
		params["video__streamer"] = filter.SourceOwnerID
	}

	body, err := c.get(ctx, "/comments/", params)
	if err != nil {
		if isInvalidPage(err) {
			return ports.Page{Messages: []ports.Message{}}, nil
		}
		return ports.Page{}, err
	}

	var p commentPage
	if err := json.Unmarshal(body, &p); err != nil {
		return ports.Page{}, fmt.Errorf("decode comments page %d: %w", page, err)
	}
	return ports.Page{
		Messages: toMessages(p.Results),
		HasNext:  p.Next != nil && *p.Next != "",
	}, nil
}

// FetchContext implements ports.ContextSource: the messages of one recording
// between offset-30s and offset+120s, ascending by offset.
func (c *Client) FetchContext(ctx context.Context, recordingID string, offset int) ([]ports.Message, error) {
	body, err := c.get(ctx, "/comments/context/", map[string]string{
		"video_id":      recordingID,
		"target_offset": itoa(offset),
	})
	if err != nil {
		return nil, err
	}
	rows, err := decodeList[commentJSON](body)
	if err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	return toMessages(rows), nil
}
