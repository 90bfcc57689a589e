package drf

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/corey/chatscan/internal/ports"
)

type streamerJSON struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// ListStreamers implements ports.Directory. Results are sorted by display
// name, case-insensitively.
func (c *Client) ListStreamers(ctx context.Context) ([]ports.Streamer, error) {
	body, err := c.get(ctx, "/streamers/", nil)
	if err != nil {
		return nil, err
	}
	rows, err := decodeList[streamerJSON](body)
	if err != nil {
		return nil, fmt.Errorf("decode streamers: %w", err)
	}

	out := make([]ports.Streamer, 0, len(rows))
	for _, r := range rows {
		if r.ID == "" {
			continue
		}
		name := r.DisplayName
		if name == "" {
			name = r.Login
		}
		out = append(out, ports.Streamer{ID: r.ID, Login: r.Login, DisplayName: name})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].DisplayName) < strings.ToLower(out[j].DisplayName)
	})
	return out, nil
}
