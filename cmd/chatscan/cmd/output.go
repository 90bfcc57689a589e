package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/corey/chatscan/internal/adapters/ahocorasick"
	"github.com/corey/chatscan/internal/adapters/socket"
	"github.com/corey/chatscan/internal/domain/session"
	"github.com/corey/chatscan/internal/ports"
)

// ANSI color codes for terminal output. Cleared when stdout is not a TTY.
var (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorCyan    = "\033[36m"
	colorMagenta = "\033[35m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorRed     = "\033[31m"
	colorGray    = "\033[90m"
)

func disableColor() {
	colorReset, colorBold, colorCyan, colorMagenta = "", "", "", ""
	colorGreen, colorYellow, colorRed, colorGray = "", "", "", ""
}

// formatOffset renders seconds as h:mm:ss.
func formatOffset(sec int) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", sec/3600, sec%3600/60, sec%60)
}

// vodLink points at the recording on Twitch, seeked to offset.
func vodLink(recordingID string, offset int) string {
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf("https://www.twitch.tv/videos/%s?t=%dh%dm%ds",
		url.PathEscape(recordingID), offset/3600, offset%3600/60, offset%60)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatStatus renders a session's results grouped by recording.
//
//	⚡ 12 matches │ 3 recordings │ gg, pog │ 50 pages
//	  VOD title  owner  2024-03-01
//	    0:12:34  author: text  gg 92%
//	             https://www.twitch.tv/videos/...
func formatStatus(st session.Status, links bool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s⚡ %d matches%s │ %d recordings │ %s",
		colorBold, st.TotalMatches, colorReset, len(st.Groups), strings.Join(st.Keywords, ", ")))
	if st.SourceFilter != "" {
		sb.WriteString(fmt.Sprintf(" │ streamer %s", st.SourceFilter))
	}
	sb.WriteString(fmt.Sprintf(" │ %d pages\n", st.Cursor.LastScannedPage))
	sb.WriteString(fmt.Sprintf("  %ssession %s%s\n", colorGray, st.ID, colorReset))

	if st.LastError != "" {
		sb.WriteString(fmt.Sprintf("  %s✗ %s%s\n", colorRed, st.LastError, colorReset))
	}
	if st.Scanning && st.Progress != "" {
		sb.WriteString(fmt.Sprintf("  %s%s%s\n", colorYellow, st.Progress, colorReset))
	}

	hl := ahocorasick.NewHighlighter(st.Keywords)
	for _, g := range st.Groups {
		sb.WriteString(formatGroupHeader(g))
		for _, m := range g.Matches {
			sb.WriteString(fmt.Sprintf("    %s%s%s  %s%s%s: %s  %s%s %d%%%s\n",
				colorCyan, formatOffset(m.Offset), colorReset,
				colorMagenta, m.Author, colorReset,
				hl.Highlight(m.Text, colorBold+colorYellow, colorReset),
				colorGreen, m.MatchedKeyword, int(m.Score*100+0.5), colorReset))
			if links {
				sb.WriteString(fmt.Sprintf("             %s%s%s\n", colorGray, vodLink(m.RecordingID, m.Offset), colorReset))
			}
		}
	}

	switch {
	case len(st.Keywords) == 0:
		sb.WriteString(fmt.Sprintf("%sno keywords; nothing to scan%s\n", colorGray, colorReset))
	case st.CanContinue:
		sb.WriteString(fmt.Sprintf("%smore pages available → chatscan more %s%s\n", colorGray, st.ID, colorReset))
	default:
		sb.WriteString(fmt.Sprintf("%send of chat reached%s\n", colorGray, colorReset))
	}
	return sb.String()
}

func formatGroupHeader(g ports.RecordingGroup) string {
	title := g.Title
	if title == "" {
		title = g.RecordingID
	}
	line := fmt.Sprintf("  %s%s%s", colorBold, title, colorReset)
	if g.Owner != "" {
		line += fmt.Sprintf("  %s%s%s", colorMagenta, g.Owner, colorReset)
	}
	if !g.CreatedAt.IsZero() {
		line += fmt.Sprintf("  %s", g.CreatedAt.Local().Format("2006-01-02"))
	}
	return line + "\n"
}

// formatSessions renders the session listing.
func formatSessions(list socket.SessionListResult, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ %d sessions%s\n", colorBold, list.Count, colorReset))
	for _, s := range list.Sessions {
		state := "more"
		switch {
		case s.Scanning:
			state = colorYellow + "scanning" + colorReset
		case s.LastError != "":
			state = colorRed + "error" + colorReset
		case s.Exhausted:
			state = "done"
		}
		sb.WriteString(fmt.Sprintf("  %s%s%s  %s  %d matches │ %d recordings │ %d pages │ %s │ %s\n",
			colorCyan, s.ID, colorReset,
			strings.Join(s.Keywords, ", "),
			s.TotalMatches, s.Recordings, s.PagesScanned, state,
			formatAge(now.Sub(s.UpdatedAt))))
	}
	return sb.String()
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// formatContext renders the chat around a message, marking the target line.
func formatContext(c socket.ContextResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ %d messages around %s in %s%s\n",
		colorBold, c.Count, formatOffset(c.Offset), c.RecordingID, colorReset))
	for _, m := range c.Messages {
		marker := " "
		if m.Offset == c.Offset {
			marker = colorYellow + "›" + colorReset
		}
		sb.WriteString(fmt.Sprintf("  %s %s%s%s  %s%s%s: %s\n",
			marker, colorCyan, formatOffset(m.Offset), colorReset,
			colorMagenta, m.Author, colorReset, m.Text))
	}
	return sb.String()
}

// formatStreamers renders the streamer directory.
func formatStreamers(s socket.StreamersResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ %d streamers%s\n", colorBold, s.Count, colorReset))
	for _, st := range s.Streamers {
		sb.WriteString(fmt.Sprintf("  %s%s%s  %s", colorCyan, st.ID, colorReset, st.Login))
		if st.DisplayName != "" && !strings.EqualFold(st.DisplayName, st.Login) {
			sb.WriteString(fmt.Sprintf("  %s%s%s", colorGray, st.DisplayName, colorReset))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatHealth formats a HealthResult for terminal display.
func formatHealth(h socket.HealthResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ chatscan daemon%s\n", colorBold, colorReset))
	sb.WriteString(fmt.Sprintf("  Status:    %s%s%s\n", colorGreen, h.Status, colorReset))
	sb.WriteString(fmt.Sprintf("  Corpus:    %s\n", h.Corpus))
	sb.WriteString(fmt.Sprintf("  Sessions:  %d (%d scanning)\n", h.Sessions, h.Scanning))
	sb.WriteString(fmt.Sprintf("  Uptime:    %s\n", h.Uptime))
	return sb.String()
}
