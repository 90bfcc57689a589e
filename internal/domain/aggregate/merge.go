// Package aggregate groups scored matches by recording.
//
// Merge is pure: it never mutates its inputs and always returns a freshly
// sorted slice, so a session can swap its whole group collection on every
// pass without coordinating with readers of the previous one.
package aggregate

import (
	"sort"

	"github.com/corey/chatscan/internal/ports"
)

// UnknownOwner labels a group whose recording has no owner name.
const UnknownOwner = "Unknown"

// PlaceholderTitle returns the title used for a recording without one.
func PlaceholderTitle(recordingID string) string {
	return "Video " + recordingID
}

// Merge folds matches into groups.
//
// A non-continuation merge ignores existing and starts from nothing. A
// continuation deep-copies existing first. Matches whose Message.ID is
// already present in their group are dropped, which makes merging the same
// batch twice a no-op.
//
// Groups are sorted by descending recording creation time (unknown last,
// ties by recording ID); matches by ascending offset (ties by message ID).
func Merge(existing []ports.RecordingGroup, matches []ports.ScoredMatch, continuation bool) []ports.RecordingGroup {
	byID := make(map[string]*ports.RecordingGroup)
	seen := make(map[string]map[string]bool)

	if continuation {
		for _, g := range existing {
			cp := g
			cp.Matches = append([]ports.ScoredMatch(nil), g.Matches...)
			ids := make(map[string]bool, len(cp.Matches))
			for _, m := range cp.Matches {
				ids[m.ID] = true
			}
			byID[g.RecordingID] = &cp
			seen[g.RecordingID] = ids
		}
	}

	for _, m := range matches {
		g, ok := byID[m.RecordingID]
		if !ok {
			g = newGroup(m.Message)
			byID[m.RecordingID] = g
			seen[m.RecordingID] = make(map[string]bool)
		}
		if seen[m.RecordingID][m.ID] {
			continue
		}
		seen[m.RecordingID][m.ID] = true
		g.Matches = append(g.Matches, m)
	}

	out := make([]ports.RecordingGroup, 0, len(byID))
	for _, g := range byID {
		sortMatches(g.Matches)
		out = append(out, *g)
	}
	sortGroups(out)
	return out
}

// TotalMatches sums group sizes.
func TotalMatches(groups []ports.RecordingGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Matches)
	}
	return n
}

func newGroup(m ports.Message) *ports.RecordingGroup {
	g := &ports.RecordingGroup{
		RecordingID: m.RecordingID,
		Title:       m.RecordingTitle,
		Owner:       m.RecordingOwner,
		CreatedAt:   m.RecordingCreatedAt,
	}
	if g.Title == "" {
		g.Title = PlaceholderTitle(m.RecordingID)
	}
	if g.Owner == "" {
		g.Owner = UnknownOwner
	}
	return g
}

func sortGroups(groups []ports.RecordingGroup) {
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		switch {
		case a.CreatedAt.IsZero() && b.CreatedAt.IsZero():
		case a.CreatedAt.IsZero():
			return false
		case b.CreatedAt.IsZero():
			return true
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.RecordingID < b.RecordingID
	})
}

func sortMatches(matches []ports.ScoredMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Offset != matches[j].Offset {
			return matches[i].Offset < matches[j].Offset
		}
		return matches[i].ID < matches[j].ID
	})
}
