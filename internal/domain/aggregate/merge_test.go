package aggregate

import (
	"testing"
	"time"

	"github.com/corey/chatscan/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day1 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	day2 = time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	day3 = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
)

func sm(id, rec string, offset int, created time.Time) ports.ScoredMatch {
	return ports.ScoredMatch{
		Message: ports.Message{
			ID:                 id,
			Text:               "gg",
			Offset:             offset,
			RecordingID:        rec,
			RecordingTitle:     "Title " + rec,
			RecordingOwner:     "owner",
			RecordingCreatedAt: created,
		},
		Score:          1,
		MatchedKeyword: "gg",
	}
}

func ids(g ports.RecordingGroup) []string {
	out := make([]string, len(g.Matches))
	for i, m := range g.Matches {
		out[i] = m.ID
	}
	return out
}

func recIDs(groups []ports.RecordingGroup) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.RecordingID
	}
	return out
}

func TestMerge_GroupsByRecording(t *testing.T) {
	got := Merge(nil, []ports.ScoredMatch{
		sm("a", "r1", 10, day1),
		sm("b", "r2", 5, day2),
		sm("c", "r1", 3, day1),
	}, false)

	require.Len(t, got, 2)
	assert.Equal(t, []string{"r2", "r1"}, recIDs(got), "newest recording first")
	assert.Equal(t, []string{"c", "a"}, ids(got[1]), "ascending offset")
	assert.Equal(t, "Title r1", got[1].Title)
	assert.Equal(t, 3, TotalMatches(got))
}

func TestMerge_DefaultsForMissingMetadata(t *testing.T) {
	m := sm("a", "42", 0, time.Time{})
	m.RecordingTitle = ""
	m.RecordingOwner = ""

	got := Merge(nil, []ports.ScoredMatch{m}, false)
	require.Len(t, got, 1)
	assert.Equal(t, "Video 42", got[0].Title)
	assert.Equal(t, UnknownOwner, got[0].Owner)
}

func TestMerge_UnknownCreationTimeSortsLast(t *testing.T) {
	got := Merge(nil, []ports.ScoredMatch{
		sm("a", "nodate", 0, time.Time{}),
		sm("b", "old", 0, day1),
		sm("c", "new", 0, day3),
	}, false)
	assert.Equal(t, []string{"new", "old", "nodate"}, recIDs(got))
}

func TestMerge_NonContinuationDiscardsExisting(t *testing.T) {
	existing := Merge(nil, []ports.ScoredMatch{sm("a", "r1", 0, day1)}, false)
	got := Merge(existing, []ports.ScoredMatch{sm("b", "r2", 0, day2)}, false)
	assert.Equal(t, []string{"r2"}, recIDs(got))
}

func TestMerge_ContinuationExtends(t *testing.T) {
	existing := Merge(nil, []ports.ScoredMatch{sm("a", "r1", 20, day1)}, false)
	got := Merge(existing, []ports.ScoredMatch{
		sm("b", "r1", 5, day1),
		sm("c", "r3", 0, day3),
	}, true)

	assert.Equal(t, []string{"r3", "r1"}, recIDs(got))
	assert.Equal(t, []string{"b", "a"}, ids(got[1]))
}

func TestMerge_ContinuationDoesNotMutateExisting(t *testing.T) {
	existing := Merge(nil, []ports.ScoredMatch{sm("a", "r1", 20, day1)}, false)
	_ = Merge(existing, []ports.ScoredMatch{sm("b", "r1", 5, day1)}, true)

	require.Len(t, existing, 1)
	assert.Equal(t, []string{"a"}, ids(existing[0]))
}

func TestMerge_Idempotent(t *testing.T) {
	batch := []ports.ScoredMatch{
		sm("a", "r1", 10, day1),
		sm("b", "r2", 5, day2),
		sm("c", "r1", 3, day1),
	}
	once := Merge(nil, batch, false)
	twice := Merge(once, batch, true)
	assert.Equal(t, once, twice)
}

func TestMerge_DuplicateWithinBatch(t *testing.T) {
	got := Merge(nil, []ports.ScoredMatch{
		sm("a", "r1", 10, day1),
		sm("a", "r1", 10, day1),
	}, false)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Matches, 1)
}

func TestMerge_OrderIndependent(t *testing.T) {
	batch := []ports.ScoredMatch{
		sm("a", "r1", 10, day1),
		sm("b", "r2", 5, day2),
		sm("c", "r1", 3, day1),
		sm("d", "r3", 7, day2),
		sm("e", "r4", 1, time.Time{}),
		sm("f", "r2", 5, day2),
	}
	reversed := make([]ports.ScoredMatch, len(batch))
	for i, m := range batch {
		reversed[len(batch)-1-i] = m
	}

	got := Merge(nil, batch, false)
	assert.Equal(t, got, Merge(nil, reversed, false))

	// Equal creation times tie-break on recording ID; equal offsets on message ID.
	assert.Equal(t, []string{"r2", "r3", "r1", "r4"}, recIDs(got))
	assert.Equal(t, []string{"b", "f"}, ids(got[0]))
}

func TestMerge_Empty(t *testing.T) {
	got := Merge(nil, nil, false)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 0, TotalMatches(got))
}
