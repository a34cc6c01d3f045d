package changeevent

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(events []Event) []string {
	var ks []string
	for _, e := range events {
		ks = append(ks, string(e.Kind))
	}
	sort.Strings(ks)
	return ks
}

func TestDiffDetectsAdditionAndRemoval(t *testing.T) {
	from := map[string]Snapshot{
		"fn:a": {StableURI: "fn:a", File: "a.go", Signature: "a()", BodyLines: 5},
	}
	to := map[string]Snapshot{
		"fn:b": {StableURI: "fn:b", File: "b.go", Signature: "b()", BodyLines: 5},
	}
	events := Diff(from, to, "v1", "v2", "")
	assert.ElementsMatch(t, []string{"added", "removed"}, kinds(events))
}

func TestDiffDetectsSignatureChange(t *testing.T) {
	from := map[string]Snapshot{"fn:a": {StableURI: "fn:a", File: "a.go", Signature: "a(x int)", BodyLines: 5}}
	to := map[string]Snapshot{"fn:a": {StableURI: "fn:a", File: "a.go", Signature: "a(x, y int)", BodyLines: 5}}
	events := Diff(from, to, "v1", "v2", "abc123")
	require.Len(t, events, 1)
	assert.Equal(t, KindSignatureChanged, events[0].Kind)
	assert.Equal(t, "abc123", events[0].CommitSHA)
}

func TestDiffDetectsBodyChangeOverMove(t *testing.T) {
	from := map[string]Snapshot{"fn:a": {StableURI: "fn:a", File: "old.go", Signature: "a()", BodyLines: 5}}
	to := map[string]Snapshot{"fn:a": {StableURI: "fn:a", File: "new.go", Signature: "a()", BodyLines: 9}}
	events := Diff(from, to, "v1", "v2", "")
	require.Len(t, events, 1)
	assert.Equal(t, KindBodyChanged, events[0].Kind)
}

func TestDiffDetectsPureMove(t *testing.T) {
	from := map[string]Snapshot{"fn:a": {StableURI: "fn:a", File: "old.go", Signature: "a()", BodyLines: 5}}
	to := map[string]Snapshot{"fn:a": {StableURI: "fn:a", File: "new.go", Signature: "a()", BodyLines: 5}}
	events := Diff(from, to, "v1", "v2", "")
	require.Len(t, events, 1)
	assert.Equal(t, KindMoved, events[0].Kind)
}

func TestDiffDetectsBodyChangeOnly(t *testing.T) {
	from := map[string]Snapshot{"fn:a": {StableURI: "fn:a", File: "a.go", Signature: "a()", BodyLines: 5}}
	to := map[string]Snapshot{"fn:a": {StableURI: "fn:a", File: "a.go", Signature: "a()", BodyLines: 9}}
	events := Diff(from, to, "v1", "v2", "")
	require.Len(t, events, 1)
	assert.Equal(t, KindBodyChanged, events[0].Kind)
}

func TestDiffIsQuietWhenNothingChanged(t *testing.T) {
	snap := map[string]Snapshot{"fn:a": {StableURI: "fn:a", File: "a.go", Signature: "a()", BodyLines: 5}}
	events := Diff(snap, snap, "v1", "v2", "")
	assert.Empty(t, events)
}
