package changeevent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToTriplesIsDeterministic(t *testing.T) {
	ev := Event{StableURI: "function:acme/widgets/a.Foo", Kind: KindAdded, FromVer: "v1", ToVer: "v2", CommitSHA: "abc"}
	t1, err := ToTriples("acme", "widgets", ev)
	require.NoError(t, err)
	t2, err := ToTriples("acme", "widgets", ev)
	require.NoError(t, err)
	assert.Equal(t, t1, t2)
	assert.NotEmpty(t, t1)
}

func TestToTriplesOmitsCommitShaWhenUnknown(t *testing.T) {
	ev := Event{StableURI: "function:acme/widgets/a.Foo", Kind: KindRemoved, FromVer: "v1", ToVer: "v2"}
	triples, err := ToTriples("acme", "widgets", ev)
	require.NoError(t, err)
	for _, tr := range triples {
		assert.NotEqual(t, PredCommitSHA, tr.Predicate)
	}
}
