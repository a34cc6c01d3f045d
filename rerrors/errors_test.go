package rerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := New(Validation, "bad repository identifier", "use org/repo form")
	assert.Equal(t, "validation: bad repository identifier", err.Error())
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Store, cause, "transaction failed")
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestRecoverable(t *testing.T) {
	assert.True(t, New(Source, "skip").Recoverable())
	assert.False(t, New(Security, "path escape").Recoverable())
	assert.True(t, WrapTransient(Network, errors.New("timeout"), "fetch failed").Recoverable())
}

func TestKindOf(t *testing.T) {
	err := New(Git, "clone failed")
	assert.Equal(t, Git, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.True(t, Is(err, Git))
}
