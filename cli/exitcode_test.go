package cli

import (
	"errors"
	"testing"

	"github.com/repolex-dev/repolex/rerrors"
	"github.com/stretchr/testify/require"
)

func TestExitCodeForMapsEveryKind(t *testing.T) {
	cases := []struct {
		kind rerrors.Kind
		want int
	}{
		{rerrors.Validation, ExitValidation},
		{rerrors.Security, ExitSecurity},
		{rerrors.Source, ExitSource},
		{rerrors.Git, ExitGit},
		{rerrors.Store, ExitStore},
		{rerrors.Network, ExitNetwork},
		{rerrors.Export, ExitExport},
		{rerrors.Configuration, ExitConfiguration},
	}
	for _, c := range cases {
		require.Equal(t, c.want, exitCodeFor(rerrors.New(c.kind, "boom")))
	}
}

func TestExitCodeForNilIsSuccess(t *testing.T) {
	require.Equal(t, ExitSuccess, exitCodeFor(nil))
}

func TestExitCodeForUnrecognizedErrorIsUnknown(t *testing.T) {
	require.Equal(t, ExitUnknown, exitCodeFor(errors.New("plain error")))
}
