package cli

import (
	"path/filepath"
	"testing"

	"github.com/repolex-dev/repolex/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func newExportCmd(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().String("out", "", "")
	return cmd
}

func TestExportDestinationDefaultsUnderStorageRoot(t *testing.T) {
	root := t.TempDir()
	a := &app{cfg: &config.Config{StorageRoot: root}}
	cmd := newExportCmd(t)

	dest, err := exportDestination(cmd, a, "acme", "widgets", "v1", "jsonl")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "exports", "acme", "widgets", "v1.jsonl"), dest)
}

func TestExportDestinationHonorsOutFlag(t *testing.T) {
	a := &app{cfg: &config.Config{StorageRoot: t.TempDir()}}
	cmd := newExportCmd(t)
	require.NoError(t, cmd.Flags().Set("out", "/tmp/custom.jsonl"))

	dest, err := exportDestination(cmd, a, "acme", "widgets", "v1", "jsonl")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.jsonl", dest)
}

func TestExportDestinationDashMeansStdout(t *testing.T) {
	a := &app{cfg: &config.Config{StorageRoot: t.TempDir()}}
	cmd := newExportCmd(t)
	require.NoError(t, cmd.Flags().Set("out", "-"))

	dest, err := exportDestination(cmd, a, "acme", "widgets", "v1", "jsonl")
	require.NoError(t, err)
	require.Equal(t, "", dest)
}
