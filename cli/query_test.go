package cli

import (
	"bytes"
	"testing"

	"github.com/repolex-dev/repolex/rdfstore"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func runWithOutput(t *testing.T, fn func(cmd *cobra.Command)) string {
	t.Helper()
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	fn(cmd)
	return buf.String()
}

func TestPrintQueryResultSelect(t *testing.T) {
	out := runWithOutput(t, func(cmd *cobra.Command) {
		printQueryResult(cmd, &rdfstore.QueryResult{
			Form: "SELECT",
			Vars: []string{"s", "p"},
			Rows: []map[string]string{
				{"s": "urn:a", "p": "urn:b"},
			},
		})
	})
	require.Equal(t, "urn:a\turn:b\n", out)
}

func TestPrintQueryResultAsk(t *testing.T) {
	out := runWithOutput(t, func(cmd *cobra.Command) {
		printQueryResult(cmd, &rdfstore.QueryResult{Form: "ASK", Boolean: true})
	})
	require.Equal(t, "true\n", out)
}

func TestPrintQueryResultConstruct(t *testing.T) {
	out := runWithOutput(t, func(cmd *cobra.Command) {
		printQueryResult(cmd, &rdfstore.QueryResult{
			Form: "CONSTRUCT",
			ConstructTriples: []rdfstore.Triple{
				{Subject: "urn:a", Predicate: "urn:p", Object: "hello", ObjectIsLiteral: true},
				{Subject: "urn:a", Predicate: "a", Object: "urn:Type", ObjectIsLiteral: false},
			},
		})
	})
	require.Equal(t, "<urn:a> <urn:p> \"hello\" .\n<urn:a> <a> <urn:Type> .\n", out)
}
