package cli

import (
	"fmt"

	"github.com/repolex-dev/repolex/rdfstore"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "run a read-only query against the triple store",
}

var querySparqlCmd = &cobra.Command{
	Use:   "sparql <query>",
	Short: "run a SELECT, ASK, or CONSTRUCT query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		res, err := a.store.Query(cmd.Context(), args[0], a.cfg.QueryTimeout())
		if err != nil {
			return err
		}
		printQueryResult(cmd, res)
		return nil
	},
}

// printQueryResult renders whichever SPARQL result form the engine
// returned: ASK prints a boolean, SELECT prints tab-separated rows in
// Vars order, CONSTRUCT prints N-Triples-style lines.
func printQueryResult(cmd *cobra.Command, res *rdfstore.QueryResult) {
	out := cmd.OutOrStdout()
	switch res.Form {
	case "ASK":
		fmt.Fprintln(out, res.Boolean)
	case "CONSTRUCT":
		for _, t := range res.ConstructTriples {
			if t.ObjectIsLiteral {
				fmt.Fprintf(out, "<%s> <%s> %q .\n", t.Subject, t.Predicate, t.Object)
			} else {
				fmt.Fprintf(out, "<%s> <%s> <%s> .\n", t.Subject, t.Predicate, t.Object)
			}
		}
	default:
		for _, row := range res.Rows {
			for i, v := range res.Vars {
				if i > 0 {
					fmt.Fprint(out, "\t")
				}
				fmt.Fprint(out, row[v])
			}
			fmt.Fprintln(out)
		}
	}
}

func init() {
	queryCmd.AddCommand(querySparqlCmd)
	RootCmd.AddCommand(queryCmd)
}
