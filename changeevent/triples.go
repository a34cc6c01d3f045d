package changeevent

import (
	"github.com/repolex-dev/repolex/rdfstore"
	"github.com/repolex-dev/repolex/schema"
)

// Predicates under the shared evolution ontology (schema.OntologyEvolution).
const (
	PredKind       = "evo:kind"
	PredEntity     = "evo:entity"
	PredFromVer    = "evo:fromVersion"
	PredToVer      = "evo:toVersion"
	PredCommitSHA  = "evo:commitSha"
)

// ToTriples renders one Event as the RDF statements written into the
// repository's events graph (schema.EventsGraph).
func ToTriples(org, repo string, ev Event) ([]rdfstore.Triple, error) {
	uri, err := schema.ChangeEventURI(org, repo, ev.StableURI, string(ev.Kind), ev.FromVer, ev.ToVer)
	if err != nil {
		return nil, err
	}
	triples := []rdfstore.Triple{
		{Subject: uri, Predicate: PredKind, Object: string(ev.Kind), ObjectIsLiteral: true},
		{Subject: uri, Predicate: PredEntity, Object: ev.StableURI},
		{Subject: uri, Predicate: PredFromVer, Object: ev.FromVer, ObjectIsLiteral: true},
		{Subject: uri, Predicate: PredToVer, Object: ev.ToVer, ObjectIsLiteral: true},
	}
	if ev.CommitSHA != "" {
		triples = append(triples, rdfstore.Triple{Subject: uri, Predicate: PredCommitSHA, Object: ev.CommitSHA, ObjectIsLiteral: true})
	}
	return triples, nil
}
