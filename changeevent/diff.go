// Package changeevent implements the Change Event Generator (component F
// of spec.md section 4.6): given two ordered versions of a repository's
// stable identity set, it produces the added/removed/signature_changed/
// body_changed/moved events that populate the repository-scoped events
// graph.
package changeevent

// Kind enumerates the change-event categories named in spec.md section 6.
type Kind string

const (
	KindAdded            Kind = "added"
	KindRemoved          Kind = "removed"
	KindSignatureChanged Kind = "signature_changed"
	KindBodyChanged      Kind = "body_changed"
	KindMoved            Kind = "moved"
)

// Snapshot is the minimal per-entity state captured for one version, used
// only to compute a diff; it is never persisted as-is.
type Snapshot struct {
	StableURI string
	File      string
	Signature string
	BodyLines int
}

// Event is one emitted change, ready for the Graph Builder to mint a
// ChangeEvent URI for and write to the events graph.
type Event struct {
	StableURI  string
	Kind       Kind
	FromVer    string
	ToVer      string
	CommitSHA  string // best-effort; empty if the triggering commit is unknown
}

// Diff compares from and to, two version's entity snapshots keyed by
// stable URI, and returns every event the transition produced. An entity
// absent from from but present in to is "added"; the reverse is
// "removed". An entity present in both with a changed signature is
// "signature_changed"; same signature but a changed body line count is
// "body_changed"; only when both the signature and body are unchanged
// does a changed file count as "moved". These are evaluated in that
// priority order per entity, so a function that both moved and changed
// body is reported once, as body_changed, and moved fires only for a
// pure file relocation.
func Diff(from, to map[string]Snapshot, fromVer, toVer, commitSHA string) []Event {
	var events []Event

	for uri, toSnap := range to {
		fromSnap, existed := from[uri]
		if !existed {
			events = append(events, Event{StableURI: uri, Kind: KindAdded, FromVer: fromVer, ToVer: toVer, CommitSHA: commitSHA})
			continue
		}
		switch {
		case fromSnap.Signature != toSnap.Signature:
			events = append(events, Event{StableURI: uri, Kind: KindSignatureChanged, FromVer: fromVer, ToVer: toVer, CommitSHA: commitSHA})
		case fromSnap.BodyLines != toSnap.BodyLines:
			events = append(events, Event{StableURI: uri, Kind: KindBodyChanged, FromVer: fromVer, ToVer: toVer, CommitSHA: commitSHA})
		case fromSnap.File != toSnap.File:
			events = append(events, Event{StableURI: uri, Kind: KindMoved, FromVer: fromVer, ToVer: toVer, CommitSHA: commitSHA})
		}
	}

	for uri := range from {
		if _, stillExists := to[uri]; !stillExists {
			events = append(events, Event{StableURI: uri, Kind: KindRemoved, FromVer: fromVer, ToVer: toVer, CommitSHA: commitSHA})
		}
	}

	return events
}
