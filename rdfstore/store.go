// Package rdfstore implements the Triple Store Adapter (component A of
// spec.md section 4.1): an embedded, named-graph RDF store with a
// SPARQL 1.1 SELECT/ASK/CONSTRUCT subset, single-writer/many-reader
// semantics, and durable on-disk persistence.
//
// No embeddable RDF/SPARQL engine appears anywhere in the retrieved
// example corpus -- the teacher's db/graphdb.go, db/rdf4j.go, and
// db/poolparty.go are all thin HTTP clients to *external* triple store
// servers (GraphDB, RDF4J, PoolParty), which would violate spec.md
// section 1's non-goal of "a single process owns the store". This
// package keeps the teacher's named-graph CRUD shape (list/import/export
// a graph, run a SPARQL query against a repository) but reimplements the
// transport as an embedded go.etcd.io/bbolt database instead of an HTTP
// round trip, per the justification recorded in DESIGN.md.
package rdfstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/repolex-dev/repolex/common"
	"github.com/repolex-dev/repolex/metrics"
	"github.com/repolex-dev/repolex/rerrors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// Triple is a single RDF statement. Object may be a URI, a blank node
// (prefixed "_:"), or a literal; ObjectIsLiteral disambiguates the last
// case from a same-shaped string URI.
type Triple struct {
	Subject         string
	Predicate       string
	Object          string
	ObjectIsLiteral bool
}

func (t Triple) key() string {
	lit := "0"
	if t.ObjectIsLiteral {
		lit = "1"
	}
	return t.Subject + "\x00" + t.Predicate + "\x00" + t.Object + "\x00" + lit
}

// QueryResult is the result of a read-only query. Exactly one of Rows,
// Boolean, or ConstructTriples is populated, depending on the query form.
type QueryResult struct {
	Form             string // "SELECT", "ASK", or "CONSTRUCT"
	Vars             []string
	Rows             []map[string]string
	Boolean          bool
	ConstructTriples []Triple
}

// Store is the public contract of the Triple Store Adapter, matching
// spec.md section 4.1 one-for-one.
type Store interface {
	// UpsertGraph replaces the entire contents of graphURI with triples
	// atomically (drop+insert within one transaction).
	UpsertGraph(ctx context.Context, graphURI string, triples []Triple) error
	// AppendToGraph adds triples to graphURI; duplicates are idempotent.
	AppendToGraph(ctx context.Context, graphURI string, triples []Triple) error
	// DropGraph removes a graph and all its triples; a no-op if absent.
	DropGraph(ctx context.Context, graphURI string) error
	// ListGraphs enumerates graph URIs, optionally restricted to a prefix.
	ListGraphs(ctx context.Context, prefix string) ([]string, error)
	// Query executes a read-only SPARQL 1.1 SELECT/ASK/CONSTRUCT query.
	// Any update form is rejected before any store call.
	Query(ctx context.Context, sparql string, timeout time.Duration) (*QueryResult, error)
	// AcquireWriter returns the single-writer token; callers must invoke
	// the returned release function exactly once. UpsertGraph,
	// AppendToGraph and DropGraph each take it for the duration of one
	// call; it is not reentrant, so a caller holding it blocks if it then
	// calls one of them.
	AcquireWriter(ctx context.Context) (release func(), err error)
	// Close flushes and closes the underlying database file.
	Close() error
}

// snapshot is an immutable view of every graph's triples, swapped in
// atomically so that readers never observe a partially-written graph set
// (spec.md section 5's ordering guarantees, section 4.10's "intermediate
// partial states must never be observable to readers").
type snapshot struct {
	graphs map[string][]Triple // graph URI -> triples, already deduplicated
}

// BoltStore is the embedded implementation of Store.
type BoltStore struct {
	db *bolt.DB
	// writerTok is a 1-buffered channel holding a single token: the
	// writer lock, modeled as a value instead of a sync.Mutex so
	// AcquireWriter can select on ctx.Done() without ever blocking past
	// a cancellation. A sync.Mutex's Lock() has no cancellable variant,
	// which would otherwise force a helper goroutine that outlives a
	// cancelled caller and deadlocks every later writer once it finally
	// acquires the mutex it has nowhere to hand back to.
	writerTok  chan struct{}
	current    atomic.Pointer[snapshot]
	log        *logrus.Entry
	bucketName []byte
	metrics    *metrics.Collectors
}

// SetMetrics attaches a metrics.Collectors to record every UpsertGraph
// and AppendToGraph write. Nil is valid and is the default: a store
// never built with SetMetrics simply records nothing.
func (s *BoltStore) SetMetrics(c *metrics.Collectors) {
	s.metrics = c
}

const defaultBucket = "triples"

// Open opens (creating if absent) a BoltStore at path.
func Open(path string, log *logrus.Entry) (*BoltStore, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Store, err, "failed to open triple store database")
	}
	s := &BoltStore{db: db, log: log, bucketName: []byte(defaultBucket), writerTok: make(chan struct{}, 1)}
	s.writerTok <- struct{}{}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, rerrors.Wrap(rerrors.Store, err, "failed to initialize triple store bucket")
	}
	if err := s.loadSnapshot(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) loadSnapshot() error {
	graphs := make(map[string][]Triple)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucketName)
		return b.ForEach(func(k, v []byte) error {
			graphURI, triple, ok := decodeRow(k)
			if !ok {
				return nil
			}
			graphs[graphURI] = append(graphs[graphURI], triple)
			return nil
		})
	})
	if err != nil {
		return rerrors.Wrap(rerrors.Store, err, "failed to load triple store snapshot")
	}
	snap := &snapshot{graphs: graphs}
	s.current.Store(snap)
	return nil
}

// AcquireWriter implements Store. A cancelled or expired ctx returns
// immediately without taking the token, so no later writer is ever
// blocked by this call.
func (s *BoltStore) AcquireWriter(ctx context.Context) (func(), error) {
	select {
	case <-s.writerTok:
		return func() { s.writerTok <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, rerrors.Wrap(rerrors.Store, ctx.Err(), "timed out waiting for writer token")
	}
}

// UpsertGraph implements Store.
func (s *BoltStore) UpsertGraph(ctx context.Context, graphURI string, triples []Triple) error {
	release, err := s.AcquireWriter(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.writeLocked(graphURI, triples, true)
}

// AppendToGraph implements Store.
func (s *BoltStore) AppendToGraph(ctx context.Context, graphURI string, triples []Triple) error {
	release, err := s.AcquireWriter(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.writeLocked(graphURI, triples, false)
}

func (s *BoltStore) writeLocked(graphURI string, triples []Triple, replace bool) error {
	start := time.Now()
	snap := s.current.Load()
	next := make(map[string][]Triple, len(snap.graphs))
	for k, v := range snap.graphs {
		next[k] = v
	}

	existing := map[string]Triple{}
	if !replace {
		for _, t := range next[graphURI] {
			existing[t.key()] = t
		}
	}
	merged := make([]Triple, 0, len(triples)+len(existing))
	for _, t := range triples {
		existing[t.key()] = t
	}
	for _, t := range existing {
		merged = append(merged, t)
	}
	sortTriples(merged)
	next[graphURI] = merged

	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucketName)
		if replace {
			if err := deleteGraphRows(b, graphURI); err != nil {
				return err
			}
		}
		for _, t := range merged {
			if err := b.Put(encodeRow(graphURI, t), nil); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return rerrors.Wrap(rerrors.Store, err, fmt.Sprintf("failed to write graph %s", graphURI))
	}

	s.current.Store(&snapshot{graphs: next})
	op := "append"
	if replace {
		op = "replace"
	}
	s.log.WithFields(logrus.Fields(common.StoreFields(op, graphURI, len(merged), time.Since(start)))).Debug("wrote graph")
	s.metrics.RecordStoreWrite(op, len(merged))
	return nil
}

// DropGraph implements Store.
func (s *BoltStore) DropGraph(ctx context.Context, graphURI string) error {
	release, err := s.AcquireWriter(ctx)
	if err != nil {
		return err
	}
	defer release()

	snap := s.current.Load()
	if _, ok := snap.graphs[graphURI]; !ok {
		return nil
	}
	next := make(map[string][]Triple, len(snap.graphs))
	for k, v := range snap.graphs {
		if k == graphURI {
			continue
		}
		next[k] = v
	}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		return deleteGraphRows(tx.Bucket(s.bucketName), graphURI)
	}); err != nil {
		return rerrors.Wrap(rerrors.Store, err, fmt.Sprintf("failed to drop graph %s", graphURI))
	}

	s.current.Store(&snapshot{graphs: next})
	s.log.WithField("graph", graphURI).Debug("dropped graph")
	return nil
}

// ListGraphs implements Store.
func (s *BoltStore) ListGraphs(ctx context.Context, prefix string) ([]string, error) {
	snap := s.current.Load()
	out := make([]string, 0, len(snap.graphs))
	for uri := range snap.graphs {
		if prefix == "" || strings.HasPrefix(uri, prefix) {
			out = append(out, uri)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func deleteGraphRows(b *bolt.Bucket, graphURI string) error {
	prefix := []byte(graphURI + "\x00")
	c := b.Cursor()
	var toDelete [][]byte
	for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
		cp := append([]byte(nil), k...)
		toDelete = append(toDelete, cp)
	}
	for _, k := range toDelete {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func sortTriples(triples []Triple) {
	sort.Slice(triples, func(i, j int) bool {
		return triples[i].key() < triples[j].key()
	})
}

// encodeRow/decodeRow key triples by graph so a graph's rows are
// contiguous under a byte-lexical cursor scan, making DropGraph and
// loadSnapshot linear in the graph's own size.
func encodeRow(graphURI string, t Triple) []byte {
	lit := "0"
	if t.ObjectIsLiteral {
		lit = "1"
	}
	return []byte(graphURI + "\x00" + t.Subject + "\x00" + t.Predicate + "\x00" + lit + "\x00" + t.Object)
}

func decodeRow(k []byte) (graphURI string, t Triple, ok bool) {
	parts := strings.SplitN(string(k), "\x00", 5)
	if len(parts) != 5 {
		return "", Triple{}, false
	}
	t = Triple{Subject: parts[1], Predicate: parts[2], Object: parts[4], ObjectIsLiteral: parts[3] == "1"}
	return parts[0], t, true
}
