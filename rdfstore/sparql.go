package rdfstore

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/repolex-dev/repolex/rerrors"
)

// updateKeyword matches any SPARQL 1.1 Update form. Detected and rejected
// before any store call, per spec.md sections 4.1 and 6 and testable
// property 6.
var updateKeyword = regexp.MustCompile(`(?i)\b(INSERT|DELETE|LOAD|CLEAR|CREATE|DROP|COPY|MOVE|ADD)\b`)

// Query implements Store. It parses a small, deliberately bounded subset
// of SPARQL 1.1 SELECT/ASK/CONSTRUCT sufficient for the query shapes this
// engine's own exporters and CLI issue (single GRAPH block, conjunctive
// triple patterns, an optional COUNT(*) aggregate, LIMIT/OFFSET). No
// general-purpose SPARQL engine exists anywhere in the retrieved example
// corpus, so this hand-written parser is the stdlib-only exception
// recorded in DESIGN.md.
func (s *BoltStore) Query(ctx context.Context, sparql string, timeout time.Duration) (*QueryResult, error) {
	if loc := updateKeyword.FindStringIndex(sparql); loc != nil {
		return nil, rerrors.New(rerrors.Security,
			fmt.Sprintf("query uses a disallowed update form at byte offset %d", loc[0]),
			"use only SELECT, ASK, or CONSTRUCT")
	}

	pq, err := parseSPARQL(sparql)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	var result *QueryResult
	var execErr error
	go func() {
		result, execErr = s.execute(pq)
		close(done)
	}()

	select {
	case <-done:
		return result, execErr
	case <-time.After(timeout):
		return nil, rerrors.New(rerrors.Store, fmt.Sprintf("query exceeded timeout of %s", timeout))
	case <-ctx.Done():
		return nil, rerrors.Wrap(rerrors.Store, ctx.Err(), "query cancelled")
	}
}

// --- minimal parser ---

type triplePattern struct {
	S, P, O string
	OIsVar  bool
}

type parsedQuery struct {
	form        string // SELECT, ASK, CONSTRUCT
	vars        []string
	countAll    bool
	countAlias  string
	graphURI    string // "" means search every graph
	patterns    []triplePattern
	construct   []triplePattern
	limit       int // -1 = unlimited
	offset      int
	prefixes    map[string]string
}

func isVar(tok string) bool { return strings.HasPrefix(tok, "?") }

func parseSPARQL(q string) (*parsedQuery, error) {
	tokens := tokenize(q)
	if len(tokens) == 0 {
		return nil, rerrors.New(rerrors.Validation, "empty query")
	}

	pq := &parsedQuery{limit: -1, prefixes: map[string]string{}}
	i := 0
	for i < len(tokens) && strings.EqualFold(tokens[i], "PREFIX") {
		if i+2 >= len(tokens) {
			return nil, rerrors.New(rerrors.Validation, "malformed PREFIX clause")
		}
		name := strings.TrimSuffix(tokens[i+1], ":")
		uri := strings.Trim(tokens[i+2], "<>")
		pq.prefixes[name] = uri
		i += 3
	}

	if i >= len(tokens) {
		return nil, rerrors.New(rerrors.Validation, "query has no form keyword")
	}

	form := strings.ToUpper(tokens[i])
	switch form {
	case "SELECT":
		pq.form = "SELECT"
		i++
		i, err := parseSelectVars(tokens, i, pq)
		if err != nil {
			return nil, err
		}
		if err := expect(tokens, i, "WHERE"); err != nil {
			return nil, err
		}
		i++
		i, err = parseGroup(tokens, i, pq, false)
		if err != nil {
			return nil, err
		}
		parseModifiers(tokens, i, pq)
	case "ASK":
		pq.form = "ASK"
		i++
		var err error
		i, err = parseGroup(tokens, i, pq, false)
		if err != nil {
			return nil, err
		}
	case "CONSTRUCT":
		pq.form = "CONSTRUCT"
		i++
		var err error
		i, err = parseGroup(tokens, i, pq, true)
		if err != nil {
			return nil, err
		}
		if err := expect(tokens, i, "WHERE"); err != nil {
			return nil, err
		}
		i++
		i, err = parseGroup(tokens, i, pq, false)
		if err != nil {
			return nil, err
		}
		parseModifiers(tokens, i, pq)
	default:
		return nil, rerrors.New(rerrors.Validation, fmt.Sprintf("unsupported query form %q", form))
	}

	return pq, nil
}

func expect(tokens []string, i int, kw string) error {
	if i >= len(tokens) || !strings.EqualFold(tokens[i], kw) {
		return rerrors.New(rerrors.Validation, fmt.Sprintf("expected %s at token %d", kw, i))
	}
	return nil
}

// parseSelectVars reads either "*" or a list of "?var" / "(COUNT(*) AS ?n)".
func parseSelectVars(tokens []string, i int, pq *parsedQuery) (int, error) {
	for i < len(tokens) && !strings.EqualFold(tokens[i], "WHERE") {
		tok := tokens[i]
		switch {
		case tok == "*":
			i++
		case strings.HasPrefix(strings.ToUpper(tok), "(COUNT"):
			// reconstruct "(COUNT(*) AS ?n)" which the tokenizer may have
			// split across several tokens ending in ")".
			joined := tok
			for !strings.HasSuffix(joined, ")") && i+1 < len(tokens) {
				i++
				joined += tokens[i]
			}
			pq.countAll = true
			if idx := strings.Index(strings.ToUpper(joined), "AS"); idx >= 0 {
				rest := joined[idx+2:]
				rest = strings.TrimSuffix(strings.TrimSpace(rest), ")")
				pq.countAlias = strings.TrimPrefix(rest, "?")
			}
			i++
		case isVar(tok):
			pq.vars = append(pq.vars, strings.TrimPrefix(tok, "?"))
			i++
		default:
			i++
		}
	}
	return i, nil
}

func parseModifiers(tokens []string, i int, pq *parsedQuery) {
	for i < len(tokens) {
		switch strings.ToUpper(tokens[i]) {
		case "LIMIT":
			if i+1 < len(tokens) {
				if n, err := strconv.Atoi(tokens[i+1]); err == nil {
					pq.limit = n
				}
			}
			i += 2
		case "OFFSET":
			if i+1 < len(tokens) {
				if n, err := strconv.Atoi(tokens[i+1]); err == nil {
					pq.offset = n
				}
			}
			i += 2
		default:
			i++
		}
	}
}

// parseGroup reads "{ [GRAPH <uri>] { triple triple ... } }" or a bare
// "{ triple triple ... }" block. If construct is true, patterns are
// appended to pq.construct rather than pq.patterns.
func parseGroup(tokens []string, i int, pq *parsedQuery, construct bool) (int, error) {
	if i >= len(tokens) || tokens[i] != "{" {
		return i, rerrors.New(rerrors.Validation, "expected '{'")
	}
	i++

	if i < len(tokens) && strings.EqualFold(tokens[i], "GRAPH") {
		i++
		if i >= len(tokens) {
			return i, rerrors.New(rerrors.Validation, "expected graph URI after GRAPH")
		}
		pq.graphURI = resolveURI(tokens[i], pq.prefixes)
		i++
		if i >= len(tokens) || tokens[i] != "{" {
			return i, rerrors.New(rerrors.Validation, "expected '{' after GRAPH <uri>")
		}
		i++
	}

	var buf []string
	for i < len(tokens) && tokens[i] != "}" {
		if tokens[i] == "." {
			if len(buf) == 3 {
				appendPattern(pq, buf, construct)
			}
			buf = nil
			i++
			continue
		}
		if strings.EqualFold(tokens[i], "FILTER") {
			// skip the parenthesized filter expression; this engine's
			// internal query set never needs filter evaluation beyond
			// what triple patterns already express.
			i++
			depth := 0
			for i < len(tokens) {
				if tokens[i] == "(" {
					depth++
				}
				if tokens[i] == ")" {
					depth--
					i++
					if depth == 0 {
						break
					}
					continue
				}
				i++
			}
			continue
		}
		buf = append(buf, tokens[i])
		i++
	}
	if len(buf) == 3 {
		appendPattern(pq, buf, construct)
	}
	if i >= len(tokens) || tokens[i] != "}" {
		return i, rerrors.New(rerrors.Validation, "expected '}'")
	}
	i++
	// closing brace of an outer GRAPH block, if one was opened.
	if i < len(tokens) && tokens[i] == "}" {
		i++
	}
	return i, nil
}

func appendPattern(pq *parsedQuery, buf []string, construct bool) {
	p := triplePattern{S: buf[0], P: buf[1], O: buf[2]}
	if isVar(p.O) {
		p.OIsVar = true
	}
	if p.P == "a" {
		p.P = "a"
	} else {
		p.P = resolveURI(p.P, pq.prefixes)
	}
	if !isVar(p.S) {
		p.S = resolveURI(p.S, pq.prefixes)
	}
	if !isVar(p.O) {
		p.O = resolveURI(p.O, pq.prefixes)
	}
	if construct {
		pq.construct = append(pq.construct, p)
	} else {
		pq.patterns = append(pq.patterns, p)
	}
}

func resolveURI(tok string, prefixes map[string]string) string {
	if strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">") {
		return strings.Trim(tok, "<>")
	}
	if strings.HasPrefix(tok, "\"") && strings.HasSuffix(tok, "\"") {
		return strings.Trim(tok, "\"")
	}
	if idx := strings.Index(tok, ":"); idx > 0 {
		prefix, local := tok[:idx], tok[idx+1:]
		if base, ok := prefixes[prefix]; ok {
			return base + local
		}
	}
	return tok
}

var tokenRe = regexp.MustCompile(`<[^>]*>|"[^"]*"|\(COUNT\([^)]*\)\s*AS\s*\?[A-Za-z0-9_]+\)|[{}.()]|\?[A-Za-z0-9_]+|[A-Za-z0-9_:#/.*-]+`)

func tokenize(q string) []string {
	return tokenRe.FindAllString(q, -1)
}

// --- execution ---

func (s *BoltStore) execute(pq *parsedQuery) (*QueryResult, error) {
	snap := s.current.Load()

	var graphs map[string][]Triple
	if pq.graphURI != "" {
		graphs = map[string][]Triple{pq.graphURI: snap.graphs[pq.graphURI]}
	} else {
		graphs = snap.graphs
	}

	var allBindings []map[string]string
	for _, triples := range graphs {
		allBindings = append(allBindings, matchPatterns(pq.patterns, triples)...)
	}

	switch pq.form {
	case "ASK":
		return &QueryResult{Form: "ASK", Boolean: len(allBindings) > 0}, nil
	case "CONSTRUCT":
		var out []Triple
		seen := map[string]bool{}
		for _, b := range allBindings {
			for _, p := range pq.construct {
				t := instantiate(p, b)
				if !seen[t.key()] {
					seen[t.key()] = true
					out = append(out, t)
				}
			}
		}
		return &QueryResult{Form: "CONSTRUCT", ConstructTriples: out}, nil
	case "SELECT":
		if pq.countAll {
			alias := pq.countAlias
			if alias == "" {
				alias = "n"
			}
			return &QueryResult{
				Form: "SELECT",
				Vars: []string{alias},
				Rows: []map[string]string{{alias: strconv.Itoa(len(allBindings))}},
			}, nil
		}
		rows := make([]map[string]string, 0, len(allBindings))
		for _, b := range allBindings {
			row := make(map[string]string, len(pq.vars))
			for _, v := range pq.vars {
				row[v] = b[v]
			}
			rows = append(rows, row)
		}
		if pq.offset > 0 && pq.offset < len(rows) {
			rows = rows[pq.offset:]
		} else if pq.offset >= len(rows) {
			rows = nil
		}
		if pq.limit >= 0 && pq.limit < len(rows) {
			rows = rows[:pq.limit]
		}
		return &QueryResult{Form: "SELECT", Vars: pq.vars, Rows: rows}, nil
	}
	return nil, rerrors.New(rerrors.Validation, "unreachable query form")
}

// matchPatterns performs a naive nested-loop conjunctive join of
// patterns over triples, accumulating variable bindings. Adequate for
// the bounded, internally-issued query set this engine supports; a
// production-scale store would index by (graph, predicate).
func matchPatterns(patterns []triplePattern, triples []Triple) []map[string]string {
	bindings := []map[string]string{{}}
	for _, p := range patterns {
		var next []map[string]string
		for _, b := range bindings {
			for _, t := range triples {
				nb, ok := unify(p, t, b)
				if ok {
					next = append(next, nb)
				}
			}
		}
		bindings = next
		if len(bindings) == 0 {
			return nil
		}
	}
	return bindings
}

func unify(p triplePattern, t Triple, b map[string]string) (map[string]string, bool) {
	nb := make(map[string]string, len(b)+3)
	for k, v := range b {
		nb[k] = v
	}
	if !bindTerm(p.S, t.Subject, nb) {
		return nil, false
	}
	predTarget := t.Predicate
	if !bindTerm(p.P, predTarget, nb) {
		return nil, false
	}
	if !bindTerm(p.O, t.Object, nb) {
		return nil, false
	}
	return nb, true
}

func bindTerm(term, value string, b map[string]string) bool {
	if isVar(term) {
		name := strings.TrimPrefix(term, "?")
		if existing, ok := b[name]; ok {
			return existing == value
		}
		b[name] = value
		return true
	}
	return term == value
}

func instantiate(p triplePattern, b map[string]string) Triple {
	sub := p.S
	if isVar(sub) {
		sub = b[strings.TrimPrefix(sub, "?")]
	}
	pred := p.P
	if isVar(pred) {
		pred = b[strings.TrimPrefix(pred, "?")]
	}
	obj := p.O
	if isVar(obj) {
		obj = b[strings.TrimPrefix(obj, "?")]
	}
	return Triple{Subject: sub, Predicate: pred, Object: obj}
}
