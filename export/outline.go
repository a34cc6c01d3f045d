package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/repolex-dev/repolex/ontology"
	"github.com/repolex-dev/repolex/rerrors"
)

// Outline streams the hierarchical module -> class -> function text tree
// named in spec.md section 4.11: one line per entity, per-entity name,
// signature, and the docstring's first line where present.
func (e *Exporter) Outline(ctx context.Context, org, repo, version string, w io.Writer) error {
	stable, impl, files, err := e.readGraphs(ctx, org, repo, version)
	if err != nil {
		return err
	}
	funcs, classes, modules := e.collect(stable, impl, files)
	docstrings := e.docstrings(impl)

	byModule := map[int][]functionEntity{}
	for _, fn := range funcs {
		byModule[fn.ModulePathID] = append(byModule[fn.ModulePathID], fn)
	}
	classesByModule := map[int][]classEntity{}
	for _, cls := range classes {
		classesByModule[cls.ModulePathID] = append(classesByModule[cls.ModulePathID], cls)
	}

	bw := bufio.NewWriter(w)

	type named struct {
		id   int
		name string
	}
	moduleNames := make([]named, 0, len(modules))
	for _, mod := range modules {
		moduleNames = append(moduleNames, named{id: e.strings.id(mod.Name), name: mod.Name})
	}
	sort.Slice(moduleNames, func(i, j int) bool { return moduleNames[i].name < moduleNames[j].name })

	for _, mn := range moduleNames {
		name := mn.name
		if _, err := fmt.Fprintf(bw, "%s\n", name); err != nil {
			return rerrors.Wrap(rerrors.Export, err, "write outline export")
		}
		for _, cls := range classesByModule[mn.id] {
			if _, err := fmt.Fprintf(bw, "  %s\n", cls.Name); err != nil {
				return rerrors.Wrap(rerrors.Export, err, "write outline export")
			}
		}
		for _, fn := range byModule[mn.id] {
			doc := firstLine(docstrings[fn.Name])
			line := fmt.Sprintf("  %s: %s", fn.Name, fn.Signature)
			if doc != "" {
				line += "  // " + doc
			}
			if _, err := fmt.Fprintf(bw, "%s\n", line); err != nil {
				return rerrors.Wrap(rerrors.Export, err, "write outline export")
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return rerrors.Wrap(rerrors.Export, err, "flush outline export")
	}
	return nil
}

// docstrings re-keys the implementation graph's docstring predicate by
// short function name, the only join key Outline needs that Compact's
// schema does not carry (spec.md's compact record schema omits
// docstrings entirely; outline is the one export that surfaces them).
func (e *Exporter) docstrings(impl map[string]entityRow) map[string]string {
	out := map[string]string{}
	for _, row := range impl {
		doc := row.first(ontology.PredDocstring)
		if doc == "" {
			continue
		}
		// Best-effort join: the implementation graph has no canonical-name
		// predicate of its own, so this keys off the signature's leading
		// qualified-name segment the same way SignatureText renders it.
		sig := row.first(ontology.PredSignature)
		if idx := strings.Index(sig, "("); idx > 0 {
			out[shortName(sig[:idx])] = doc
		}
	}
	return out
}

func firstLine(doc string) string {
	if idx := strings.IndexByte(doc, '\n'); idx >= 0 {
		return doc[:idx]
	}
	return doc
}

// OutlineToFile writes the outline export to path, removing the partial
// file if the export fails partway through.
func (e *Exporter) OutlineToFile(ctx context.Context, org, repo, version, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return rerrors.Wrap(rerrors.Export, err, "create export destination "+dest)
	}
	if err := e.Outline(ctx, org, repo, version, f); err != nil {
		f.Close()
		os.Remove(dest)
		return err
	}
	return f.Close()
}
