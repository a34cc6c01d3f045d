package export

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/repolex-dev/repolex/rerrors"
)

// headerRecord, functionRecord, classRecord, moduleRecord, and
// footerRecord render the compact export record schema from spec.md
// section 6 exactly, short field names included, so a general-purpose
// structured-query tool can consume the stream without this package.
type headerRecord struct {
	Type    string `json:"type"`
	Repo    string `json:"repo"`
	Release string `json:"release"`
}

// stringsRecord carries the deduplicated string table referenced by
// every later record's *ID fields, keyed by position: entry i is id i.
// It is written once, right after the header, so a consumer can build
// its lookup table before it sees the first reference to it.
type stringsRecord struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

type functionRecord struct {
	Type     string `json:"type"`
	Name     string `json:"n"`
	Sig      string `json:"s"`
	ModuleID int    `json:"m"`
	FileID   int    `json:"f"`
	Line     int    `json:"l"`
	LOC      int    `json:"loc"`
	Category string `json:"cat"`
	Refactor string `json:"refactor"`
}

type classRecord struct {
	Type     string `json:"type"`
	Name     string `json:"n"`
	ModuleID int    `json:"m"`
	Inherits string `json:"inherits"`
	Methods  int    `json:"methods"`
	Category string `json:"cat"`
	Refactor string `json:"refactor"`
}

type moduleRecord struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	PathID        int    `json:"path"`
	FunctionCount int    `json:"function_count"`
	Category      string `json:"category"`
}

type footerStats struct {
	FunctionsExported int `json:"functions_exported"`
	ClassesExported   int `json:"classes_exported"`
	ModulesExported   int `json:"modules_exported"`
}

type footerRecord struct {
	Type  string      `json:"type"`
	Stats footerStats `json:"stats"`
}

// Compact streams the line-delimited JSON compact export for one
// repository version directly to w. On any failure the caller is
// responsible for discarding w's partial contents (CompactToFile does
// this for the common file-destination case), per the Export error
// kind's "abort export; partial file removed" recovery.
func (e *Exporter) Compact(ctx context.Context, org, repo, version string, w io.Writer) error {
	stable, impl, files, err := e.readGraphs(ctx, org, repo, version)
	if err != nil {
		return err
	}
	funcs, classes, modules := e.collect(stable, impl, files)

	enc := json.NewEncoder(w)

	if err := enc.Encode(headerRecord{Type: "header", Repo: org + "/" + repo, Release: version}); err != nil {
		return rerrors.Wrap(rerrors.Export, err, "write header record")
	}

	// Every module/file path funcs, classes, and modules reference was
	// interned into e.strings during collect above; emit it now so
	// every *ID field below resolves against a table the reader has
	// already seen.
	if err := enc.Encode(stringsRecord{Type: "strings", Values: e.strings.values()}); err != nil {
		return rerrors.Wrap(rerrors.Export, err, "write strings record")
	}

	for _, fn := range funcs {
		rec := functionRecord{
			Type: "function", Name: fn.Name, Sig: fn.Signature, ModuleID: fn.ModulePathID,
			FileID: fn.FileID, Line: fn.StartLine, LOC: fn.EndLine - fn.StartLine,
			Category: fn.Category, Refactor: fn.Refactor,
		}
		if err := enc.Encode(rec); err != nil {
			return rerrors.Wrap(rerrors.Export, err, "write function record")
		}
	}

	for _, cls := range classes {
		rec := classRecord{
			Type: "class", Name: cls.Name, ModuleID: cls.ModulePathID, Inherits: cls.Inherits,
			Methods: cls.Methods, Category: cls.Category, Refactor: cls.Refactor,
		}
		if err := enc.Encode(rec); err != nil {
			return rerrors.Wrap(rerrors.Export, err, "write class record")
		}
	}

	for _, mod := range modules {
		rec := moduleRecord{
			Type: "module", Name: mod.Name, PathID: mod.FileID,
			FunctionCount: mod.FunctionCount, Category: mod.Category,
		}
		if err := enc.Encode(rec); err != nil {
			return rerrors.Wrap(rerrors.Export, err, "write module record")
		}
	}

	footer := footerRecord{Type: "footer", Stats: footerStats{
		FunctionsExported: len(funcs), ClassesExported: len(classes), ModulesExported: len(modules),
	}}
	if err := enc.Encode(footer); err != nil {
		return rerrors.Wrap(rerrors.Export, err, "write footer record")
	}
	return nil
}

// CompactToFile writes the compact export to path, removing the partial
// file if the export fails partway through.
func (e *Exporter) CompactToFile(ctx context.Context, org, repo, version, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return rerrors.Wrap(rerrors.Export, err, "create export destination "+path)
	}
	if err := e.Compact(ctx, org, repo, version, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
