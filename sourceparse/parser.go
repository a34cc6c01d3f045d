// Package sourceparse implements the Source Parser (component C of
// spec.md section 4.3). It defines a language-agnostic ParsedEntity
// tagged-variant representation and one concrete implementation that
// parses a single target language's surface syntax.
//
// No multi-language or tree-sitter-style parsing library appears
// anywhere in the retrieved example corpus, so the concrete parser below
// is built on the Go standard library's own go/parser and go/ast --
// recorded as the stdlib-only exception in DESIGN.md. Its dispatch is
// organized around the tagged EntityVariant the way spec.md's Design
// Notes direct: downstream code switches on Variant, never on a runtime
// type assertion chain.
package sourceparse

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/repolex-dev/repolex/rerrors"
)

// EntityVariant tags which of Function, Class, or Module a ParsedEntity
// carries.
type EntityVariant string

const (
	VariantFunction EntityVariant = "function"
	VariantClass    EntityVariant = "class"
	VariantModule   EntityVariant = "module"
)

// Parameter is one formal parameter of a FunctionEntity.
type Parameter struct {
	Name         string
	TypeText     string
	DefaultText  string
	HasDefault   bool
}

// FunctionEntity is a parsed function or method, per spec.md section 4.3.
type FunctionEntity struct {
	QualifiedName string
	ModulePath    string
	Parameters    []Parameter
	ReturnType    string
	Docstring     string
	File          string // relative to the checkout root
	StartLine     int
	EndLine       int
	BodyLines     int
	Calls         []string // names syntactically called from within the body

	// Category and RefactorScore are assigned by the parser itself for
	// functions, per spec.md section 4.3's ownership split (the Graph
	// Builder assigns the equivalent tags for classes and modules).
	Category      string // "function" or "method"
	RefactorScore string
}

// ClassEntity is a parsed class (for Go, any named type declaration,
// with its methods if it has any).
type ClassEntity struct {
	QualifiedName string
	ModulePath    string
	ParentClasses []string
	Methods       []string
	Docstring     string
	File          string
	StartLine     int
	EndLine       int
}

// ModuleEntity is a parsed module (one source file's top-level surface).
type ModuleEntity struct {
	DottedPath    string
	File          string
	TopLevelNames []string
}

// ParsedEntity is the tagged-variant record emitted by the parser. Code
// consuming a ParsedEntity switches on Variant; exactly one of Function,
// Class, or Module is non-nil, matching the Variant.
type ParsedEntity struct {
	Variant  EntityVariant
	Function *FunctionEntity
	Class    *ClassEntity
	Module   *ModuleEntity
}

// Warning reports a recoverable Source error: a file the parser skipped.
type Warning struct {
	File    string
	Message string
}

// Options configures a parse run.
type Options struct {
	MaxFileSizeMB       int           // files larger than this are skipped; default 10
	PerFileTimeout      time.Duration // default 60s, per spec.md section 5
	MaxConcurrentParsers int          // worker pool size for the file walk; default 4
}

func (o Options) withDefaults() Options {
	if o.MaxFileSizeMB <= 0 {
		o.MaxFileSizeMB = 10
	}
	if o.PerFileTimeout <= 0 {
		o.PerFileTimeout = 60 * time.Second
	}
	if o.MaxConcurrentParsers <= 0 {
		o.MaxConcurrentParsers = 4
	}
	return o
}

// Parser is the public contract of the Source Parser component.
type Parser interface {
	// Parse walks root and streams ParsedEntity records and Warnings.
	// Both channels are closed when the walk completes or ctx is
	// cancelled. The caller must drain both channels to avoid leaking
	// the producer goroutine.
	Parse(ctx context.Context, root string, opts Options) (<-chan ParsedEntity, <-chan Warning, error)
}

// isBinary applies a cheap NUL-byte heuristic over the first 8KB of a
// file, the same class of heuristic used by common source-management
// tooling to distinguish text from binary blobs.
func isBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	buf := make([]byte, 8192)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false, nil
	}
	for _, b := range buf[:n] {
		if b == 0 {
			return true, nil
		}
	}
	return false, nil
}

// tooLarge reports whether path exceeds the configured per-file cap.
func tooLarge(path string, maxMB int) (bool, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, 0, err
	}
	return info.Size() > int64(maxMB)*1024*1024, info.Size(), nil
}

// relPath converts an absolute walked path to one relative to root,
// using forward slashes regardless of host OS, matching the git-style
// relative paths the rest of the engine expects.
func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// errUnsupportedRoot wraps a root-directory stat failure as a Source
// error so callers can decide whether to abort the whole build (it's the
// checkout itself that's missing, not one file within it).
func errUnsupportedRoot(root string, cause error) error {
	return rerrors.Wrap(rerrors.Source, cause, "failed to read checkout root "+root)
}
