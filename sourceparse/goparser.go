package sourceparse

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/repolex-dev/repolex/refactor"
)

// GoSourceParser is the concrete single-language implementation of
// Parser named in spec.md section 4.3: it handles Go's surface syntax,
// using go/parser and go/ast from the standard library (see DESIGN.md
// for why no third-party parsing library from the corpus fits here).
type GoSourceParser struct{}

// NewGoSourceParser constructs a GoSourceParser.
func NewGoSourceParser() *GoSourceParser { return &GoSourceParser{} }

// Parse implements Parser.
func (p *GoSourceParser) Parse(ctx context.Context, root string, opts Options) (<-chan ParsedEntity, <-chan Warning, error) {
	opts = opts.withDefaults()

	entities := make(chan ParsedEntity, 64)
	warnings := make(chan Warning, 64)

	files, err := collectGoFiles(root)
	if err != nil {
		return nil, nil, errUnsupportedRoot(root, err)
	}

	paths := make(chan string)
	var wg sync.WaitGroup
	workers := opts.MaxConcurrentParsers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				parseOneFile(root, path, opts, entities, warnings)
			}
		}()
	}

	go func() {
		defer close(paths)
		for _, path := range files {
			select {
			case <-ctx.Done():
				return
			case paths <- path:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(entities)
		close(warnings)
	}()

	return entities, warnings, nil
}

// parseOneFile parses a single source file, reporting size/binary/syntax
// problems as warnings rather than failing the whole walk. Safe to run
// from multiple goroutines concurrently: entities and warnings are
// channels, and each call only touches its own path.
func parseOneFile(root, path string, opts Options, entities chan<- ParsedEntity, warnings chan<- Warning) {
	rel := relPath(root, path)

	if large, size, err := tooLarge(path, opts.MaxFileSizeMB); err != nil {
		warnings <- Warning{File: rel, Message: "stat failed: " + err.Error()}
		return
	} else if large {
		warnings <- Warning{File: rel, Message: oversizedMessage(size, opts.MaxFileSizeMB)}
		return
	}

	if bin, err := isBinary(path); err != nil {
		warnings <- Warning{File: rel, Message: "read failed: " + err.Error()}
		return
	} else if bin {
		warnings <- Warning{File: rel, Message: "skipped binary file"}
		return
	}

	start := time.Now()
	fset := token.NewFileSet()
	astFile, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		warnings <- Warning{File: rel, Message: "syntax error: " + err.Error()}
		return
	}
	if elapsed := time.Since(start); elapsed > opts.PerFileTimeout {
		warnings <- Warning{File: rel, Message: "parse exceeded per-file timeout"}
		return
	}

	emitFile(fset, astFile, rel, entities)
}

func oversizedMessage(size int64, maxMB int) string {
	mb := float64(size) / (1024 * 1024)
	return fmt.Sprintf("skipped file exceeding max_file_size_mb (%.1fMB > %dMB)", mb, maxMB)
}

func collectGoFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if name == ".git" || (strings.HasPrefix(name, ".") && name != "." && name != "..") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func modulePath(rel string) string {
	dir := filepath.Dir(filepath.ToSlash(rel))
	if dir == "." {
		return ""
	}
	return strings.ReplaceAll(dir, "/", ".")
}

func emitFile(fset *token.FileSet, f *ast.File, rel string, entities chan<- ParsedEntity) {
	modPath := modulePath(rel)
	dotted := modPath
	if dotted != "" {
		dotted += "."
	}
	dotted += strings.TrimSuffix(filepath.Base(rel), ".go")

	topLevel := make([]string, 0, len(f.Decls))
	methodsByType := map[string][]string{}
	parentsByType := map[string][]string{}
	typeDocs := map[string]string{}
	typeSpans := map[string][2]int{}

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			name := d.Name.Name
			qualified := dotted + "." + name
			recv := receiverTypeName(d)
			if recv != "" {
				qualified = dotted + "." + recv + "." + name
				methodsByType[recv] = append(methodsByType[recv], qualified)
			} else {
				topLevel = append(topLevel, name)
			}

			startPos := fset.Position(d.Pos())
			endPos := fset.Position(d.End())
			bodyLines := endPos.Line - startPos.Line
			category := "function"
			if recv != "" {
				category = "method"
			}
			fn := &FunctionEntity{
				QualifiedName: qualified,
				ModulePath:    dotted,
				Parameters:    extractParams(d.Type),
				ReturnType:    extractReturnType(d.Type),
				Docstring:     strings.TrimSpace(d.Doc.Text()),
				File:          rel,
				StartLine:     startPos.Line,
				EndLine:       endPos.Line,
				BodyLines:     bodyLines,
				Calls:         extractCalls(d.Body),
				Category:      category,
				RefactorScore: refactor.Function(bodyLines),
			}
			entities <- ParsedEntity{Variant: VariantFunction, Function: fn}

		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				topLevel = append(topLevel, ts.Name.Name)
				doc := strings.TrimSpace(d.Doc.Text())
				if doc == "" {
					doc = strings.TrimSpace(ts.Doc.Text())
				}
				typeDocs[ts.Name.Name] = doc
				start := fset.Position(ts.Pos())
				end := fset.Position(ts.End())
				typeSpans[ts.Name.Name] = [2]int{start.Line, end.Line}

				if st, ok := ts.Type.(*ast.StructType); ok {
					parentsByType[ts.Name.Name] = extractEmbeds(st)
				}
			}
		}
	}

	for typeName, span := range typeSpans {
		cls := &ClassEntity{
			QualifiedName: dotted + "." + typeName,
			ModulePath:    dotted,
			ParentClasses: parentsByType[typeName],
			Methods:       methodsByType[typeName],
			Docstring:     typeDocs[typeName],
			File:          rel,
			StartLine:     span[0],
			EndLine:       span[1],
		}
		entities <- ParsedEntity{Variant: VariantClass, Class: cls}
	}

	entities <- ParsedEntity{Variant: VariantModule, Module: &ModuleEntity{
		DottedPath:    dotted,
		File:          rel,
		TopLevelNames: topLevel,
	}}
}

func receiverTypeName(d *ast.FuncDecl) string {
	if d.Recv == nil || len(d.Recv.List) == 0 {
		return ""
	}
	expr := d.Recv.List[0].Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	if ident, ok := expr.(*ast.Ident); ok {
		return ident.Name
	}
	return ""
}

func extractParams(ft *ast.FuncType) []Parameter {
	var params []Parameter
	if ft.Params == nil {
		return params
	}
	for _, field := range ft.Params.List {
		typeText := exprText(field.Type)
		if len(field.Names) == 0 {
			params = append(params, Parameter{Name: "", TypeText: typeText})
			continue
		}
		for _, name := range field.Names {
			params = append(params, Parameter{Name: name.Name, TypeText: typeText})
		}
	}
	return params
}

func extractReturnType(ft *ast.FuncType) string {
	if ft.Results == nil || len(ft.Results.List) == 0 {
		return ""
	}
	var parts []string
	for _, field := range ft.Results.List {
		parts = append(parts, exprText(field.Type))
	}
	return strings.Join(parts, ", ")
}

func extractEmbeds(st *ast.StructType) []string {
	var embeds []string
	if st.Fields == nil {
		return embeds
	}
	for _, field := range st.Fields.List {
		if len(field.Names) == 0 {
			embeds = append(embeds, exprText(field.Type))
		}
	}
	return embeds
}

func extractCalls(body *ast.BlockStmt) []string {
	if body == nil {
		return nil
	}
	seen := map[string]bool{}
	var calls []string
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		name := calleeName(call.Fun)
		if name != "" && !seen[name] {
			seen[name] = true
			calls = append(calls, name)
		}
		return true
	})
	return calls
}

func calleeName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		if ident, ok := e.X.(*ast.Ident); ok {
			return ident.Name + "." + e.Sel.Name
		}
		return e.Sel.Name
	}
	return ""
}

// exprText renders a type expression back to source text without
// depending on go/printer, which would pull in formatting concerns this
// parser doesn't need; a best-effort textual rendering is sufficient for
// the signature text stored on a FunctionImplementation.
func exprText(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.StarExpr:
		return "*" + exprText(e.X)
	case *ast.SelectorExpr:
		return exprText(e.X) + "." + e.Sel.Name
	case *ast.ArrayType:
		return "[]" + exprText(e.Elt)
	case *ast.MapType:
		return "map[" + exprText(e.Key) + "]" + exprText(e.Value)
	case *ast.Ellipsis:
		return "..." + exprText(e.Elt)
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.FuncType:
		return "func(...)"
	default:
		return "any"
	}
}
