// Package eventdocgen renders a markdown catalog of the platform event
// contract: every event type constant, the payload structs, and the call
// sites that reference each event.
//
// Event constants are discovered from const blocks in the events package
// whose doc comment begins with "Event types". Payload structs are the
// exported types ending in "Event", excluding the envelope itself.
package eventdocgen

import (
	"bytes"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

const eventsDir = "internal/platform/events"

var referenceRoots = []string{"internal/services", "internal/engine", "internal/cmd"}

// EventDef describes one event type constant and where it is referenced.
type EventDef struct {
	Name       string
	Value      string
	References []string
}

// FieldDef describes one payload struct field.
type FieldDef struct {
	Name    string
	Type    string
	JSONTag string
}

// PayloadDef describes one payload struct.
type PayloadDef struct {
	Name   string
	Doc    string
	Fields []FieldDef
}

// Catalog holds everything the markdown artifact renders.
type Catalog struct {
	Events   []EventDef
	Payloads []PayloadDef
}

// Config holds event catalog command configuration.
type Config struct {
	Root string
	Out  string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.StringVar(&cfg.Root, "root", "", "repo root (defaults to locating go.mod upward)")
	fs.StringVar(&cfg.Out, "out", "docs/event-catalog.md", "output path for the catalog")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the catalog and writes the markdown artifact.
func Run(cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	root := cfg.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working dir: %w", err)
		}
		root, err = findModuleRoot(wd)
		if err != nil {
			return err
		}
	}

	catalog, err := BuildCatalog(root)
	if err != nil {
		return err
	}

	output := cfg.Out
	if !filepath.IsAbs(output) {
		output = filepath.Join(root, cfg.Out)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(output, []byte(render(catalog)), 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	fmt.Fprintf(out, "wrote %s\n", output)
	return nil
}

// BuildCatalog parses the events package under root and scans the reference
// roots for call sites naming each event constant.
func BuildCatalog(root string) (Catalog, error) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, filepath.Join(root, eventsDir), func(info os.FileInfo) bool {
		return !strings.HasSuffix(info.Name(), "_test.go")
	}, parser.ParseComments)
	if err != nil {
		return Catalog{}, fmt.Errorf("parse %s: %w", eventsDir, err)
	}

	var catalog Catalog
	var eventsImportPath string
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			if eventsImportPath == "" {
				eventsImportPath = modulePathJoin(root, eventsDir)
			}
			for _, decl := range file.Decls {
				gen, ok := decl.(*ast.GenDecl)
				if !ok {
					continue
				}
				switch gen.Tok {
				case token.CONST:
					if gen.Doc == nil || !strings.HasPrefix(gen.Doc.Text(), "Event types") {
						continue
					}
					catalog.Events = append(catalog.Events, parseEventConsts(gen)...)
				case token.TYPE:
					catalog.Payloads = append(catalog.Payloads, parsePayloads(gen, fset)...)
				}
			}
		}
	}

	sort.Slice(catalog.Events, func(i, j int) bool { return catalog.Events[i].Value < catalog.Events[j].Value })
	sort.Slice(catalog.Payloads, func(i, j int) bool { return catalog.Payloads[i].Name < catalog.Payloads[j].Name })

	if err := scanReferences(root, eventsImportPath, catalog.Events); err != nil {
		return Catalog{}, err
	}
	return catalog, nil
}

func parseEventConsts(gen *ast.GenDecl) []EventDef {
	var defs []EventDef
	for _, spec := range gen.Specs {
		valueSpec, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		for idx, name := range valueSpec.Names {
			if !name.IsExported() || idx >= len(valueSpec.Values) {
				continue
			}
			lit, ok := valueSpec.Values[idx].(*ast.BasicLit)
			if !ok || lit.Kind != token.STRING {
				continue
			}
			value, err := strconv.Unquote(lit.Value)
			if err != nil {
				continue
			}
			defs = append(defs, EventDef{Name: name.Name, Value: value})
		}
	}
	return defs
}

func parsePayloads(gen *ast.GenDecl, fset *token.FileSet) []PayloadDef {
	var defs []PayloadDef
	for _, spec := range gen.Specs {
		typeSpec, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}
		name := typeSpec.Name.Name
		if name == "Event" || !strings.HasSuffix(name, "Event") {
			continue
		}
		structType, ok := typeSpec.Type.(*ast.StructType)
		if !ok {
			continue
		}
		doc := ""
		if gen.Doc != nil {
			doc = strings.TrimSpace(gen.Doc.Text())
		}
		defs = append(defs, PayloadDef{
			Name:   name,
			Doc:    doc,
			Fields: parseFields(structType.Fields, fset),
		})
	}
	return defs
}

func parseFields(fields *ast.FieldList, fset *token.FileSet) []FieldDef {
	if fields == nil {
		return nil
	}
	var out []FieldDef
	for _, field := range fields.List {
		typeString := exprString(fset, field.Type)
		jsonTag := ""
		if field.Tag != nil {
			if tagValue, err := strconv.Unquote(field.Tag.Value); err == nil {
				jsonTag = reflect.StructTag(tagValue).Get("json")
			}
		}
		for _, name := range field.Names {
			out = append(out, FieldDef{Name: name.Name, Type: typeString, JSONTag: jsonTag})
		}
	}
	return out
}

// scanReferences walks the reference roots and records file:line for every
// selector naming an event constant through the events package import.
func scanReferences(root string, eventsImportPath string, events []EventDef) error {
	byName := make(map[string]*EventDef, len(events))
	for i := range events {
		byName[events[i].Name] = &events[i]
	}

	for _, refRoot := range referenceRoots {
		dir := filepath.Join(root, refRoot)
		err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			return scanFile(path, root, eventsImportPath, byName)
		})
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("scan %s: %w", refRoot, err)
		}
	}

	for i := range events {
		sort.Strings(events[i].References)
	}
	return nil
}

func scanFile(path string, root string, eventsImportPath string, byName map[string]*EventDef) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, 0)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	alias := ""
	for _, imp := range file.Imports {
		importPath, err := strconv.Unquote(imp.Path.Value)
		if err != nil || importPath != eventsImportPath {
			continue
		}
		alias = filepath.Base(importPath)
		if imp.Name != nil && imp.Name.Name != "" {
			alias = imp.Name.Name
		}
	}
	if alias == "" || alias == "_" {
		return nil
	}

	ast.Inspect(file, func(node ast.Node) bool {
		sel, ok := node.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		ident, ok := sel.X.(*ast.Ident)
		if !ok || ident.Name != alias {
			return true
		}
		def, ok := byName[sel.Sel.Name]
		if !ok {
			return true
		}
		position := fset.Position(sel.Pos())
		rel, err := filepath.Rel(root, position.Filename)
		if err != nil {
			rel = position.Filename
		}
		def.References = append(def.References, fmt.Sprintf("%s:%d", filepath.ToSlash(rel), position.Line))
		return true
	})
	return nil
}

func render(catalog Catalog) string {
	var b strings.Builder
	b.WriteString("# Event Catalog\n\n")
	b.WriteString("Generated by `event-docgen`.\n\n")

	b.WriteString("## Event Types\n\n")
	b.WriteString("| Constant | Type | Referenced At |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, event := range catalog.Events {
		refs := "-"
		if len(event.References) > 0 {
			quoted := make([]string, 0, len(event.References))
			for _, ref := range event.References {
				quoted = append(quoted, "`"+ref+"`")
			}
			refs = strings.Join(quoted, "<br>")
		}
		fmt.Fprintf(&b, "| `%s` | `%s` | %s |\n", event.Name, event.Value, refs)
	}

	b.WriteString("\n## Payloads\n")
	for _, payload := range catalog.Payloads {
		fmt.Fprintf(&b, "\n### %s\n\n", payload.Name)
		if payload.Doc != "" {
			b.WriteString(payload.Doc)
			b.WriteString("\n\n")
		}
		b.WriteString("| Field | Type | JSON |\n")
		b.WriteString("| --- | --- | --- |\n")
		for _, field := range payload.Fields {
			jsonTag := field.JSONTag
			if jsonTag == "" {
				jsonTag = "-"
			}
			fmt.Fprintf(&b, "| `%s` | `%s` | `%s` |\n", field.Name, field.Type, jsonTag)
		}
	}
	return b.String()
}

func exprString(fset *token.FileSet, expr ast.Expr) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, expr); err != nil {
		return ""
	}
	return buf.String()
}

// modulePathJoin derives the import path of a directory under root from the
// module declaration in go.mod.
func modulePathJoin(root string, dir string) string {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if module, ok := strings.CutPrefix(line, "module "); ok {
			return strings.TrimSpace(module) + "/" + filepath.ToSlash(dir)
		}
	}
	return ""
}

func findModuleRoot(start string) (string, error) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("go.mod not found above %s", start)
}
