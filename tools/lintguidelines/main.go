// Command lintguidelines checks the layering and documentation rules the
// carimport packages follow. Run it from the repo root:
//
//	go run ./tools/lintguidelines --strict
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// sharedKernels are domain packages any concept may import.
var sharedKernels = map[string]bool{"sanitize": true}

// contractPrefixes name the application entry points that must document PRE and POST.
var contractPrefixes = []string{"Execute", "Get", "List", "Run"}

type violation struct {
	Rule    string
	File    string
	Line    int
	Message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d: [%s] %s", v.File, v.Line, v.Rule, v.Message)
}

func main() {
	root := flag.String("root", ".", "repository root")
	strict := flag.Bool("strict", false, "exit non-zero when violations are found")
	flag.Parse()

	violations, err := lint(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lintguidelines:", err)
		os.Exit(2)
	}
	for _, v := range violations {
		fmt.Println(v)
	}
	if len(violations) > 0 && *strict {
		os.Exit(1)
	}
}

// lint walks root/internal and returns violations sorted by file and line.
func lint(root string) ([]violation, error) {
	module, err := modulePath(root)
	if err != nil {
		return nil, err
	}
	domains, err := subdirs(filepath.Join(root, "internal", "domain"))
	if err != nil {
		return nil, err
	}

	var out []violation
	fset := token.NewFileSet()
	internal := filepath.Join(root, "internal")
	err = filepath.WalkDir(internal, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		parts := strings.Split(rel, "/")

		switch {
		case len(parts) > 3 && parts[1] == "domain":
			out = append(out, checkDomainImports(fset, file, rel, module, parts[2])...)
		case len(parts) > 3 && parts[1] == "application" && (parts[2] == "orchestrators" || parts[2] == "projections"):
			out = append(out, checkContracts(fset, file, rel)...)
		case len(parts) > 4 && parts[1] == "adapters" && parts[2] == "storage":
			out = append(out, checkStorage(rel, parts[3], domains)...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out = dedupe(out)
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	return out, nil
}

// checkDomainImports keeps domain packages free of outer layers and of each other.
func checkDomainImports(fset *token.FileSet, file *ast.File, rel, module, concept string) []violation {
	var out []violation
	for _, imp := range file.Imports {
		path, _ := strconv.Unquote(imp.Path.Value)
		line := fset.Position(imp.Pos()).Line
		switch {
		case strings.HasPrefix(path, module+"/internal/application"), strings.HasPrefix(path, module+"/internal/adapters"):
			out = append(out, violation{"layering", rel, line, fmt.Sprintf("domain %s imports %s", concept, path)})
		case path == "database/sql" || path == "net/http":
			out = append(out, violation{"layering", rel, line, fmt.Sprintf("domain %s imports %s", concept, path)})
		case strings.HasPrefix(path, module+"/internal/domain/"):
			other := strings.TrimPrefix(path, module+"/internal/domain/")
			if other != concept && !sharedKernels[other] {
				out = append(out, violation{"concept-coupling", rel, line, fmt.Sprintf("domain %s imports domain %s", concept, other)})
			}
		}
	}
	return out
}

// checkContracts requires PRE and POST lines on application entry points.
func checkContracts(fset *token.FileSet, file *ast.File, rel string) []violation {
	var out []violation
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || !fn.Name.IsExported() || !hasContractPrefix(fn.Name.Name) {
			continue
		}
		doc := ""
		if fn.Doc != nil {
			doc = fn.Doc.Text()
		}
		var missing []string
		for _, tag := range []string{"PRE:", "POST:"} {
			if !strings.Contains(doc, tag) {
				missing = append(missing, tag)
			}
		}
		if len(missing) > 0 {
			out = append(out, violation{"contracts", rel, fset.Position(fn.Pos()).Line,
				fmt.Sprintf("%s is missing %s", fn.Name.Name, strings.Join(missing, " and "))})
		}
	}
	return out
}

func hasContractPrefix(name string) bool {
	for _, p := range contractPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// checkStorage requires every store package to persist a domain concept.
func checkStorage(rel, pkg string, domains map[string]bool) []violation {
	if domains[pkg] || strings.HasSuffix(pkg, "test") {
		return nil
	}
	return []violation{{"storage-isolation", rel, 1, fmt.Sprintf("store %s has no domain package", pkg)}}
}

func modulePath(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("read go.mod: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "module "); ok {
			return strings.TrimSpace(rest), nil
		}
	}
	return "", fmt.Errorf("go.mod has no module line")
}

func subdirs(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out[e.Name()] = true
		}
	}
	return out, nil
}

// dedupe keeps one storage-isolation finding per package.
func dedupe(in []violation) []violation {
	seen := map[string]bool{}
	var out []violation
	for _, v := range in {
		if v.Rule == "storage-isolation" {
			key := filepath.Dir(v.File)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, v)
	}
	return out
}
