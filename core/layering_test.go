package core

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

const modulePath = "github.com/crmarques/declagate"

// packageImports maps module-relative package directories to the imports of
// their non-test files. Third-party and stdlib imports are kept verbatim;
// module imports are stored relative to the module root.
type packageImports map[string][]string

type layeringRule struct {
	name      string
	importers func(dir string) bool
	forbidden func(importer string, imported string) bool
}

func TestPackageLayering(t *testing.T) {
	t.Parallel()

	imports := scanModuleImports(t, "..")
	if len(imports) == 0 {
		t.Fatal("no packages found")
	}

	engine := []string{"reconciler", "diff", "resource", "resource/identity"}
	domain := []string{"backend", "config", "diff", "faults", "orchestrator", "reconciler", "resource", "yamlutil"}

	rules := []layeringRule{
		{
			name:      "providers are wired only by core",
			importers: func(dir string) bool { return dir != "core" && !under(dir, "internal/providers") },
			forbidden: func(_ string, imported string) bool { return under(imported, "internal/providers") },
		},
		{
			name:      "domain packages do not depend on internal packages",
			importers: func(dir string) bool { return underAny(dir, domain) },
			forbidden: func(_ string, imported string) bool { return under(imported, "internal") },
		},
		{
			name:      "providers depend on domain packages and shared helpers",
			importers: func(dir string) bool { return under(dir, "internal/providers") },
			forbidden: func(importer string, imported string) bool {
				switch {
				case imported == importer, under(imported, "internal/providers/shared"):
					return false
				case under(imported, "internal"), imported == "core", under(imported, "orchestrator"):
					return true
				}
				return false
			},
		},
		{
			name:      "cli talks to the orchestrator only",
			importers: func(dir string) bool { return under(dir, "internal/cli") },
			forbidden: func(_ string, imported string) bool {
				return imported == "core" || underAny(imported, []string{
					"internal/providers", "internal/syncer", "internal/loader", "internal/filter", "reconciler",
				})
			},
		},
		{
			name:      "engine packages perform no I/O",
			importers: func(dir string) bool { return slices.Contains(engine, dir) },
			forbidden: func(_ string, imported string) bool {
				switch imported {
				case "os", "net/http", "backend", "io/fs":
					return true
				}
				return under(imported, "internal") || strings.HasPrefix(imported, "github.com/go-logr/") ||
					strings.HasPrefix(imported, "github.com/go-git/") || strings.HasPrefix(imported, "github.com/prometheus/") ||
					strings.HasPrefix(imported, "go.opentelemetry.io/")
			},
		},
	}

	for _, rule := range rules {
		t.Run(rule.name, func(t *testing.T) {
			t.Parallel()

			for dir, dirImports := range imports {
				if !rule.importers(dir) {
					continue
				}
				for _, imported := range dirImports {
					if rule.forbidden(dir, imported) {
						t.Errorf("%s imports %s", dir, imported)
					}
				}
			}
		})
	}
}

func TestEnginePackagesAvoidAnonymousInterfaceAssertions(t *testing.T) {
	t.Parallel()

	fset := token.NewFileSet()
	for _, dir := range []string{"diff", "reconciler"} {
		for _, path := range goSources(t, filepath.Join("..", dir)) {
			file, err := parser.ParseFile(fset, path, nil, 0)
			if err != nil {
				t.Fatalf("parse %s: %v", path, err)
			}
			ast.Inspect(file, func(node ast.Node) bool {
				assertion, ok := node.(*ast.TypeAssertExpr)
				if !ok {
					return true
				}
				if _, anonymous := assertion.Type.(*ast.InterfaceType); anonymous {
					t.Errorf("%s: anonymous interface assertion", fset.Position(assertion.Pos()))
				}
				return true
			})
		}
	}
}

func scanModuleImports(t *testing.T, root string) packageImports {
	t.Helper()

	imports := packageImports{}
	fset := token.NewFileSet()
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			if path != root && (strings.HasPrefix(entry.Name(), "_") || strings.HasPrefix(entry.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		relDir, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return err
		}
		dir := filepath.ToSlash(relDir)
		for _, spec := range file.Imports {
			imported := strings.Trim(spec.Path.Value, `"`)
			if relative, ok := strings.CutPrefix(imported, modulePath+"/"); ok {
				imported = relative
			}
			if !slices.Contains(imports[dir], imported) {
				imports[dir] = append(imports[dir], imported)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("import scan failed: %v", err)
	}
	return imports
}

func goSources(t *testing.T, dir string) []string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		t.Fatalf("glob %s: %v", dir, err)
	}
	return slices.DeleteFunc(matches, func(path string) bool {
		return strings.HasSuffix(path, "_test.go")
	})
}

func under(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func underAny(path string, prefixes []string) bool {
	return slices.ContainsFunc(prefixes, func(prefix string) bool { return under(path, prefix) })
}
