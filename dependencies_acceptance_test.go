package tasklane_test

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestModuleDependencies(t *testing.T) {
	for _, module := range []string{
		"github.com/golang-jwt/jwt/v5",
		"github.com/google/uuid",
		"golang.org/x/crypto",
		"golang.org/x/time",
		"gorm.io/driver/postgres",
		"github.com/glebarez/sqlite",
		"github.com/simp-lee/logger",
	} {
		t.Run(module, func(t *testing.T) {
			testModulePresence(t, module)
		})
	}
}

// Feature modules are composed by internal/app and must never import it.
func TestModules_DoNotImportHost(t *testing.T) {
	t.Run("happy_repo_modules_are_independent", func(t *testing.T) {
		matches, err := findHostImports(filepath.Join("internal", "module"))
		if err != nil {
			t.Fatalf("scan modules: %v", err)
		}
		if len(matches) != 0 {
			t.Fatalf("modules import internal/app: %v", matches)
		}
	})

	t.Run("error_fixture_with_host_import_is_detected", func(t *testing.T) {
		fixture := `package task

import "github.com/tasklane/tasklane/internal/app"`
		if !importsHost(fixture) {
			t.Fatal("expected host import to be detected in fixture")
		}
	})
}

func testModulePresence(t *testing.T, module string) {
	t.Helper()

	t.Run("happy_present_in_real_go_mod", func(t *testing.T) {
		goMod, err := os.ReadFile("go.mod")
		if err != nil {
			t.Fatalf("read go.mod: %v", err)
		}
		if !moduleRequired(string(goMod), module) {
			t.Fatalf("expected module %q to be present in go.mod", module)
		}
	})

	t.Run("error_missing_module_in_fixture", func(t *testing.T) {
		fixture := `module example.com/demo

go 1.25.0

require (
	github.com/gin-gonic/gin v1.11.0
)`
		if moduleRequired(fixture, module) {
			t.Fatalf("expected fixture to not contain module %q", module)
		}
	})
}

func moduleRequired(goModContent, module string) bool {
	re := regexp.MustCompile(`(?m)^\s*(require\s+)?` + regexp.QuoteMeta(module) + `\s+v\S+`)
	return re.MatchString(goModContent)
}

func findHostImports(root string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".go" {
			return nil
		}
		b, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		if importsHost(string(b)) {
			matches = append(matches, path)
		}
		return nil
	})
	return matches, err
}

func importsHost(content string) bool {
	return strings.Contains(content, `"github.com/tasklane/tasklane/internal/app"`)
}
