package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/louisbranch/storefront/internal/platform/scripting"
)

func writeScript(t *testing.T, dir string, name string, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".lua"), []byte(body), 0o644); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
}

func scriptEngine(t *testing.T, dir string) *scripting.Engine {
	t.Helper()
	engine, err := scripting.NewEngine(dir)
	if err != nil {
		t.Fatalf("new scripting engine: %v", err)
	}
	return engine
}

func TestRegisterScriptsAddsPrefixedHandlers(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "cleanup", `function run()
  return "cleaned"
end`)
	writeScript(t, dir, "report", `function run()
end`)

	registry := NewRegistry()
	if err := RegisterScripts(registry, scriptEngine(t, dir)); err != nil {
		t.Fatalf("RegisterScripts() error = %v", err)
	}

	for _, name := range []string{"script:cleanup", "script:report"} {
		if _, ok := registry.Lookup(name); !ok {
			t.Fatalf("handler %q not registered, have %v", name, registry.Names())
		}
	}
}

func TestScriptHandlerRunsScript(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "cleanup", `function run()
  return "cleaned 2 rows"
end`)

	registry := NewRegistry()
	if err := RegisterScripts(registry, scriptEngine(t, dir)); err != nil {
		t.Fatalf("RegisterScripts() error = %v", err)
	}
	handler, ok := registry.Lookup("script:cleanup")
	if !ok {
		t.Fatal("script handler not registered")
	}
	if err := handler.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestScriptHandlerSurfacesScriptError(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "broken", `function run()
  error("boom")
end`)

	registry := NewRegistry()
	if err := RegisterScripts(registry, scriptEngine(t, dir)); err != nil {
		t.Fatalf("RegisterScripts() error = %v", err)
	}
	handler, ok := registry.Lookup("script:broken")
	if !ok {
		t.Fatal("script handler not registered")
	}
	err := handler.Run(context.Background())
	if err == nil {
		t.Fatal("expected the script error to surface")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error = %v, want the script message", err)
	}
}

func TestRegisterScriptsRejectsDuplicateName(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "cleanup", `function run()
end`)

	registry := NewRegistry()
	taken := HandlerFunc("script:cleanup", func(context.Context) error { return nil })
	if err := registry.Register(taken); err != nil {
		t.Fatalf("register handler: %v", err)
	}
	if err := RegisterScripts(registry, scriptEngine(t, dir)); err == nil {
		t.Fatal("expected an error for the duplicate handler name")
	}
}

func TestRegisterScriptsToleratesNilInputs(t *testing.T) {
	if err := RegisterScripts(nil, nil); err != nil {
		t.Fatalf("RegisterScripts(nil, nil) error = %v", err)
	}
}
