package eventdocgen

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixtureRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"go.mod": "module example.com/fixture\n\ngo 1.26.0\n",
		"internal/platform/events/events.go": `// Package events defines the fixture event contract.
package events

// Event types published by fixtures.
const (
	WidgetCreated = "widget.created"
	WidgetDeleted = "widget.deleted"
)

// Event is the envelope.
type Event struct {
	Type    string ` + "`json:\"type\"`" + `
	Payload any    ` + "`json:\"payload\"`" + `
}

// WidgetEvent is the payload for widget.* events.
type WidgetEvent struct {
	WidgetID string ` + "`json:\"widgetId\"`" + `
	Count    int    ` + "`json:\"count,omitempty\"`" + `
}
`,
		"internal/services/demo/demo.go": `package demo

import "example.com/fixture/internal/platform/events"

func Emit(publish func(string, any)) {
	publish(events.WidgetCreated, events.WidgetEvent{WidgetID: "w1"})
}
`,
	}
	for path, content := range files {
		full := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return root
}

func findEvent(t *testing.T, catalog Catalog, name string) EventDef {
	t.Helper()
	for _, event := range catalog.Events {
		if event.Name == name {
			return event
		}
	}
	t.Fatalf("event %s not in catalog", name)
	return EventDef{}
}

func TestBuildCatalogFromFixtureRepo(t *testing.T) {
	root := writeFixtureRepo(t)

	catalog, err := BuildCatalog(root)
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}

	if len(catalog.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(catalog.Events))
	}
	created := findEvent(t, catalog, "WidgetCreated")
	if created.Value != "widget.created" {
		t.Fatalf("value = %q, want %q", created.Value, "widget.created")
	}
	if len(created.References) != 1 || !strings.HasPrefix(created.References[0], "internal/services/demo/demo.go:") {
		t.Fatalf("references = %v, want one demo.go site", created.References)
	}
	deleted := findEvent(t, catalog, "WidgetDeleted")
	if len(deleted.References) != 0 {
		t.Fatalf("references = %v, want none", deleted.References)
	}

	if len(catalog.Payloads) != 1 {
		t.Fatalf("payloads = %+v, want only WidgetEvent", catalog.Payloads)
	}
	payload := catalog.Payloads[0]
	if payload.Name != "WidgetEvent" {
		t.Fatalf("payload = %q, want WidgetEvent", payload.Name)
	}
	if len(payload.Fields) != 2 || payload.Fields[0].JSONTag != "widgetId" || payload.Fields[1].JSONTag != "count,omitempty" {
		t.Fatalf("fields = %+v", payload.Fields)
	}
	if !strings.Contains(payload.Doc, "payload for widget.* events") {
		t.Fatalf("doc = %q", payload.Doc)
	}
}

func TestBuildCatalogFromModuleRoot(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("get working dir: %v", err)
	}
	root, err := findModuleRoot(wd)
	if err != nil {
		t.Fatalf("find module root: %v", err)
	}

	catalog, err := BuildCatalog(root)
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}

	created := findEvent(t, catalog, "CountryCreated")
	if created.Value != "country.created" {
		t.Fatalf("value = %q, want %q", created.Value, "country.created")
	}
	found := false
	for _, ref := range created.References {
		if strings.HasPrefix(ref, "internal/services/directory/service.go:") {
			found = true
		}
	}
	if !found {
		t.Fatalf("references = %v, want a directory service site", created.References)
	}

	for _, payload := range catalog.Payloads {
		if payload.Name == "Event" {
			t.Fatal("envelope listed as payload")
		}
	}
}

func TestRunWritesCatalog(t *testing.T) {
	root := writeFixtureRepo(t)

	var out bytes.Buffer
	if err := Run(Config{Root: root, Out: "docs/event-catalog.md"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "docs/event-catalog.md"))
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "# Event Catalog") {
		t.Fatalf("catalog missing title:\n%s", content)
	}
	if !strings.Contains(content, "| `WidgetCreated` | `widget.created` |") {
		t.Fatalf("catalog missing event row:\n%s", content)
	}
	if !strings.Contains(content, "### WidgetEvent") {
		t.Fatalf("catalog missing payload section:\n%s", content)
	}
	if !strings.Contains(out.String(), "wrote ") {
		t.Fatalf("output = %q", out.String())
	}
}
