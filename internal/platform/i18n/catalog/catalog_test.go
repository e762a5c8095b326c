package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbeddedHasExpectedLocales(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	if !bundle.HasLocale(BaseLocale) {
		t.Fatalf("expected base locale %s", BaseLocale)
	}
	if !bundle.HasLocale("pt-BR") {
		t.Fatalf("expected locale pt-BR")
	}

	if got := len(bundle.LocaleMessages("en-US")); got == 0 {
		t.Fatalf("expected en-US messages")
	}
	if got := len(bundle.NamespaceMessages("en-US", "errors")); got == 0 {
		t.Fatalf("expected en-US errors namespace messages")
	}
}

func TestNamespacesListsLocaleNamespaces(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	namespaces := bundle.Namespaces(BaseLocale)
	if len(namespaces) != 2 || namespaces[0] != "core" || namespaces[1] != "errors" {
		t.Fatalf("namespaces = %v, want [core errors]", namespaces)
	}
	if got := bundle.Namespaces("fr-FR"); got != nil {
		t.Fatalf("namespaces for unknown locale = %v, want nil", got)
	}
}

func TestLoadEmbeddedLocalesShareErrorCodes(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	base := bundle.NamespaceMessages(BaseLocale, "errors")
	translated := bundle.NamespaceMessages("pt-BR", "errors")
	for key := range base {
		if _, ok := translated[key]; !ok {
			t.Errorf("pt-BR errors catalog missing key %q", key)
		}
	}
	for key := range translated {
		if _, ok := base[key]; !ok {
			t.Errorf("pt-BR errors catalog has extra key %q", key)
		}
	}
}

func TestLoadFromFSRejectsCoreKeyOutsideCoreNamespace(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/admin.yaml"), `locale: "en-US"
namespace: "admin"
messages:
  "core.bad": "nope"
`)
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/core.yaml"), `locale: "en-US"
namespace: "core"
messages:
  "core.good": "ok"
`)

	_, err := LoadFromFS(os.DirFS(tempDir))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadFromFSRejectsDuplicateKeysAcrossNamespaces(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/core.yaml"), `locale: "en-US"
namespace: "core"
messages:
  "a.key": "a"
`)
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/admin.yaml"), `locale: "en-US"
namespace: "admin"
messages:
  "a.key": "b"
`)

	_, err := LoadFromFS(os.DirFS(tempDir))
	if err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestLoadFromFSRejectsLocalePathMismatch(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/core.yaml"), `locale: "pt-BR"
namespace: "core"
messages:
  "core.k": "v"
`)

	_, err := LoadFromFS(os.DirFS(tempDir))
	if err == nil {
		t.Fatal("expected locale mismatch error")
	}
}

func TestNamespaceMessagesWithFallback(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	resolved, messages := bundle.NamespaceMessagesWithFallback("fr-FR", "errors")
	if resolved != "en-US" {
		t.Fatalf("resolved locale = %q, want en-US", resolved)
	}
	if len(messages) == 0 {
		t.Fatal("expected fallback errors namespace messages")
	}
}

func TestMessageFallsBackToBaseLocale(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	value, ok := bundle.Message("fr-FR", "core.platform.name")
	if !ok {
		t.Fatal("expected base locale fallback for core.platform.name")
	}
	if value != "Storefront" {
		t.Fatalf("Message() = %q, want %q", value, "Storefront")
	}
}

func mustWriteFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
