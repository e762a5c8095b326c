// Package i18n provides localized rendering of error messages.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/louisbranch/storefront/internal/platform/i18n/catalog"
)

// Code is a machine-readable error code (aliased to avoid importing the errors package).
type Code = string

// Catalog maps error codes to message templates for a single locale.
// Templates are parsed once at construction.
type Catalog struct {
	locale    string
	raw       map[Code]string
	templates map[Code]*template.Template
}

var (
	catalogsMu sync.RWMutex
	// catalogs holds override and runtime-built catalogs by locale.
	catalogs = map[string]*Catalog{}
)

// GetCatalog returns the catalog for locale, building it from the embedded
// "errors" namespace on first use. Unknown locales fall back to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = i18ncatalog.BaseLocale
	}

	if cat, ok := lookupCatalog(requested); ok {
		return cat
	}

	resolved, messages := i18ncatalog.Default().NamespaceMessagesWithFallback(requested, "errors")
	if cat, ok := lookupCatalog(resolved); ok {
		return cat
	}

	return storeCatalogIfAbsent(resolved, NewCatalog(resolved, messages))
}

// Locale returns the locale this catalog renders.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message for code with the given metadata.
// Codes without a catalog entry render as the code itself. Templates that
// fail to execute render their raw catalog text.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.templates[code]
	if !ok {
		if raw, exists := c.raw[code]; exists {
			return raw
		}
		return code
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, metadata); err != nil {
		return c.raw[code]
	}
	return buf.String()
}

// RegisterCatalog installs a catalog for locale, replacing any cached one.
// Intended for tests that need deterministic messages.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog builds a catalog from code-to-message template strings.
// Messages that fail to parse as templates are kept as literal text.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cat := &Catalog{
		locale:    locale,
		raw:       make(map[Code]string, len(messages)),
		templates: make(map[Code]*template.Template, len(messages)),
	}
	for code, msg := range messages {
		cat.raw[code] = msg
		if tmpl, err := template.New(code).Parse(msg); err == nil {
			cat.templates[code] = tmpl
		}
	}
	return cat
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}

func storeCatalogIfAbsent(locale string, candidate *Catalog) *Catalog {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	if existing, ok := catalogs[locale]; ok {
		return existing
	}
	catalogs[locale] = candidate
	return candidate
}
