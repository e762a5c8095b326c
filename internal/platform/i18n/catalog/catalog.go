// Package catalog loads the localization catalogs embedded in the binary.
//
// Catalog files live under locales/<locale>/<namespace>.yaml and hold a flat
// map of quoted message keys to quoted message strings. The base locale
// (en-US) must always be present; lookups for other locales fall back to it.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BaseLocale is the canonical source locale for catalogs.
const BaseLocale = "en-US"

//go:embed locales/*/*.yaml
var embeddedCatalogFS embed.FS

// LocaleCatalog stores all messages for one locale, grouped by namespace.
type LocaleCatalog struct {
	Locale     string
	Namespaces map[string]map[string]string
	Messages   map[string]string
}

// Bundle contains all locale catalogs loaded from one filesystem.
type Bundle struct {
	locales map[string]*LocaleCatalog
}

var defaultBundle = mustLoadAndRegisterEmbedded()

// Default returns the process-wide embedded catalog bundle.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded loads the catalog files embedded in this package.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedCatalogFS)
}

// LoadFromFS loads catalog files from the provided filesystem.
func LoadFromFS(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	bundle := &Bundle{locales: map[string]*LocaleCatalog{}}
	for _, path := range paths {
		data, err := fs.ReadFile(catalogFS, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		file, err := parseLocaleFile(data)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		if err := bundle.merge(path, file); err != nil {
			return nil, err
		}
	}

	if !bundle.HasLocale(BaseLocale) {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return bundle, nil
}

// Register publishes every catalog message to x/text/message so that
// message.NewPrinter resolves them by locale tag.
func (b *Bundle) Register() error {
	if b == nil {
		return nil
	}
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		tags := []language.Tag{tag}
		if base, _ := tag.Base(); base.String() != "" && base.String() != "und" {
			if baseTag, err := language.Parse(base.String()); err == nil && baseTag.String() != tag.String() {
				tags = append(tags, baseTag)
			}
		}

		messages := b.LocaleMessages(locale)
		keys := make([]string, 0, len(messages))
		for key := range messages {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			for _, registerTag := range tags {
				message.SetString(registerTag, key, messages[key])
			}
		}
	}
	return nil
}

// HasLocale reports whether the locale exists in this bundle.
func (b *Bundle) HasLocale(locale string) bool {
	if b == nil {
		return false
	}
	_, ok := b.locales[strings.TrimSpace(locale)]
	return ok
}

// Locales returns all available locale identifiers, sorted.
func (b *Bundle) Locales() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.locales))
	for locale := range b.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// LocaleMessages returns a copy of the exact locale message map.
func (b *Bundle) LocaleMessages(locale string) map[string]string {
	if b == nil {
		return map[string]string{}
	}
	lc, ok := b.locales[strings.TrimSpace(locale)]
	if !ok || lc == nil {
		return map[string]string{}
	}
	return copyMessages(lc.Messages)
}

// Messages returns the locale message map, falling back to the base locale.
func (b *Bundle) Messages(locale string) map[string]string {
	if messages := b.LocaleMessages(locale); len(messages) > 0 {
		return messages
	}
	return b.LocaleMessages(BaseLocale)
}

// Message returns one message value with base-locale fallback.
func (b *Bundle) Message(locale string, key string) (string, bool) {
	if b == nil {
		return "", false
	}
	trimmedLocale := strings.TrimSpace(locale)
	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return "", false
	}
	if lc, ok := b.locales[trimmedLocale]; ok && lc != nil {
		if value, exists := lc.Messages[trimmedKey]; exists {
			return value, true
		}
	}
	if trimmedLocale != BaseLocale {
		if lc, ok := b.locales[BaseLocale]; ok && lc != nil {
			value, exists := lc.Messages[trimmedKey]
			return value, exists
		}
	}
	return "", false
}

// Namespaces returns the namespace identifiers present in a locale, sorted.
func (b *Bundle) Namespaces(locale string) []string {
	if b == nil {
		return nil
	}
	lc, ok := b.locales[strings.TrimSpace(locale)]
	if !ok || lc == nil {
		return nil
	}
	out := make([]string, 0, len(lc.Namespaces))
	for namespace := range lc.Namespaces {
		out = append(out, namespace)
	}
	sort.Strings(out)
	return out
}

// NamespaceMessages returns a copy of one namespace's messages for a locale.
func (b *Bundle) NamespaceMessages(locale string, namespace string) map[string]string {
	if b == nil {
		return map[string]string{}
	}
	lc, ok := b.locales[strings.TrimSpace(locale)]
	if !ok || lc == nil {
		return map[string]string{}
	}
	messages, ok := lc.Namespaces[strings.TrimSpace(namespace)]
	if !ok {
		return map[string]string{}
	}
	return copyMessages(messages)
}

// NamespaceMessagesWithFallback returns namespace messages and the locale
// that satisfied the lookup.
func (b *Bundle) NamespaceMessagesWithFallback(locale string, namespace string) (string, map[string]string) {
	trimmedLocale := strings.TrimSpace(locale)
	trimmedNamespace := strings.TrimSpace(namespace)
	if messages := b.NamespaceMessages(trimmedLocale, trimmedNamespace); len(messages) > 0 {
		return trimmedLocale, messages
	}
	return BaseLocale, b.NamespaceMessages(BaseLocale, trimmedNamespace)
}

func (b *Bundle) merge(path string, file localeFile) error {
	localeFromPath := filepath.Base(filepath.Dir(path))
	namespaceFromPath := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if file.locale != localeFromPath {
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", path, file.locale, localeFromPath)
	}
	if file.namespace != namespaceFromPath {
		return fmt.Errorf("catalog %s: namespace %q must match filename namespace %q", path, file.namespace, namespaceFromPath)
	}

	lc, ok := b.locales[file.locale]
	if !ok {
		lc = &LocaleCatalog{
			Locale:     file.locale,
			Namespaces: map[string]map[string]string{},
			Messages:   map[string]string{},
		}
		b.locales[file.locale] = lc
	}
	if _, exists := lc.Namespaces[file.namespace]; exists {
		return fmt.Errorf("catalog %s: namespace %q already defined for locale %q", path, file.namespace, file.locale)
	}

	namespaceMessages := make(map[string]string, len(file.messages))
	for key, value := range file.messages {
		if strings.HasPrefix(key, "core.") && file.namespace != "core" {
			return fmt.Errorf("catalog %s: key %q must be defined in core namespace", path, key)
		}
		if _, exists := lc.Messages[key]; exists {
			return fmt.Errorf("catalog %s: duplicate key %q in locale %q", path, key, file.locale)
		}
		lc.Messages[key] = value
		namespaceMessages[key] = value
	}
	lc.Namespaces[file.namespace] = namespaceMessages
	return nil
}

func copyMessages(source map[string]string) map[string]string {
	out := make(map[string]string, len(source))
	for key, value := range source {
		out[key] = value
	}
	return out
}

func mustLoadAndRegisterEmbedded() *Bundle {
	bundle, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	if err := bundle.Register(); err != nil {
		panic(err)
	}
	return bundle
}

// localeFile is one parsed catalog file.
type localeFile struct {
	locale    string
	namespace string
	messages  map[string]string
}

// parseLocaleFile reads the restricted YAML subset used by catalog files:
// a quoted locale line, a quoted namespace line, then a messages block of
// quoted key/value pairs. Comments and blank lines are ignored.
func parseLocaleFile(data []byte) (localeFile, error) {
	out := localeFile{messages: map[string]string{}}
	inMessages := false

	for _, rawLine := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "locale:"):
			value, err := unquote(strings.TrimPrefix(line, "locale:"))
			if err != nil {
				return localeFile{}, fmt.Errorf("parse locale: %w", err)
			}
			out.locale = value
		case strings.HasPrefix(line, "namespace:"):
			value, err := unquote(strings.TrimPrefix(line, "namespace:"))
			if err != nil {
				return localeFile{}, fmt.Errorf("parse namespace: %w", err)
			}
			out.namespace = value
		case line == "messages:":
			inMessages = true
		default:
			if !inMessages {
				return localeFile{}, fmt.Errorf("unexpected line %q", line)
			}
			key, value, err := parseMessageLine(line)
			if err != nil {
				return localeFile{}, fmt.Errorf("parse message entry %q: %w", line, err)
			}
			out.messages[key] = value
		}
	}

	if out.locale == "" {
		return localeFile{}, fmt.Errorf("missing locale")
	}
	if out.namespace == "" {
		return localeFile{}, fmt.Errorf("missing namespace")
	}
	if len(out.messages) == 0 {
		return localeFile{}, fmt.Errorf("missing messages")
	}
	return out, nil
}

func parseMessageLine(line string) (string, string, error) {
	keyToken, rest, err := cutQuotedToken(line)
	if err != nil {
		return "", "", err
	}
	key, err := strconv.Unquote(keyToken)
	if err != nil {
		return "", "", fmt.Errorf("unquote key: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		return "", "", fmt.Errorf("blank key")
	}

	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, ":") {
		return "", "", fmt.Errorf("missing ':' separator")
	}
	value, err := unquote(strings.TrimPrefix(rest, ":"))
	if err != nil {
		return "", "", fmt.Errorf("unquote value: %w", err)
	}
	return key, value, nil
}

func unquote(value string) (string, error) {
	return strconv.Unquote(strings.TrimSpace(value))
}

// cutQuotedToken splits line after the first complete double-quoted token,
// honoring backslash escapes.
func cutQuotedToken(line string) (string, string, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "\"") {
		return "", "", fmt.Errorf("expected quoted token")
	}
	escaped := false
	for i := 1; i < len(trimmed); i++ {
		switch {
		case escaped:
			escaped = false
		case trimmed[i] == '\\':
			escaped = true
		case trimmed[i] == '"':
			return trimmed[:i+1], trimmed[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("unterminated quoted token")
}
