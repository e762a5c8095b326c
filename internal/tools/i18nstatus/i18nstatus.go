// Package i18nstatus reports translation coverage of the embedded locale
// catalogs against the base locale.
package i18nstatus

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/louisbranch/storefront/internal/platform/i18n/catalog"
)

// Report summarizes translation coverage for every locale in the bundle.
type Report struct {
	BaseLocale string         `json:"base_locale"`
	Locales    []LocaleStatus `json:"locales"`
}

// LocaleStatus holds coverage counts for one locale.
type LocaleStatus struct {
	Locale      string            `json:"locale"`
	BaseKeys    int               `json:"base_keys"`
	Translated  int               `json:"translated"`
	Missing     int               `json:"missing"`
	Extra       int               `json:"extra"`
	Completion  float64           `json:"completion"`
	Namespaces  []NamespaceStatus `json:"namespaces"`
	MissingKeys []string          `json:"missing_keys"`
	ExtraKeys   []string          `json:"extra_keys"`
}

// NamespaceStatus holds coverage counts for one namespace within a locale.
type NamespaceStatus struct {
	Namespace  string  `json:"namespace"`
	BaseKeys   int     `json:"base_keys"`
	Translated int     `json:"translated"`
	Missing    int     `json:"missing"`
	Extra      int     `json:"extra"`
	Completion float64 `json:"completion"`
}

// Config holds i18n status command configuration.
type Config struct {
	BaseLocale  string
	MarkdownOut string
	JSONOut     string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{BaseLocale: catalog.BaseLocale}
	fs.StringVar(&cfg.BaseLocale, "base-locale", cfg.BaseLocale, "base locale used as translation source of truth")
	fs.StringVar(&cfg.MarkdownOut, "out", "docs/i18n-status.md", "markdown output path (empty = skip)")
	fs.StringVar(&cfg.JSONOut, "json-out", "docs/i18n-status.json", "json output path (empty = skip)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the coverage report from the embedded catalogs and writes the
// configured artifacts.
func Run(cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	bundle, err := catalog.LoadEmbedded()
	if err != nil {
		return fmt.Errorf("load locale catalogs: %w", err)
	}
	if !bundle.HasLocale(cfg.BaseLocale) {
		return fmt.Errorf("base locale %q is missing from catalogs", cfg.BaseLocale)
	}

	rep := buildReport(bundle, cfg.BaseLocale)
	if cfg.JSONOut != "" {
		if err := writeJSON(cfg.JSONOut, rep); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", cfg.JSONOut)
	}
	if cfg.MarkdownOut != "" {
		if err := writeMarkdown(cfg.MarkdownOut, rep); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", cfg.MarkdownOut)
	}
	return nil
}

func buildReport(bundle *catalog.Bundle, baseLocale string) Report {
	baseMessages := bundle.LocaleMessages(baseLocale)

	var statuses []LocaleStatus
	for _, locale := range bundle.Locales() {
		localeMessages := bundle.LocaleMessages(locale)
		missing := diffKeys(baseMessages, localeMessages)
		extra := diffKeys(localeMessages, baseMessages)
		translated := len(baseMessages) - len(missing)

		statuses = append(statuses, LocaleStatus{
			Locale:      locale,
			BaseKeys:    len(baseMessages),
			Translated:  translated,
			Missing:     len(missing),
			Extra:       len(extra),
			Completion:  percent(translated, len(baseMessages)),
			Namespaces:  namespaceStatuses(bundle, baseLocale, locale),
			MissingKeys: missing,
			ExtraKeys:   extra,
		})
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Locale < statuses[j].Locale
	})
	return Report{BaseLocale: baseLocale, Locales: statuses}
}

func namespaceStatuses(bundle *catalog.Bundle, baseLocale string, locale string) []NamespaceStatus {
	union := map[string]struct{}{}
	for _, namespace := range bundle.Namespaces(baseLocale) {
		union[namespace] = struct{}{}
	}
	for _, namespace := range bundle.Namespaces(locale) {
		union[namespace] = struct{}{}
	}

	namespaces := make([]string, 0, len(union))
	for namespace := range union {
		namespaces = append(namespaces, namespace)
	}
	sort.Strings(namespaces)

	out := make([]NamespaceStatus, 0, len(namespaces))
	for _, namespace := range namespaces {
		base := bundle.NamespaceMessages(baseLocale, namespace)
		target := bundle.NamespaceMessages(locale, namespace)
		missing := diffKeys(base, target)
		translated := len(base) - len(missing)
		out = append(out, NamespaceStatus{
			Namespace:  namespace,
			BaseKeys:   len(base),
			Translated: translated,
			Missing:    len(missing),
			Extra:      len(diffKeys(target, base)),
			Completion: percent(translated, len(base)),
		})
	}
	return out
}

func writeJSON(path string, rep Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeMarkdown(path string, rep Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	var b strings.Builder
	b.WriteString("# I18n Status\n\n")
	b.WriteString("Generated by `i18n-status`.\n\n")
	fmt.Fprintf(&b, "Base locale: `%s`.\n\n", rep.BaseLocale)

	b.WriteString("## Locale Summary\n\n")
	b.WriteString("| Locale | Base Keys | Translated | Missing | Extra | Completion |\n")
	b.WriteString("| --- | ---: | ---: | ---: | ---: | ---: |\n")
	for _, locale := range rep.Locales {
		fmt.Fprintf(&b, "| `%s` | %d | %d | %d | %d | %.1f%% |\n",
			locale.Locale, locale.BaseKeys, locale.Translated, locale.Missing, locale.Extra, locale.Completion)
	}

	for _, locale := range rep.Locales {
		fmt.Fprintf(&b, "\n## Locale: `%s`\n\n", locale.Locale)
		b.WriteString("| Namespace | Base Keys | Translated | Missing | Extra | Completion |\n")
		b.WriteString("| --- | ---: | ---: | ---: | ---: | ---: |\n")
		for _, ns := range locale.Namespaces {
			fmt.Fprintf(&b, "| `%s` | %d | %d | %d | %d | %.1f%% |\n",
				ns.Namespace, ns.BaseKeys, ns.Translated, ns.Missing, ns.Extra, ns.Completion)
		}
		if len(locale.MissingKeys) > 0 {
			b.WriteString("\n### Missing Keys\n\n")
			for _, key := range locale.MissingKeys {
				fmt.Fprintf(&b, "- `%s`\n", key)
			}
		}
		if len(locale.ExtraKeys) > 0 {
			b.WriteString("\n### Extra Keys\n\n")
			for _, key := range locale.ExtraKeys {
				fmt.Fprintf(&b, "- `%s`\n", key)
			}
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// diffKeys returns the keys of a that are absent from b, sorted.
func diffKeys(a map[string]string, b map[string]string) []string {
	out := make([]string, 0)
	for key := range a {
		if _, ok := b[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

func percent(numerator int, denominator int) float64 {
	if denominator <= 0 {
		return 100
	}
	value := float64(numerator) * 100 / float64(denominator)
	return math.Round(value*10) / 10
}
