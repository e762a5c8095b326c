// Package i18n negotiates request locales against the embedded catalog.
package i18n

import (
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/louisbranch/storefront/internal/platform/i18n/catalog"
)

var (
	once    sync.Once
	tags    []language.Tag
	matcher language.Matcher
)

// The matcher treats its first tag as the fallback, so the base locale
// always leads the supported list.
func supported() ([]language.Tag, language.Matcher) {
	once.Do(func() {
		locales := catalog.Default().Locales()
		tags = make([]language.Tag, 0, len(locales)+1)
		tags = append(tags, language.MustParse(catalog.BaseLocale))
		for _, locale := range locales {
			if locale == catalog.BaseLocale {
				continue
			}
			tag, err := language.Parse(locale)
			if err != nil {
				continue
			}
			tags = append(tags, tag)
		}
		matcher = language.NewMatcher(tags)
	})
	return tags, matcher
}

// DefaultTag returns the tag requests fall back to.
func DefaultTag() language.Tag {
	supportedTags, _ := supported()
	return supportedTags[0]
}

// SupportedTags returns the bundle's locales as language tags, base locale
// first.
func SupportedTags() []language.Tag {
	supportedTags, _ := supported()
	out := make([]language.Tag, len(supportedTags))
	copy(out, supportedTags)
	return out
}

// Match negotiates an Accept-Language header value against the supported
// locales. Empty or unparsable headers answer the default tag.
func Match(acceptLanguage string) language.Tag {
	supportedTags, m := supported()
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return supportedTags[0]
	}
	requested, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(requested) == 0 {
		return supportedTags[0]
	}
	_, index, _ := m.Match(requested...)
	return supportedTags[index]
}
