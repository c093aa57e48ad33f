// Package i18n exposes the supported locales and locale matching for
// user-visible text. Message content lives in the embedded catalogs under
// the catalog subpackage.
package i18n

import (
	"golang.org/x/text/language"

	"github.com/bongbong-com/modl-panel-sub005/internal/platform/i18n/catalog"
)

var (
	supportedTags = mustParseTags(catalog.Default().Locales())
	matcher       = language.NewMatcher(supportedTags)
)

// SupportedTags returns the language tags with embedded catalogs.
// The base locale is always first.
func SupportedTags() []language.Tag {
	out := make([]language.Tag, len(supportedTags))
	copy(out, supportedTags)
	return out
}

// DefaultTag returns the base locale tag.
func DefaultTag() language.Tag {
	return supportedTags[0]
}

// Match resolves a requested locale to the closest supported one.
// Unknown or empty input resolves to the base locale.
func Match(requested string) language.Tag {
	if requested == "" {
		return DefaultTag()
	}
	tag, err := language.Parse(requested)
	if err != nil {
		return DefaultTag()
	}
	_, index, _ := matcher.Match(tag)
	return supportedTags[index]
}

// MatchLocale resolves a requested locale to a supported catalog locale
// identifier, suitable for catalog lookups.
func MatchLocale(requested string) string {
	tag := Match(requested)
	for _, locale := range catalog.Default().Locales() {
		if parsed, err := language.Parse(locale); err == nil && parsed == tag {
			return locale
		}
	}
	return catalog.BaseLocale
}

func mustParseTags(locales []string) []language.Tag {
	tags := make([]language.Tag, 0, len(locales))
	var base language.Tag
	for _, locale := range locales {
		tag, err := language.Parse(locale)
		if err != nil {
			panic(err)
		}
		if locale == catalog.BaseLocale {
			base = tag
			continue
		}
		tags = append(tags, tag)
	}
	return append([]language.Tag{base}, tags...)
}
