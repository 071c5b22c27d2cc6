// Package i18n holds localized user-facing messages for domain error codes.
package i18n

import (
	"strings"
	"text/template"

	"golang.org/x/text/language"
)

// Code is a string error code mirroring internal/errors codes.
type Code = string

// Catalog maps error codes to localized message templates.
type Catalog struct {
	locale   string
	tag      language.Tag
	messages map[Code]string
}

var catalogs = []*Catalog{enUSCatalog}

var matcher = func() language.Matcher {
	tags := make([]language.Tag, 0, len(catalogs))
	for _, c := range catalogs {
		c.tag = language.Make(c.locale)
		tags = append(tags, c.tag)
	}
	return language.NewMatcher(tags)
}()

// GetCatalog returns the best catalog for the requested locale,
// falling back to en-US when no catalog matches.
func GetCatalog(locale string) *Catalog {
	_, index, _ := matcher.Match(language.Make(locale))
	if index < 0 || index >= len(catalogs) {
		return enUSCatalog
	}
	return catalogs[index]
}

// Locale returns the catalog's BCP 47 locale.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template for code with the given metadata.
// Unknown codes and template failures fall back to the raw code.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	message, ok := c.messages[code]
	if !ok {
		return code
	}
	if !strings.Contains(message, "{{") {
		return message
	}

	tmpl, err := template.New(code).Parse(message)
	if err != nil {
		return code
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, metadata); err != nil {
		return code
	}
	return sb.String()
}
