package i18n

import "testing"

func TestGetCatalogFallsBackToEnUS(t *testing.T) {
	for _, locale := range []string{"", "xx-XX", "en", "en-GB"} {
		catalog := GetCatalog(locale)
		if catalog == nil {
			t.Fatalf("locale %q: expected a catalog", locale)
		}
		if catalog.Locale() != "en-US" {
			t.Fatalf("locale %q: catalog = %q, want en-US", locale, catalog.Locale())
		}
	}
}

func TestFormatUnknownCodeFallsBackToCode(t *testing.T) {
	catalog := GetCatalog("en-US")
	if got := catalog.Format("NO_SUCH_CODE", nil); got != "NO_SUCH_CODE" {
		t.Fatalf("format = %q, want raw code", got)
	}
}

func TestFormatRendersTemplate(t *testing.T) {
	catalog := GetCatalog("en-US")
	got := catalog.Format(CodeVaultPeriodNotOver, map[string]string{"Target": "collection/col-1"})
	want := "Fee period is not over for vault collection/col-1"
	if got != want {
		t.Fatalf("format = %q, want %q", got, want)
	}
}
