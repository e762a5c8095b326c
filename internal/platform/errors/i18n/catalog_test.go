package i18n

import "testing"

func TestCatalogFormat(t *testing.T) {
	cat := NewCatalog("en-US", map[Code]string{
		"COUNTRY_ISO_CODE_TAKEN":  "a country with ISO code {{.iso_code}} already exists",
		"TASK_INTERVAL_TOO_SHORT": "task interval must be at least {{.min_interval}}",
	})

	got := cat.Format("COUNTRY_ISO_CODE_TAKEN", map[string]string{"iso_code": "BR"})
	want := "a country with ISO code BR already exists"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestCatalogFormatMissingCode(t *testing.T) {
	cat := NewCatalog("en-US", map[Code]string{})

	got := cat.Format("NO_SUCH_CODE", nil)
	if got != "NO_SUCH_CODE" {
		t.Fatalf("Format() = %q, want code fallback", got)
	}
}

func TestCatalogFormatNilMetadata(t *testing.T) {
	cat := NewCatalog("en-US", map[Code]string{
		"ROLE_SYSTEM_IMMUTABLE": "system roles cannot be modified or deleted",
	})

	got := cat.Format("ROLE_SYSTEM_IMMUTABLE", nil)
	want := "system roles cannot be modified or deleted"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestCatalogFormatMissingMetadataKey(t *testing.T) {
	cat := NewCatalog("en-US", map[Code]string{
		"CUSTOMER_EMAIL_TAKEN": "a customer with email {{.email}} already exists",
	})

	got := cat.Format("CUSTOMER_EMAIL_TAKEN", map[string]string{})
	want := "a customer with email  already exists"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestGetCatalogRegisteredOverride(t *testing.T) {
	RegisterCatalog("xx-TEST", NewCatalog("xx-TEST", map[Code]string{
		"SETTING_NAME_EMPTY": "name required",
	}))

	cat := GetCatalog("xx-TEST")
	if cat.Locale() != "xx-TEST" {
		t.Fatalf("Locale() = %q, want %q", cat.Locale(), "xx-TEST")
	}
	if got := cat.Format("SETTING_NAME_EMPTY", nil); got != "name required" {
		t.Fatalf("Format() = %q, want %q", got, "name required")
	}
}

func TestGetCatalogFallsBackToBaseLocale(t *testing.T) {
	cat := GetCatalog("fr-FR")
	if cat.Locale() != "en-US" {
		t.Fatalf("Locale() = %q, want en-US fallback", cat.Locale())
	}
}

func TestGetCatalogEmptyLocale(t *testing.T) {
	cat := GetCatalog("")
	if cat == nil {
		t.Fatal("GetCatalog(\"\") returned nil")
	}
	if cat.Locale() != "en-US" {
		t.Fatalf("Locale() = %q, want en-US", cat.Locale())
	}
}
