package connected

import (
	"testing"

	"github.com/dropDatabas3/attachedclients/internal/domain/repository"
)

func newTestFormatter(earliest int64) *Formatter {
	return NewFormatter([]string{"en", "es"}, "en", earliest)
}

func TestFormatTimestampsApproximateFloor(t *testing.T) {
	f := newTestFormatter(1000000)
	c := &AttachedClient{CreatedTime: 500000, LastAccessTime: 500000}

	f.FormatTimestamps(c, "en")

	if c.LastAccessTime != 500000 {
		t.Fatalf("raw lastAccessTime mutated: %d", c.LastAccessTime)
	}
	if c.ApproximateLastAccessTime != 1000000 {
		t.Fatalf("approximateLastAccessTime = %d, want floor 1000000", c.ApproximateLastAccessTime)
	}
	if c.ApproximateLastAccessTimeFormatted == "" {
		t.Fatal("approximate formatted string missing")
	}
	if c.CreatedTimeFormatted == "" || c.LastAccessTimeFormatted == "" {
		t.Fatal("formatted timestamps missing")
	}
}

func TestFormatTimestampsAboveFloor(t *testing.T) {
	f := newTestFormatter(1000000)
	c := &AttachedClient{CreatedTime: 2000000, LastAccessTime: 3000000}

	f.FormatTimestamps(c, "en")

	if c.ApproximateLastAccessTime != 0 || c.ApproximateLastAccessTimeFormatted != "" {
		t.Fatalf("approximate fields must stay empty above the floor: %+v", c)
	}
}

func TestFormatTimestampsLayout(t *testing.T) {
	f := newTestFormatter(0)
	c := &AttachedClient{CreatedTime: 1199145600000} // 2008-01-01T00:00:00Z

	f.FormatTimestamps(c, "")

	if c.CreatedTimeFormatted != "Tue, 01 Jan 2008 00:00:00 UTC" {
		t.Fatalf("createdTimeFormatted = %q", c.CreatedTimeFormatted)
	}
}

func TestFormatLocationEnglishPassthrough(t *testing.T) {
	f := newTestFormatter(0)
	c := &AttachedClient{Location: &repository.Location{
		City: "Berlin", State: "Berlin", StateCode: "BE", Country: "Germany", CountryCode: "DE",
	}}

	f.FormatLocation(c, "en")

	if c.Location.City != "Berlin" || c.Location.Country != "Germany" || c.Location.State != "Berlin" {
		t.Fatalf("english locale must pass location through: %+v", c.Location)
	}
	if c.Location.CountryCode != "" {
		t.Fatalf("countryCode must not surface: %+v", c.Location)
	}
}

func TestFormatLocationTranslatesCountryOnly(t *testing.T) {
	f := newTestFormatter(0)
	c := &AttachedClient{Location: &repository.Location{
		City: "Berlin", Country: "Germany", CountryCode: "DE",
	}}

	f.FormatLocation(c, "es")

	if c.Location.City != "" || c.Location.State != "" {
		t.Fatalf("non-english locale must drop untranslatable fields: %+v", c.Location)
	}
	if c.Location.Country != "Alemania" {
		t.Fatalf("country = %q, want localized name", c.Location.Country)
	}
}

func TestFormatLocationDegradesToEmpty(t *testing.T) {
	f := newTestFormatter(0)

	// nil location becomes an empty object
	c := &AttachedClient{}
	f.FormatLocation(c, "es")
	if c.Location == nil || *c.Location != (repository.Location{}) {
		t.Fatalf("nil location should degrade to empty object: %+v", c.Location)
	}

	// missing country code cannot be looked up
	c = &AttachedClient{Location: &repository.Location{City: "Berlin"}}
	f.FormatLocation(c, "es")
	if *c.Location != (repository.Location{}) {
		t.Fatalf("failed lookup should degrade to empty object: %+v", c.Location)
	}
}

func TestFormatLocationUnsupportedLanguageFallsBack(t *testing.T) {
	f := newTestFormatter(0)
	c := &AttachedClient{Location: &repository.Location{
		City: "Paris", Country: "France", CountryCode: "FR",
	}}

	// Unsupported language resolves to the default (en) and passes through.
	f.FormatLocation(c, "fr-FR")

	if c.Location.City != "Paris" || c.Location.Country != "France" {
		t.Fatalf("fallback to default language failed: %+v", c.Location)
	}
}

func TestFormatLocationRegionalEnglishPassthrough(t *testing.T) {
	// Regional en-* tags take the same passthrough path as plain "en".
	f := NewFormatter([]string{"en", "en-US", "es"}, "en", 0)
	c := &AttachedClient{Location: &repository.Location{
		City: "Austin", Country: "United States", CountryCode: "US",
	}}

	f.FormatLocation(c, "en-US")

	if c.Location.City != "Austin" || c.Location.Country != "United States" {
		t.Fatalf("en-US must pass location through: %+v", c.Location)
	}
	if c.Location.CountryCode != "" {
		t.Fatalf("countryCode must not surface: %+v", c.Location)
	}
}
