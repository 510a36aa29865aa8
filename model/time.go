package model

import (
	"fmt"
	"strings"
	"time"
)

// Imagery catalogs return datetimes in whatever flavour of ISO 8601 they
// please, and form users type dates however they like. Parsing is therefore
// lenient and multi-format.

var catalogTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	DateLayout,
}

var formDateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseCatalogTime is a drop-in replacement for time.Parse, matching against
// the time formats imagery catalogs are known to return
func ParseCatalogTime(catalogTime string) (time.Time, error) {
	for _, layout := range catalogTimeLayouts {
		if output, err := time.Parse(layout, catalogTime); err == nil {
			return output.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("Date could not be parsed by any expected time format: `%s`", catalogTime)
}

// ParseFormDate parses a user supplied date, either a plain YYYY-MM-DD
// calendar date or a full RFC 3339 timestamp
func ParseFormDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range formDateLayouts {
		if output, err := time.Parse(layout, value); err == nil {
			return output.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("`%s` is not a date (expected YYYY-MM-DD)", value)
}
