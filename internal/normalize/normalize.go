// Package normalize converts locale-formatted spreadsheet values into
// canonical ones. Everything here is pure: malformed input yields nil,
// never an error, so one garbage cell cannot block an import.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Exports use the Italian "not available" marker for missing numbers.
const notAvailable = "ND"

// ParseNumber parses an Italian-locale number ("1.234,56"). Empty input,
// the ND marker and unparsable strings all yield nil.
func ParseNumber(raw string) *float64 {
	str := strings.TrimSpace(raw)
	if str == "" || strings.EqualFold(str, notAvailable) {
		return nil
	}
	norm := strings.ReplaceAll(str, ".", "")
	norm = strings.ReplaceAll(norm, ",", ".")
	n, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return nil
	}
	return &n
}

var datePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})(?:\s+(\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)

var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDateTime parses "dd/mm/yyyy[ HH:MM[:SS]]", falling back to a few
// generic layouts. Returns nil on total failure.
func ParseDateTime(raw string) *time.Time {
	str := strings.TrimSpace(raw)
	if str == "" {
		return nil
	}

	if m := datePattern.FindStringSubmatch(str); m != nil {
		dd, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		yyyy, _ := strconv.Atoi(m[3])
		hh := atoiDefault(m[4], 0)
		mi := atoiDefault(m[5], 0)
		ss := atoiDefault(m[6], 0)
		if mm < 1 || mm > 12 || dd < 1 || dd > 31 {
			return nil
		}
		t := time.Date(yyyy, time.Month(mm), dd, hh, mi, ss, 0, time.UTC)
		return &t
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return &t
		}
	}
	return nil
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// NormalizePercent maps percentage-point values to fractions: a parsed
// override above 1.5 is treated as "65" meaning 0.65. The 1.5 threshold is
// kept for compatibility with historical imports even though it can
// misread legitimate fractions above 1.5.
func NormalizePercent(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if *v > 1.5 {
		n := *v / 100.0
		return &n
	}
	n := *v
	return &n
}

// NormalizeMAC canonicalizes a MAC address cell. MACs are stored uppercase.
func NormalizeMAC(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Clean trims and collapses internal whitespace runs.
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DedupeAddressWords drops consecutive duplicate words ("VIA VIA ROMA").
func DedupeAddressWords(addr string) string {
	words := strings.Fields(addr)
	out := words[:0]
	for i, w := range words {
		if i > 0 && strings.EqualFold(w, words[i-1]) {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// Venue rows sometimes carry no usable label at all.
const UnnamedVenue = "Senza nome"

// BuildVenueName derives the canonical venue name: the cleaned label when
// present, otherwise "address - town - province" from whatever parts exist,
// with stuttered address words collapsed.
func BuildVenueName(nome, indirizzo, comune, provincia string) string {
	if n := Clean(nome); n != "" {
		return n
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{DedupeAddressWords(indirizzo), Clean(comune), Clean(provincia)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return UnnamedVenue
	}
	return strings.Join(parts, " - ")
}
