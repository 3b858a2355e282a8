// Package modelsheet enriches model records from the regulator's
// homologation sheets (PDF): official name, cycle length and minimum
// payout per model code.
package modelsheet

import (
	"regexp"
	"strconv"
	"strings"
)

// Record is one model block extracted from the sheet text.
type Record struct {
	CodiceModello        string
	DefaultCycleLengthIn *int64
	DefaultPayoutPercent *float64
	OfficialName         *string
}

// The sheets come from several issuers with no fixed layout, so every
// attribute is matched by a tolerant pattern rather than by position.
const (
	codePattern     = `\b(?:cod(?:ice)?\s*mod(?:ello)?|modello|model(?:\s*code)?|code)\s*[:\-]?\s*([A-Za-z0-9._\-/]+)`
	cyclePattern    = `\b(?:N\.?\s*PART\.?\s*CICLO|lunghezza\s*ciclo|ciclo|pay-?in)\s*[:\-]?\s*([0-9]{4,7})\b`
	payoutPattern   = `\b(?:%?\s*minima\s*vincita\s*ciclo\s*partite|payout\s*minimo|payout)\s*[:\-]?\s*([0-9]{1,3}(?:[.,][0-9]+)?)%?`
	officialPattern = `\b(?:nome\s*ufficiale(?:\s*adm)?|nome\s*commerciale|denominazione\s*commerciale)\s*[:\-]?\s*(.+)$`
)

var (
	reCode     = regexp.MustCompile(`(?i)` + codePattern)
	reCycle    = regexp.MustCompile(`(?i)` + cyclePattern)
	rePayout   = regexp.MustCompile(`(?i)` + payoutPattern)
	reOfficial = regexp.MustCompile(`(?i)` + officialPattern)

	// Some sheets compress a whole model onto one line: name, code,
	// cycle and payout together.
	reAll = regexp.MustCompile(`(?i)([A-Za-z0-9._\-/]+).*?(?:` + cyclePattern + `).*?(?:` + payoutPattern + `)`)

	reSpaces = regexp.MustCompile(`\s+`)
)

// ParseLines walks the text lines and accumulates model records. A code
// match opens a record; attribute lines fill the open record until the
// next code closes it.
func ParseLines(lines []string) []Record {
	var found []Record
	var current *Record

	flush := func() {
		if current == nil || current.CodiceModello == "" {
			current = nil
			return
		}
		if current.DefaultPayoutPercent != nil && *current.DefaultPayoutPercent > 1.5 {
			scaled := *current.DefaultPayoutPercent / 100
			current.DefaultPayoutPercent = &scaled
		}
		found = append(found, *current)
		current = nil
	}

	for _, raw := range lines {
		line := strings.TrimSpace(reSpaces.ReplaceAllString(raw, " "))
		if line == "" {
			continue
		}

		if combo := reAll.FindStringSubmatch(line); combo != nil {
			// The leading token is not necessarily the code; prefer an
			// explicit code label when one is present.
			code := strings.TrimSpace(combo[1])
			if mc := reCode.FindStringSubmatch(line); mc != nil {
				code = strings.TrimSpace(mc[1])
			}
			flush()
			current = &Record{CodiceModello: code}
			if m := reCycle.FindStringSubmatch(line); m != nil {
				if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
					current.DefaultCycleLengthIn = &n
				}
			}
			if m := rePayout.FindStringSubmatch(line); m != nil {
				current.DefaultPayoutPercent = parsePercent(m[1])
			}
			flush()
			continue
		}

		if m := reCode.FindStringSubmatch(line); m != nil {
			flush()
			current = &Record{CodiceModello: strings.TrimSpace(m[1])}
			continue
		}
		if current == nil {
			continue
		}

		if m := reCycle.FindStringSubmatch(line); m != nil {
			if n, err := strconv.ParseInt(m[1], 10, 64); err == nil && n != 0 {
				current.DefaultCycleLengthIn = &n
			}
		}
		if m := rePayout.FindStringSubmatch(line); m != nil {
			if v := parsePercent(m[1]); v != nil {
				current.DefaultPayoutPercent = v
			}
		}
		if m := reOfficial.FindStringSubmatch(line); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" {
				current.OfficialName = &name
			}
		}
	}
	flush()

	return found
}

// Consolidate collapses duplicate codes, last occurrence winning per
// attribute. Order of first appearance is preserved.
func Consolidate(records []Record) []Record {
	byCode := make(map[string]*Record, len(records))
	var order []string

	for _, rec := range records {
		prev, ok := byCode[rec.CodiceModello]
		if !ok {
			r := rec
			byCode[rec.CodiceModello] = &r
			order = append(order, rec.CodiceModello)
			continue
		}
		if rec.DefaultCycleLengthIn != nil {
			prev.DefaultCycleLengthIn = rec.DefaultCycleLengthIn
		}
		if rec.DefaultPayoutPercent != nil {
			prev.DefaultPayoutPercent = rec.DefaultPayoutPercent
		}
		if rec.OfficialName != nil {
			prev.OfficialName = rec.OfficialName
		}
	}

	out := make([]Record, 0, len(order))
	for _, code := range order {
		out = append(out, *byCode[code])
	}
	return out
}

// parsePercent reads an Italian-formatted number and scales display
// percents (65) down to fractions (0.65).
func parsePercent(raw string) *float64 {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSuffix(s, "%")
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if n > 1.5 {
		n /= 100
	}
	return &n
}
