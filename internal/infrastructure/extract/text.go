// Package extract normalizes raw supplier values (prices, weights,
// dimensions, characteristics and image lists) into the canonical units of
// the catalog. All functions are pure and safe for concurrent use.
package extract

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	ugcPolicy    = bluemonday.UGCPolicy()
	spaceRun     = regexp.MustCompile(`\s+`)
	numberRe     = regexp.MustCompile(`-?\d+(?:[.,]\d+)*`)
	slugStrip    = regexp.MustCompile(`[^\pL\pN]+`)
)

// CleanHTML strips markup, decodes entities and collapses whitespace.
func CleanHTML(s string) string {
	if s == "" {
		return ""
	}
	// Block-level tags become spaces so adjacent cells don't glue together.
	s = strings.NewReplacer("<br>", " ", "<br/>", " ", "<br />", " ", "</p>", " ", "</li>", " ", "</td>", " ").Replace(s)
	s = strictPolicy.Sanitize(s)
	// The sanitizer escapes what it keeps and feeds may double-encode.
	s = html.UnescapeString(html.UnescapeString(s))
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// SanitizeHTML keeps safe formatting markup of a description and drops
// scripts, styles and event handlers.
func SanitizeHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return strings.TrimSpace(ugcPolicy.Sanitize(s))
}

// Words splits s into normalized letter and digit runs.
func Words(s string) []string {
	return strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Bool reads a feed flag: 1, true, yes, y, ναι, on or a positive number.
func Bool(s string) bool {
	switch Normalize(s) {
	case "1", "true", "yes", "y", "ναι", "on", "x":
		return true
	}
	n, ok := Number(s)
	return ok && n > 0
}

// foldAccents removes combining marks, so "Βάρος" and "Βαρος" compare equal.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize lower-cases, trims and folds accents. It is the comparison form
// of names, brands and characteristic keys.
func Normalize(s string) string {
	s = strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
	if s == "" {
		return ""
	}
	return strings.ToLower(foldAccents(s))
}

// Slugify builds a URL slug from s.
func Slugify(s string) string {
	s = Normalize(s)
	s = slugStrip.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Number parses the first number in s. Both "2,5" and "2.5" read as 2.5 and
// thousands separators are dropped when both separators appear.
func Number(s string) (float64, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(canonicalNumber(m), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// canonicalNumber rewrites a number with mixed separators into Go syntax.
// The separator appearing last is the decimal one. A lone separator repeated
// several times is a thousands separator.
func canonicalNumber(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// Price parses a supplier price into a decimal rounded to 2 places.
// It accepts strings with currency symbols and comma or dot decimals, and
// plain numbers.
func Price(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return t.Round(2), true
	case float64:
		return decimal.NewFromFloat(t).Round(2), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	}

	s := strings.TrimSpace(Scalar(v))
	m := numberRe.FindString(s)
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(canonicalNumber(m))
	if err != nil {
		return decimal.Zero, false
	}
	return d.Round(2), true
}

// Scalar renders a decoded feed value as text. Objects produced by the XML
// decoder for elements with attributes carry their text under "#text".
func Scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		if text, ok := t["#text"]; ok {
			return Scalar(text)
		}
		if text, ok := t["_"]; ok {
			return Scalar(text)
		}
		return ""
	case []any:
		if len(t) == 0 {
			return ""
		}
		return Scalar(t[0])
	case interface{ String() string }:
		return strings.TrimSpace(t.String())
	}
	return ""
}
