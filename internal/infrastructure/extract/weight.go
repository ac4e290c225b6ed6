package extract

import (
	"math"
	"regexp"
	"strings"

	"github.com/eshop/backend/internal/domain/catalog"
)

// Weight bounds in grams. Values outside are treated as feed errors.
const (
	MinWeight = 1
	MaxWeight = 500000
)

// WeightRule is a supplier-specific weight strategy. It runs after the
// characteristics strategy and before the generic text scan.
type WeightRule func(src WeightSource) (int, bool)

// WeightSource is everything a record offers for weight detection.
type WeightSource struct {
	Characteristics []catalog.Characteristic
	// Text is free text such as the description.
	Text string
	// Raw is the mapped weight field, usually a bare number.
	Raw string
	// Rule is the supplier strategy, may be nil.
	Rule WeightRule
}

var (
	weightNames    = []string{"weight", "βαρος", "gross weight", "net weight", "package weight", "μικτο βαρος", "καθαρο βαρος"}
	maxWeightNames = []string{"max", "μεγιστ", "load", "φορτι", "capacity"}

	// A number with an optional unit. The unit must not run into another word
	// so "8GB" never reads as grams.
	weightValueRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)*)\s*(kilograms?|kgr?s?|κιλα|κιλο|grams?|gr|g|γρ)?(?:[^\pL]|$)`)
	// Units are required when scanning free text.
	weightTextRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)*)\s*(kilograms?|kgr?s?|κιλα|κιλο|grams?|gr|g|γρ)(?:[^\pL]|$)`)
	// "Weight (kg): 2.5", "Weight: 800g", "Βάρος: 1,2 kg"
	labelledWeightRe = regexp.MustCompile(`(?i)(?:weight|βάρος|βαρος)\s*(?:\((kg|g|gr)\))?\s*[:=]\s*(\d+(?:[.,]\d+)*)\s*(kgr?|gr|g)?`)
	// "1.200" or "12,500": an integer with thousands groups.
	groupedIntRe = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})+$`)
)

// Weight returns the weight in grams. Strategies run in a fixed order:
// characteristics, supplier rule, free text, raw mapped field.
func Weight(src WeightSource) (int, bool) {
	if g, ok := WeightFromCharacteristics(src.Characteristics); ok {
		return g, true
	}
	if src.Rule != nil {
		if g, ok := src.Rule(src); ok && validWeight(g) {
			return g, true
		}
	}
	if g, ok := weightFromText(src.Text); ok {
		return g, true
	}
	if src.Raw != "" {
		return ParseWeight(src.Raw)
	}
	return 0, false
}

// WeightFromCharacteristics looks for a weight row, skipping maximum load rows.
func WeightFromCharacteristics(list []catalog.Characteristic) (int, bool) {
	for _, c := range list {
		if !isWeightName(c.Name) {
			continue
		}
		if g, ok := ParseWeight(c.Value); ok {
			return g, true
		}
	}
	return 0, false
}

func isWeightName(name string) bool {
	n := Normalize(name)
	for _, skip := range maxWeightNames {
		if strings.Contains(n, skip) {
			return false
		}
	}
	for _, w := range weightNames {
		if strings.Contains(n, w) {
			return true
		}
	}
	return false
}

// ParseWeight reads a value such as "2.5kg", "2500 g" or "2,5". A bare
// number below 100 is taken as kilograms, anything else as grams.
func ParseWeight(value string) (int, bool) {
	m := weightValueRe.FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}
	n, ok := weightNumber(m[1], m[2])
	if !ok {
		return 0, false
	}
	return toGrams(n, m[2], true)
}

// WeightFromLabelledText extracts every "Weight (kg): X" style candidate and
// returns the largest. Gross weight is the one that matters for shipping and
// it is the largest figure a description carries.
func WeightFromLabelledText(text string) (int, bool) {
	best := 0
	for _, m := range labelledWeightRe.FindAllStringSubmatch(text, -1) {
		unit := m[1]
		if unit == "" {
			unit = m[3]
		}
		n, ok := weightNumber(m[2], unit)
		if !ok {
			continue
		}
		g, ok := toGrams(n, unit, true)
		if ok && g > best {
			best = g
		}
	}
	return best, best > 0
}

// WeightFromPipeAttributes reads the weight row of a pipe-delimited
// attribute string such as "Color : Black| Weight : 1.2 kg".
func WeightFromPipeAttributes(s string) (int, bool) {
	return WeightFromCharacteristics(FromPipeString(s))
}

func weightFromText(text string) (int, bool) {
	if text == "" {
		return 0, false
	}
	if g, ok := WeightFromLabelledText(text); ok {
		return g, true
	}
	for _, m := range weightTextRe.FindAllStringSubmatch(text, -1) {
		n, ok := weightNumber(m[1], m[2])
		if !ok {
			continue
		}
		if g, ok := toGrams(n, m[2], false); ok {
			return g, true
		}
	}
	return 0, false
}

// weightNumber parses a number token captured next to unit. Grams are never
// fractional in a feed, so "1.200 g" and "1,200g" are both 1200.
func weightNumber(token, unit string) (float64, bool) {
	if isGramUnit(unit) && groupedIntRe.MatchString(token) {
		token = strings.NewReplacer(".", "", ",", "").Replace(token)
	}
	return Number(token)
}

func isGramUnit(unit string) bool {
	switch strings.ToLower(unit) {
	case "g", "gr", "gram", "grams", "γρ":
		return true
	}
	return false
}

// toGrams converts n in unit to grams and validates the range. Without a
// unit, guessUnit applies the bare-number heuristic.
func toGrams(n float64, unit string, guessUnit bool) (int, bool) {
	var grams float64
	switch strings.ToLower(unit) {
	case "kg", "kgs", "kgr", "kgrs", "kilogram", "kilograms", "κιλα", "κιλο":
		grams = n * 1000
	case "g", "gr", "gram", "grams", "γρ":
		grams = n
	case "":
		if !guessUnit {
			return 0, false
		}
		if n < 100 {
			grams = n * 1000
		} else {
			grams = n
		}
	default:
		return 0, false
	}
	g := int(math.Round(grams))
	if !validWeight(g) {
		return 0, false
	}
	return g, true
}

func validWeight(g int) bool {
	return g >= MinWeight && g <= MaxWeight
}
