package extract

import (
	"math"
	"regexp"
	"strings"

	"github.com/eshop/backend/internal/domain/catalog"
)

// Axis bounds in millimeters.
const (
	MinAxis = 1
	MaxAxis = 5000
)

// DimensionRule is a supplier-specific dimensions strategy.
type DimensionRule func(src DimensionSource) (catalog.Dimensions, bool)

// DimensionSource is everything a record offers for dimension detection.
type DimensionSource struct {
	Characteristics []catalog.Characteristic
	Text            string
	// Raw is the mapped combined field, e.g. "10x20x30 cm".
	Raw string
	// Length, Width and Height are mapped per-axis fields. Unitless values are cm.
	Length string
	Width  string
	Height string
	Rule   DimensionRule
}

var (
	dimensionNames = []string{"dimensions", "dimension", "διαστασεις", "διασταση", "size", "μεγεθος"}
	lengthNames    = []string{"length", "depth", "μηκος", "βαθος"}
	widthNames     = []string{"width", "πλατος"}
	heightNames    = []string{"height", "υψος"}
	axisSkipNames  = []string{"max", "μεγιστ", "cable", "καλωδι", "screen", "οθονη"}

	numPattern  = `(\d+(?:[.,]\d+)?)`
	unitPattern = `(mm|cm|m)?`
	sepPattern  = `\s*[x×χ*]\s*`
	tripletRe   = regexp.MustCompile(`(?i)` + numPattern + `\s*` + unitPattern + sepPattern + numPattern + `\s*` + unitPattern + sepPattern + numPattern + `\s*` + unitPattern + `(?:[^\pL]|$)`)
	axisRe      = regexp.MustCompile(`(?i)` + numPattern + `\s*` + unitPattern + `(?:[^\pL]|$)`)
)

// Dimensions returns package dimensions in millimeters. Strategies run in a
// fixed order: characteristics, supplier rule, raw combined field, per-axis
// fields.
func Dimensions(src DimensionSource) (catalog.Dimensions, bool) {
	if d, ok := DimensionsFromCharacteristics(src.Characteristics); ok {
		return d, true
	}
	if src.Rule != nil {
		if d, ok := src.Rule(src); ok && validDimensions(d) {
			return d, true
		}
	}
	if src.Raw != "" {
		if d, ok := ParseDimensions(src.Raw); ok {
			return d, true
		}
	}
	if src.Length != "" && src.Width != "" && src.Height != "" {
		return axesToDimensions(src.Length, src.Width, src.Height)
	}
	return catalog.Dimensions{}, false
}

// DimensionsFromCharacteristics reads a combined dimensions row, or three
// separate length, width and height rows.
func DimensionsFromCharacteristics(list []catalog.Characteristic) (catalog.Dimensions, bool) {
	var length, width, height string
	for _, c := range list {
		n := Normalize(c.Name)
		if containsAny(n, axisSkipNames) {
			continue
		}
		switch {
		case containsAny(n, dimensionNames):
			if d, ok := ParseDimensions(c.Value); ok {
				return d, true
			}
		case length == "" && containsAny(n, lengthNames):
			length = c.Value
		case width == "" && containsAny(n, widthNames):
			width = c.Value
		case height == "" && containsAny(n, heightNames):
			height = c.Value
		}
	}
	if length != "" && width != "" && height != "" {
		return axesToDimensions(length, width, height)
	}
	return catalog.Dimensions{}, false
}

// ParseDimensions reads "AxBxC unit". The separator may be x, ×, χ or *.
// An explicit mm, cm or m unit wins. Without one the values are cm, unless
// all three exceed 1000 in which case they are already mm.
func ParseDimensions(s string) (catalog.Dimensions, bool) {
	m := tripletRe.FindStringSubmatch(s)
	if m == nil {
		return catalog.Dimensions{}, false
	}
	values := make([]float64, 3)
	for i, idx := range []int{1, 3, 5} {
		n, ok := Number(m[idx])
		if !ok {
			return catalog.Dimensions{}, false
		}
		values[i] = n
	}

	// The unit usually trails the last value but "10cm x 20cm x 30cm" works too.
	u := strings.ToLower(firstNonEmpty(m[6], m[4], m[2]))
	factor := unitFactor(u)
	if u == "" {
		factor = 10
		if values[0] > 1000 && values[1] > 1000 && values[2] > 1000 {
			factor = 1
		}
	}

	d := catalog.Dimensions{
		Length: toMillimeters(values[0], factor),
		Width:  toMillimeters(values[1], factor),
		Height: toMillimeters(values[2], factor),
	}
	if !validDimensions(d) {
		return catalog.Dimensions{}, false
	}
	return d, true
}

// ParseLength reads a single axis value. Unitless values are cm.
func ParseLength(s string) (int, bool) {
	m := axisRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, ok := Number(m[1])
	if !ok {
		return 0, false
	}
	factor := 10.0
	if m[2] != "" {
		factor = unitFactor(strings.ToLower(m[2]))
	}
	mm := toMillimeters(n, factor)
	if mm < MinAxis || mm > MaxAxis {
		return 0, false
	}
	return mm, true
}

func axesToDimensions(length, width, height string) (catalog.Dimensions, bool) {
	l, ok1 := ParseLength(length)
	w, ok2 := ParseLength(width)
	h, ok3 := ParseLength(height)
	if !ok1 || !ok2 || !ok3 {
		return catalog.Dimensions{}, false
	}
	return catalog.Dimensions{Length: l, Width: w, Height: h}, true
}

func unitFactor(u string) float64 {
	switch u {
	case "mm":
		return 1
	case "m":
		return 1000
	default:
		return 10
	}
}

func toMillimeters(n, factor float64) int {
	return int(math.Round(n * factor))
}

func validDimensions(d catalog.Dimensions) bool {
	for _, v := range []int{d.Length, d.Width, d.Height} {
		if v < MinAxis || v > MaxAxis {
			return false
		}
	}
	return true
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
