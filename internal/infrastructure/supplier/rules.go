package supplier

import (
	"regexp"
	"strings"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/extract"
	"github.com/eshop/backend/internal/infrastructure/feed"
	"github.com/eshop/backend/internal/infrastructure/scraper"
)

// greekAvailability covers the stock labels Greek distributors share.
// Adapters extend it with their own wording.
var greekAvailability = map[string]catalog.ProductStatus{
	"Διαθέσιμο":                     catalog.StatusInStock,
	"Άμεσα διαθέσιμο":               catalog.StatusInStock,
	"Σε απόθεμα":                    catalog.StatusInStock,
	"Περιορισμένη διαθεσιμότητα":    catalog.StatusLowStock,
	"Περιορισμένο απόθεμα":          catalog.StatusLowStock,
	"Κατόπιν παραγγελίας":           catalog.StatusBackorder,
	"Διαθέσιμο κατόπιν παραγγελίας": catalog.StatusBackorder,
	"Αναμένεται":                    catalog.StatusIsExpected,
	"Σε αναμονή":                    catalog.StatusIsExpected,
	"Μη διαθέσιμο":                  catalog.StatusOutOfStock,
	"Εξαντλημένο":                   catalog.StatusOutOfStock,
	"Available":                     catalog.StatusInStock,
	"In stock":                      catalog.StatusInStock,
	"Limited":                       catalog.StatusLowStock,
	"Low stock":                     catalog.StatusLowStock,
	"On order":                      catalog.StatusBackorder,
	"Backorder":                     catalog.StatusBackorder,
	"Expected":                      catalog.StatusIsExpected,
	"Incoming":                      catalog.StatusIsExpected,
	"Out of stock":                  catalog.StatusOutOfStock,
	"Not available":                 catalog.StatusOutOfStock,
}

// availability returns the shared table extended with extra labels.
func availability(extra map[string]catalog.ProductStatus) map[string]catalog.ProductStatus {
	out := make(map[string]catalog.ProductStatus, len(greekAvailability)+len(extra))
	for k, v := range greekAvailability {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// kilograms reads the mapped weight field as kilograms whatever its size.
// Feeds that document their weight column in kg use it instead of the
// bare number heuristic.
func kilograms(src extract.WeightSource) (int, bool) {
	n, ok := extract.Number(src.Raw)
	if !ok || n <= 0 {
		return 0, false
	}
	return int(n*1000 + 0.5), true
}

// labelledWeight takes the largest "Weight (kg): X" figure of the description.
func labelledWeight(src extract.WeightSource) (int, bool) {
	return extract.WeightFromLabelledText(src.Text)
}

var labelPrefixRe = regexp.MustCompile(`^[^:]{1,40}:\s*`)

// stripLabel drops a leading "Label:" from a scraped value, as in
// "Κωδικός κατασκευαστή: ABC-123".
func stripLabel(s string) string {
	return strings.TrimSpace(labelPrefixRe.ReplaceAllString(strings.TrimSpace(s), ""))
}

// firstCode keeps the first of several codes packed into one field.
func firstCode(s string) string {
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '/' || r == ' '
	}) {
		if part = strings.TrimSpace(part); part != "" {
			return part
		}
	}
	return ""
}

// scrapedTransform cleans the identity fields of scraped pages, which carry
// their labels along with the values.
func scrapedTransform(d *importapp.Draft, _ feed.Record) error {
	p := d.Product
	p.MPN = stripLabel(p.MPN)
	p.Barcode = firstCode(stripLabel(p.Barcode))
	p.Model = stripLabel(p.Model)
	return nil
}

// specRows reads the name and value rows the scraper collects.
func specRows(rec feed.Record) []catalog.Characteristic {
	return extract.FromNameValueList(rec[scraper.KeySpecs], "Name", "Value")
}
