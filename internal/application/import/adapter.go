package importapp

import (
	"context"
	"errors"
	"strings"

	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/extract"
	"github.com/eshop/backend/internal/infrastructure/feed"
)

// FetchFunc downloads a supplier catalog and returns one record per product.
type FetchFunc func(ctx context.Context, entry Entry) ([]feed.Record, error)

// CharacteristicsFunc extracts the specification rows of a record.
type CharacteristicsFunc func(rec feed.Record) []catalog.Characteristic

// TransformFunc applies supplier-specific cleanup to a draft after the
// default field building and extraction ran.
type TransformFunc func(d *Draft, rec feed.Record) error

// Adapter is everything the pipeline needs to know about one supplier.
// Only Name, Mapping and Fetch are required; unset hooks fall back to the
// generic behavior.
type Adapter struct {
	Name    string
	Mapping FieldMapping
	Fetch   FetchFunc
	// Characteristics defaults to extract.Generic on Mapping.Characteristics.
	Characteristics CharacteristicsFunc
	Transform       TransformFunc
	WeightRule      extract.WeightRule
	DimensionRule   extract.DimensionRule
	// Availability maps availability labels (compared normalized) to statuses.
	Availability map[string]catalog.ProductStatus
	// ImageBase resolves relative image URLs.
	ImageBase string
}

// Validate checks the adapter is usable.
func (a Adapter) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("adapter name is required")
	}
	if a.Fetch == nil {
		return errors.New("adapter " + a.Name + " has no fetch function")
	}
	return nil
}

// CategorySpec tells how the category path is read from a record. Either
// Path is split by Splitter (">" when IsGreater), or the three level fields
// are used.
type CategorySpec struct {
	Path         string
	Splitter     string
	IsGreater    bool
	Category     string
	Subcategory  string
	Sub2Category string
}

// Segments returns the category path of rec, outermost first.
func (s CategorySpec) Segments(rec feed.Record) []string {
	var parts []string
	if s.Path != "" {
		raw := feed.String(rec, s.Path)
		sep := s.Splitter
		if s.IsGreater {
			sep = ">"
		}
		if sep == "" {
			parts = []string{raw}
		} else {
			parts = strings.Split(raw, sep)
		}
	} else {
		for _, p := range []string{s.Category, s.Subcategory, s.Sub2Category} {
			if p != "" {
				parts = append(parts, feed.String(rec, p))
			}
		}
	}

	out := parts[:0]
	for _, p := range parts {
		if p = extract.CleanHTML(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FieldMapping names the record paths of each canonical field. Paths are
// dotted, may index lists numerically and unwrap "#text" values.
type FieldMapping struct {
	// Records is the path of the product list in the fetched document.
	Records string

	Name              string
	MPN               string
	Barcode           string
	Model             string
	SupplierProductID string
	ProductURL        string

	Wholesale   string
	RetailPrice string
	RecycleTax  string
	InOffer     string

	Quantity     string
	Availability string
	// InStock is an optional boolean stock flag.
	InStock string

	Description      string
	ShortDescription string
	Brand            string

	Weight     string
	Dimensions string
	Length     string
	Width      string
	Height     string

	ImageMain string
	// Images lists further image fields in gallery order.
	Images          []string
	ImageAdditional string

	Characteristics string
	Category        CategorySpec
}
