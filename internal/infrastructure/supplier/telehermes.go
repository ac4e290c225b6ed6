package supplier

import (
	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/extract"
	"github.com/eshop/backend/internal/infrastructure/feed"
)

// Telehermes serves JSON behind a bearer token. Attributes are exported from
// XML as {"$": {"key": .., "value": ..}} rows and dimensions use the Greek χ
// as separator.
func Telehermes(deps Deps) importapp.Adapter {
	mapping := importapp.FieldMapping{
		Records:           "items",
		Name:              "name",
		MPN:               "mpn",
		Barcode:           "ean",
		SupplierProductID: "code",
		Wholesale:         "wholesale",
		RetailPrice:       "srp",
		RecycleTax:        "eco_fee",
		Quantity:          "stock",
		Availability:      "stock_status",
		Description:       "long_description",
		ShortDescription:  "short_description",
		Brand:             "brand",
		Weight:            "weight",
		Dimensions:        "dimensions",
		ImageMain:         "image",
		ImageAdditional:   "gallery",
		Characteristics:   "attributes",
		Category:          importapp.CategorySpec{Path: "category_path", IsGreater: true},
	}
	return importapp.Adapter{
		Name:    "telehermes",
		Mapping: mapping,
		Fetch: feedFetch(deps.Feeds, feed.FormatJSON, mapping.Records, func(e importapp.Entry, req *feed.Request) {
			if e.APIKey != "" {
				req.Headers = map[string]string{"Authorization": "Bearer " + e.APIKey}
			}
		}),
		Characteristics: func(rec feed.Record) []catalog.Characteristic {
			return extract.FromAttributeArray(rec[mapping.Characteristics])
		},
		Availability: availability(nil),
	}
}
