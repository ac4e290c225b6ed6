package supplier

import (
	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/infrastructure/feed"
)

// Zegetron sends a spreadsheet. Every row is a product keyed by the header
// row; dimensions are separate columns in cm and the weight column is kg.
func Zegetron(deps Deps) importapp.Adapter {
	mapping := importapp.FieldMapping{
		Name:            "Description",
		MPN:             "Part Number",
		Barcode:         "EAN",
		Wholesale:       "Price",
		RetailPrice:     "Retail Price",
		Quantity:        "Stock",
		Description:     "Long Description",
		Brand:           "Brand",
		Weight:          "Weight (kg)",
		Length:          "Length (cm)",
		Width:           "Width (cm)",
		Height:          "Height (cm)",
		ImageMain:       "Image URL",
		ImageAdditional: "Extra Images",
		Category:        importapp.CategorySpec{Path: "Category", Splitter: "/"},
	}
	return importapp.Adapter{
		Name:       "zegetron",
		Mapping:    mapping,
		Fetch:      feedFetch(deps.Feeds, feed.FormatXLSX, mapping.Records, nil),
		WeightRule: kilograms,
	}
}
