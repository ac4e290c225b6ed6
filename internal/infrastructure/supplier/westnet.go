package supplier

import (
	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/infrastructure/feed"
)

// Westnet publishes XML with a Y/N stock flag. Descriptions list several
// "Weight (kg): X" lines, net and gross; the largest one is kept.
func Westnet(deps Deps) importapp.Adapter {
	mapping := importapp.FieldMapping{
		Records:           "products.product",
		Name:              "name",
		MPN:               "mpn",
		Barcode:           "ean",
		SupplierProductID: "code",
		Wholesale:         "price",
		RetailPrice:       "retail",
		Quantity:          "qty",
		InStock:           "instock",
		Availability:      "availability",
		Description:       "description",
		Brand:             "manufacturer",
		ImageMain:         "image",
		ImageAdditional:   "additional_images.image",
		Characteristics:   "specifications",
		Category:          importapp.CategorySpec{Category: "category", Subcategory: "subcategory"},
	}
	return importapp.Adapter{
		Name:         "westnet",
		Mapping:      mapping,
		Fetch:        feedFetch(deps.Feeds, feed.FormatXML, mapping.Records, nil),
		WeightRule:   labelledWeight,
		Availability: availability(nil),
	}
}
