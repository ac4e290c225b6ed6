package supplier

import (
	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/feed"
)

// Oktabit publishes XML with three category level fields, ImageLink,
// ImageLink2 and ImageLink3, and the weight in kilograms.
func Oktabit(deps Deps) importapp.Adapter {
	mapping := importapp.FieldMapping{
		Records:           "products.product",
		Name:              "title",
		MPN:               "part_no",
		Barcode:           "barcode",
		SupplierProductID: "code",
		Wholesale:         "price",
		RetailPrice:       "retail_price",
		RecycleTax:        "recycle_tax",
		Quantity:          "stock",
		Availability:      "availability",
		Description:       "description",
		Brand:             "brand",
		Weight:            "weight",
		Images:            []string{"ImageLink", "ImageLink2", "ImageLink3"},
		Characteristics:   "specs",
		Category: importapp.CategorySpec{
			Category:     "category",
			Subcategory:  "subcategory",
			Sub2Category: "sub2category",
		},
	}
	return importapp.Adapter{
		Name:       "oktabit",
		Mapping:    mapping,
		Fetch:      feedFetch(deps.Feeds, feed.FormatXML, mapping.Records, nil),
		WeightRule: kilograms,
		Availability: availability(map[string]catalog.ProductStatus{
			"Y": catalog.StatusInStock,
			"L": catalog.StatusLowStock,
			"P": catalog.StatusBackorder,
			"N": catalog.StatusOutOfStock,
		}),
	}
}
