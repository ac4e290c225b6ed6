package supplier

import (
	"net/url"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/extract"
	"github.com/eshop/backend/internal/infrastructure/feed"
)

// DotMedia serves JSON behind an API key. Attributes are one object keyed by
// attribute name and weights hide in the description as "Weight (kg): X".
func DotMedia(deps Deps) importapp.Adapter {
	mapping := importapp.FieldMapping{
		Records:           "data",
		Name:              "title",
		MPN:               "mpn",
		Barcode:           "barcode",
		SupplierProductID: "sku",
		ProductURL:        "link",
		Wholesale:         "price_wholesale",
		RetailPrice:       "price_retail",
		InOffer:           "on_sale",
		Quantity:          "stock_qty",
		Availability:      "stock_status",
		Description:       "description_html",
		ShortDescription:  "summary",
		Brand:             "brand",
		ImageMain:         "thumbnail",
		ImageAdditional:   "images",
		Characteristics:   "attributes",
		Category:          importapp.CategorySpec{Category: "category", Subcategory: "subcategory"},
	}
	return importapp.Adapter{
		Name:    "dotmedia",
		Mapping: mapping,
		Fetch: feedFetch(deps.Feeds, feed.FormatJSON, mapping.Records, func(e importapp.Entry, req *feed.Request) {
			req.Headers = map[string]string{"Accept": "application/json"}
			if e.APIKey != "" {
				req.Query = url.Values{"apikey": {e.APIKey}}
			}
		}),
		Characteristics: func(rec feed.Record) []catalog.Characteristic {
			attrs, _ := rec[mapping.Characteristics].(map[string]any)
			return extract.FromKeyValueMap(attrs)
		},
		WeightRule: labelledWeight,
		Transform:  dotmediaTransform,
		Availability: availability(map[string]catalog.ProductStatus{
			"instock":    catalog.StatusInStock,
			"lowstock":   catalog.StatusLowStock,
			"preorder":   catalog.StatusIsExpected,
			"outofstock": catalog.StatusOutOfStock,
		}),
	}
}

// A positive discount price replaces the list wholesale and marks the offer.
func dotmediaTransform(d *importapp.Draft, rec feed.Record) error {
	if v, ok := extract.Price(rec["price_discount"]); ok && v.IsPositive() && v.LessThan(d.Offer.Wholesale) {
		d.Offer.Wholesale = v
		d.Product.InOffer = true
	}
	return nil
}
