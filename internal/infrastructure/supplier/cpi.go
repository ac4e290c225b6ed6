package supplier

import (
	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/extract"
	"github.com/eshop/backend/internal/infrastructure/feed"
)

// CPI publishes an XML feed. Categories come as one ">" separated path and
// specifications as attribute rows: <spec name="Color" value="Black"/>.
func CPI(deps Deps) importapp.Adapter {
	mapping := importapp.FieldMapping{
		Records:           "products.product",
		Name:              "name",
		MPN:               "mpn",
		Barcode:           "ean",
		Model:             "model",
		SupplierProductID: "code",
		ProductURL:        "url",
		Wholesale:         "price",
		RetailPrice:       "retail_price",
		RecycleTax:        "recycle_tax",
		Quantity:          "stock",
		Availability:      "availability",
		Description:       "description",
		ShortDescription:  "short_description",
		Brand:             "manufacturer",
		Weight:            "weight",
		ImageMain:         "image",
		ImageAdditional:   "images.image",
		Characteristics:   "specs.spec",
		Category:          importapp.CategorySpec{Path: "category", IsGreater: true},
	}
	return importapp.Adapter{
		Name:    "cpi",
		Mapping: mapping,
		Fetch:   feedFetch(deps.Feeds, feed.FormatXML, mapping.Records, nil),
		Characteristics: func(rec feed.Record) []catalog.Characteristic {
			v, _ := feed.Lookup(rec, mapping.Characteristics)
			return extract.FromAttributeArray(v)
		},
		Transform:    cpiTransform,
		Availability: availability(nil),
	}
}

// The ean field sometimes lists every barcode of the product.
func cpiTransform(d *importapp.Draft, _ feed.Record) error {
	d.Product.Barcode = firstCode(d.Product.Barcode)
	return nil
}
