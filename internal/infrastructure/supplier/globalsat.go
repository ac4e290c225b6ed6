package supplier

import (
	"strings"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/extract"
	"github.com/eshop/backend/internal/infrastructure/feed"
)

// Globalsat publishes XML with numbered image fields (Image1Link..Image5Link)
// and specification items carrying Name and Value children.
func Globalsat(deps Deps) importapp.Adapter {
	mapping := importapp.FieldMapping{
		Records:           "Products.Product",
		Name:              "Name",
		MPN:               "PartNumber",
		Barcode:           "EAN",
		Model:             "Model",
		SupplierProductID: "Code",
		Wholesale:         "Price",
		RetailPrice:       "RetailPrice",
		Quantity:          "Stock",
		Availability:      "Availability",
		Description:       "Description",
		Brand:             "Brand",
		Weight:            "Weight",
		Images:            extract.IndexedFields("Image", "Link", 1, 5),
		Characteristics:   "specifications.item",
		Category:          importapp.CategorySpec{Path: "Category", Splitter: "/"},
	}
	return importapp.Adapter{
		Name:    "globalsat",
		Mapping: mapping,
		Fetch:   feedFetch(deps.Feeds, feed.FormatXML, mapping.Records, nil),
		Characteristics: func(rec feed.Record) []catalog.Characteristic {
			v, _ := feed.Lookup(rec, mapping.Characteristics)
			return extract.FromNameValueList(v, "Name", "Value")
		},
		Transform:    globalsatTransform,
		Availability: availability(nil),
	}
}

// The Model field often repeats the product name; it is useless as identity then.
func globalsatTransform(d *importapp.Draft, _ feed.Record) error {
	p := d.Product
	if strings.EqualFold(strings.TrimSpace(p.Model), strings.TrimSpace(p.Name)) {
		p.Model = ""
	}
	return nil
}
