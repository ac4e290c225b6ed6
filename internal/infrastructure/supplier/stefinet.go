package supplier

import (
	"strings"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/extract"
	"github.com/eshop/backend/internal/infrastructure/feed"
)

const stefinetSite = "https://www.stefinet.gr"

// Stefinet publishes XML with attributes packed into one pipe delimited
// string and image and product paths relative to its site.
func Stefinet(deps Deps) importapp.Adapter {
	mapping := importapp.FieldMapping{
		Records:           "catalog.product",
		Name:              "name",
		MPN:               "mpn",
		Barcode:           "ean",
		SupplierProductID: "id",
		ProductURL:        "url",
		Wholesale:         "price",
		RetailPrice:       "msrp",
		Quantity:          "qty",
		Availability:      "stock_status",
		Description:       "description",
		Brand:             "manufacturer",
		ImageMain:         "image",
		ImageAdditional:   "gallery.image",
		Characteristics:   "attributes",
		Category:          importapp.CategorySpec{Path: "category", Splitter: "/"},
	}
	return importapp.Adapter{
		Name:    "stefinet",
		Mapping: mapping,
		Fetch:   feedFetch(deps.Feeds, feed.FormatXML, mapping.Records, nil),
		Characteristics: func(rec feed.Record) []catalog.Characteristic {
			return extract.FromPipeString(feed.String(rec, mapping.Characteristics))
		},
		Transform:    stefinetTransform,
		Availability: availability(nil),
		ImageBase:    stefinetSite + "/",
	}
}

func stefinetTransform(d *importapp.Draft, _ feed.Record) error {
	if u := d.Offer.ProductURL; u != "" && !strings.HasPrefix(u, "http") {
		d.Offer.ProductURL = stefinetSite + "/" + strings.TrimLeft(u, "/")
	}
	return nil
}
