package supplier

import (
	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/scraper"
)

// scrapedMapping is shared by the suppliers read from their web shop. The
// scraper emits flat records keyed by the SiteRules field names below.
func scrapedMapping() importapp.FieldMapping {
	return importapp.FieldMapping{
		Name:              "name",
		MPN:               "mpn",
		Barcode:           "barcode",
		Model:             "model",
		SupplierProductID: "sku",
		ProductURL:        scraper.KeyURL,
		Wholesale:         "price",
		Availability:      "availability",
		Description:       "description",
		Brand:             "brand",
		ImageAdditional:   scraper.KeyImages,
		Category:          importapp.CategorySpec{Path: "category", IsGreater: true},
	}
}

func scrapedAdapter(deps Deps, rules scraper.SiteRules, imageBase string, extra map[string]catalog.ProductStatus) importapp.Adapter {
	return importapp.Adapter{
		Name:            rules.Supplier,
		Mapping:         scrapedMapping(),
		Fetch:           scrapedFetch(deps.Scraper, rules),
		Characteristics: specRows,
		Transform:       scrapedTransform,
		Availability:    availability(extra),
		ImageBase:       imageBase,
	}
}

// GlobalsatWeb reads the Globalsat B2B shop for the products missing from
// its XML feed.
func GlobalsatWeb(deps Deps) importapp.Adapter {
	return scrapedAdapter(deps, scraper.SiteRules{
		Supplier:    "globalsat-web",
		StartURLs:   []string{"https://b2b.globalsat.gr/catalog"},
		ProductLink: "div.product-item a.product-item-link",
		NextPage:    "li.pages-item-next a",
		Fields: map[string]scraper.Field{
			"name":         {Selector: "h1.page-title"},
			"mpn":          {Selector: "div.product-mpn"},
			"barcode":      {Selector: "div.product-ean"},
			"sku":          {Selector: "div.product-sku"},
			"price":        {Selector: "span.price-wholesale span.price"},
			"availability": {Selector: "div.stock span"},
			"description":  {Selector: "div.product.description"},
			"brand":        {Selector: "div.product-brand img", Attr: "alt"},
			"category":     {Selector: "div.breadcrumbs li", Join: " > "},
		},
		SpecRow:   "table.additional-attributes tr",
		SpecName:  "th",
		SpecValue: "td",
		Image:     "div.product-gallery img",
		ImageAttr: "data-src",
	}, "", nil)
}

// Novatron lists stock as a word rather than a quantity.
func Novatron(deps Deps) importapp.Adapter {
	return scrapedAdapter(deps, scraper.SiteRules{
		Supplier:    "novatron",
		StartURLs:   []string{"https://www.novatron.gr/products"},
		ProductLink: "div.products-grid h3 a",
		NextPage:    "a.pagination-next",
		Fields: map[string]scraper.Field{
			"name":         {Selector: "h1.product-name"},
			"mpn":          {Selector: "span.product-code"},
			"barcode":      {Selector: "span.product-barcode"},
			"model":        {Selector: "span.product-model"},
			"price":        {Selector: "div.price-box span.net-price"},
			"availability": {Selector: "div.availability"},
			"description":  {Selector: "div#description"},
			"brand":        {Selector: "span.product-brand"},
			"category":     {Selector: "ol.breadcrumb li a", Join: " > "},
		},
		SpecRow:   "div#specs dl",
		SpecName:  "dt",
		SpecValue: "dd",
		Image:     "div.product-images a",
		ImageAttr: "href",
	}, "", map[string]catalog.ProductStatus{
		"Πολλά τεμάχια":     catalog.StatusInStock,
		"Λίγα τεμάχια":      catalog.StatusLowStock,
		"Τελευταία τεμάχια": catalog.StatusLowStock,
	})
}

// Quest serves gallery images as site relative paths.
func Quest(deps Deps) importapp.Adapter {
	return scrapedAdapter(deps, scraper.SiteRules{
		Supplier:    "quest",
		StartURLs:   []string{"https://www.questonline.gr/catalog"},
		ProductLink: "div.item-card a.item-title",
		NextPage:    "ul.paging a.next",
		Fields: map[string]scraper.Field{
			"name":         {Selector: "h1"},
			"mpn":          {Selector: "li.part-number"},
			"barcode":      {Selector: "li.ean"},
			"sku":          {Selector: "li.item-code"},
			"price":        {Selector: "span.dealer-price"},
			"availability": {Selector: "span.stock-label"},
			"description":  {Selector: "div.item-description"},
			"brand":        {Selector: "li.brand a"},
			"category":     {Selector: "nav.breadcrumbs a", Join: " > "},
		},
		SpecRow:   "table.tech-specs tr",
		SpecName:  "td.spec-name",
		SpecValue: "td.spec-value",
		Image:     "div.item-gallery img",
	}, "https://www.questonline.gr/", nil)
}
