package importapp

import (
	"math"

	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/domain/shared"
	"github.com/eshop/backend/internal/infrastructure/extract"
	"github.com/eshop/backend/internal/infrastructure/feed"
)

// brandWords is a brand with its name split for word matching.
type brandWords struct {
	brand *catalog.Brand
	key   string
	words []string
}

// FieldBuilder maps raw records of one supplier onto drafts using the
// adapter's field mapping and the cached category tree and brands.
type FieldBuilder struct {
	adapter      Adapter
	categories   *CategoryIndex
	brands       []brandWords
	availability map[string]catalog.ProductStatus
}

// NewFieldBuilder creates a builder. brands must be sorted longest name first.
func NewFieldBuilder(adapter Adapter, categories *CategoryIndex, brands []catalog.Brand) *FieldBuilder {
	if categories == nil {
		categories = NewCategoryIndex(nil)
	}
	b := &FieldBuilder{
		adapter:      adapter,
		categories:   categories,
		brands:       make([]brandWords, 0, len(brands)),
		availability: make(map[string]catalog.ProductStatus, len(adapter.Availability)),
	}
	for i := range brands {
		br := &brands[i]
		words := extract.Words(br.Name)
		if len(words) == 0 {
			continue
		}
		b.brands = append(b.brands, brandWords{brand: br, key: extract.Normalize(br.Name), words: words})
	}
	for label, status := range adapter.Availability {
		b.availability[extract.Normalize(label)] = status
	}
	return b
}

func (b *FieldBuilder) str(rec feed.Record, path string) string {
	if path == "" {
		return ""
	}
	return feed.String(rec, path)
}

func (b *FieldBuilder) value(rec feed.Record, path string) any {
	if path == "" {
		return nil
	}
	v, _ := feed.Lookup(rec, path)
	return v
}

// Build maps the plain fields of rec. The draft may lack identity; callers
// drop those.
func (b *FieldBuilder) Build(rec feed.Record) *Draft {
	m := b.adapter.Mapping
	p := &catalog.Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              extract.CleanHTML(b.str(rec, m.Name)),
		MPN:               b.str(rec, m.MPN),
		Barcode:           b.str(rec, m.Barcode),
		Model:             b.str(rec, m.Model),
		Description:       extract.SanitizeHTML(b.str(rec, m.Description)),
		ShortDescription:  extract.CleanHTML(b.str(rec, m.ShortDescription)),
		Status:            catalog.StatusOutOfStock,
		Published:         true,
	}
	p.Slug = extract.Slugify(p.Name)
	if v, ok := extract.Price(b.value(rec, m.RetailPrice)); ok {
		p.RetailPrice = v
	}
	if v, ok := extract.Price(b.value(rec, m.RecycleTax)); ok {
		p.RecycleTax = v
	}
	if m.InOffer != "" {
		p.InOffer = extract.Bool(b.str(rec, m.InOffer))
	}

	d := &Draft{Product: p, Offer: b.offer(rec)}

	if cat := b.categories.Resolve(m.Category.Segments(rec)); cat != nil {
		id := cat.ID
		p.CategoryID = &id
	}

	mapped := extract.CleanHTML(b.str(rec, m.Brand))
	if br := b.ResolveBrand(mapped, p.Name); br != nil {
		id := br.ID
		p.BrandID = &id
		d.BrandName = br.Name
	} else {
		d.BrandName = mapped
	}
	return d
}

func (b *FieldBuilder) offer(rec feed.Record) catalog.SupplierInfo {
	m := b.adapter.Mapping
	offer := catalog.SupplierInfo{
		Name:              b.adapter.Name,
		SupplierProductID: b.str(rec, m.SupplierProductID),
		ProductURL:        b.str(rec, m.ProductURL),
	}
	if v, ok := extract.Price(b.value(rec, m.Wholesale)); ok {
		offer.Wholesale = v
	}
	if m.Quantity != "" {
		if n, ok := extract.Number(b.str(rec, m.Quantity)); ok && n > 0 {
			offer.Quantity = int(math.Floor(n))
		}
	}
	if label := extract.Normalize(extract.CleanHTML(b.str(rec, m.Availability))); label != "" {
		offer.TranslatedStatus = b.availability[label]
	}
	if m.InStock != "" {
		offer.InStock = extract.Bool(b.str(rec, m.InStock))
	} else {
		offer.InStock = offer.Quantity > 0 || offer.TranslatedStatus.IsAvailable()
	}
	return offer
}

// Extract fills the derived fields: characteristics, weight, dimensions and
// images.
func (b *FieldBuilder) Extract(d *Draft, rec feed.Record) {
	m := b.adapter.Mapping
	p := d.Product

	var chars []catalog.Characteristic
	if b.adapter.Characteristics != nil {
		chars = b.adapter.Characteristics(rec)
	} else if m.Characteristics != "" {
		chars = extract.Generic(b.value(rec, m.Characteristics))
	}
	p.SetCharacteristics(extract.Clean(chars))

	text := extract.CleanHTML(p.Description + " " + p.ShortDescription)
	if g, ok := extract.Weight(extract.WeightSource{
		Characteristics: p.Characteristics,
		Text:            text,
		Raw:             b.str(rec, m.Weight),
		Rule:            b.adapter.WeightRule,
	}); ok {
		p.Weight = &g
	}
	if dims, ok := extract.Dimensions(extract.DimensionSource{
		Characteristics: p.Characteristics,
		Text:            text,
		Raw:             b.str(rec, m.Dimensions),
		Length:          b.str(rec, m.Length),
		Width:           b.str(rec, m.Width),
		Height:          b.str(rec, m.Height),
		Rule:            b.adapter.DimensionRule,
	}); ok {
		p.SetDimensions(dims)
	}

	fields := make([]string, 0, len(m.Images))
	for _, path := range m.Images {
		fields = append(fields, b.str(rec, path))
	}
	p.SetImages(extract.Images(extract.ImageSource{
		Main:       b.str(rec, m.ImageMain),
		Fields:     fields,
		Additional: b.value(rec, m.ImageAdditional),
		Base:       b.adapter.ImageBase,
	}))
}

// ResolveBrand finds the brand of a product. A mapped brand is matched by
// normalized name or slug. Otherwise brands, longest first, are searched as
// whole words in the first three words of the name and then in the full name.
func (b *FieldBuilder) ResolveBrand(mapped, name string) *catalog.Brand {
	if mapped != "" {
		key := extract.Normalize(mapped)
		slug := extract.Slugify(mapped)
		for _, bw := range b.brands {
			if bw.key == key || (bw.brand.Slug != "" && bw.brand.Slug == slug) {
				return bw.brand
			}
		}
	}

	words := extract.Words(name)
	if len(words) == 0 {
		return nil
	}
	head := words[:min(3, len(words))]
	for _, scope := range [][]string{head, words} {
		for _, bw := range b.brands {
			if containsWords(scope, bw.words) {
				return bw.brand
			}
		}
	}
	return nil
}

// containsWords reports whether needle occurs as consecutive words of haystack.
func containsWords(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, w := range needle {
			if haystack[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}
