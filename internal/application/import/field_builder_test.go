package importapp

import (
	"testing"

	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/feed"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAdapter() Adapter {
	return Adapter{
		Name: "cpi",
		Mapping: FieldMapping{
			Name:            "title",
			MPN:             "mpn",
			Barcode:         "ean",
			Model:           "model",
			Wholesale:       "price.#text",
			RetailPrice:     "msrp",
			Quantity:        "stock",
			Availability:    "availability",
			Description:     "description",
			Brand:           "manufacturer",
			Weight:          "weight",
			ImageMain:       "image",
			Images:          []string{"image2", "image3"},
			Characteristics: "specs",
			Category:        CategorySpec{Path: "category", IsGreater: true},
		},
		Availability: map[string]catalog.ProductStatus{
			"Διαθέσιμο":           catalog.StatusInStock,
			"Κατόπιν παραγγελίας": catalog.StatusBackorder,
		},
	}
}

func testRecord() feed.Record {
	return feed.Record{
		"title":        " <b>Logitech</b> M100 Mouse ",
		"mpn":          "910-005003",
		"ean":          "5099206027209",
		"model":        "M100",
		"price":        map[string]any{"-currency": "EUR", "#text": "7,90"},
		"msrp":         "12.90",
		"stock":        "0",
		"availability": "Κατόπιν Παραγγελίας",
		"description":  "<p>Wired mouse</p><script>x()</script>",
		"manufacturer": "LOGITECH",
		"weight":       "0.09",
		"image":        "https://img.example.com/m100.jpg",
		"image2":       "https://img.example.com/m100-2.jpg",
		"image3":       "https://img.example.com/m100.jpg",
		"specs": map[string]any{"spec": []any{
			map[string]any{"name": "Color", "value": "Black"},
			map[string]any{"name": "Dimensions", "value": "11.3 x 6.2 x 3.8 cm"},
		}},
		"category": "Computers > Peripherals > Mice",
	}
}

func TestFieldBuilder_Build(t *testing.T) {
	brands := []catalog.Brand{testBrand("Logitech")}
	b := NewFieldBuilder(testAdapter(), NewCategoryIndex(categoryTree(t)), brands)

	rec := testRecord()
	d := b.Build(rec)
	p := d.Product

	assert.Equal(t, "Logitech M100 Mouse", p.Name)
	assert.Equal(t, "logitech-m100-mouse", p.Slug)
	assert.Equal(t, "910-005003", p.MPN)
	assert.Equal(t, "5099206027209", p.Barcode)
	assert.Equal(t, "M100", p.Model)
	assert.True(t, decimal.RequireFromString("12.90").Equal(p.RetailPrice))
	assert.Equal(t, "<p>Wired mouse</p>", p.Description)
	assert.Equal(t, catalog.StatusOutOfStock, p.Status)

	assert.Equal(t, "cpi", d.Offer.Name)
	assert.True(t, decimal.RequireFromString("7.90").Equal(d.Offer.Wholesale))
	assert.Equal(t, catalog.StatusBackorder, d.Offer.TranslatedStatus)
	assert.False(t, d.Offer.InStock)

	require.NotNil(t, p.CategoryID)
	require.NotNil(t, p.BrandID)
	assert.Equal(t, brands[0].ID, *p.BrandID)
	assert.Equal(t, "Logitech", d.BrandName)

	b.Extract(d, rec)
	assert.Equal(t, []catalog.Characteristic{
		{Name: "Color", Value: "Black"},
		{Name: "Dimensions", Value: "11.3 x 6.2 x 3.8 cm"},
	}, []catalog.Characteristic(p.Characteristics))
	require.NotNil(t, p.Weight)
	assert.Equal(t, 90, *p.Weight)
	require.True(t, p.HasDimensions())
	assert.Equal(t, 113, *p.Length)
	assert.Equal(t, 62, *p.Width)
	assert.Equal(t, 38, *p.Height)
	assert.Equal(t, []string{
		"https://img.example.com/m100.jpg",
		"https://img.example.com/m100-2.jpg",
	}, []string(p.Images))
}

func TestFieldBuilder_CategoryIsResolved(t *testing.T) {
	cats := categoryTree(t)
	b := NewFieldBuilder(testAdapter(), NewCategoryIndex(cats), nil)
	d := b.Build(testRecord())
	require.NotNil(t, d.Product.CategoryID)
	assert.Equal(t, cats[2].ID, *d.Product.CategoryID)
}

func TestFieldBuilder_InStockFromQuantity(t *testing.T) {
	b := NewFieldBuilder(testAdapter(), nil, nil)
	rec := testRecord()
	rec["stock"] = "12"
	rec["availability"] = ""
	d := b.Build(rec)
	assert.Equal(t, 12, d.Offer.Quantity)
	assert.True(t, d.Offer.InStock)
	assert.Equal(t, "LOGITECH", d.BrandName, "unknown brand keeps the feed value")
	assert.Nil(t, d.Product.BrandID)
}

func TestFieldBuilder_InStockFlag(t *testing.T) {
	a := testAdapter()
	a.Mapping.InStock = "instock"
	b := NewFieldBuilder(a, nil, nil)
	rec := testRecord()
	rec["stock"] = "50"
	rec["instock"] = "N"
	assert.False(t, b.Build(rec).Offer.InStock, "an explicit flag wins over quantity")
}

func TestFieldBuilder_MissingIdentity(t *testing.T) {
	b := NewFieldBuilder(testAdapter(), nil, nil)
	rec := testRecord()
	delete(rec, "mpn")
	delete(rec, "ean")
	assert.False(t, b.Build(rec).Product.HasIdentity())
}

// The brand heuristic is documented behavior, not a proven-correct
// algorithm: the first three words are scanned before the full name.
func TestFieldBuilder_ResolveBrand(t *testing.T) {
	brands := []catalog.Brand{
		testBrand("LG Electronics"),
		testBrand("Western Digital"),
		testBrand("Apple"),
		testBrand("LG"),
		testBrand("HP"),
	}
	b := NewFieldBuilder(Adapter{Name: "x"}, nil, brands)

	tests := []struct {
		name, mapped, title, want string
	}{
		{"mapped by name", "western digital", "", "Western Digital"},
		{"mapped by slug", "LG-Electronics", "", "LG Electronics"},
		{"longest brand first", "", "LG Electronics 55UR78 TV", "LG Electronics"},
		{"whole words only", "", "LGE Systems monitor", ""},
		{"short brand in head", "", "Monitor LG 27GN800", "LG"},
		{"head scanned before full name", "", "Cable for Apple devices by HP", "Apple"},
		{"full name when head has none", "", "USB-C charging cable for HP", "HP"},
		{"unknown mapped falls back to name", "Acme", "Apple iPad case", "Apple"},
		{"no match", "", "Generic cable", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.ResolveBrand(tt.mapped, tt.title)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestCategorySpec_Segments(t *testing.T) {
	rec := feed.Record{"cat": "A / B / ", "c1": "Top", "c2": "", "c3": "Leaf"}
	assert.Equal(t, []string{"A", "B"}, CategorySpec{Path: "cat", Splitter: "/"}.Segments(rec))
	assert.Equal(t, []string{"A / B /"}, CategorySpec{Path: "cat"}.Segments(rec))
	assert.Equal(t, []string{"Top", "Leaf"}, CategorySpec{Category: "c1", Subcategory: "c2", Sub2Category: "c3"}.Segments(rec))
	assert.Empty(t, CategorySpec{}.Segments(rec))
}
