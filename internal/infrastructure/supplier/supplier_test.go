package supplier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/feed"
	"github.com/eshop/backend/internal/infrastructure/scraper"
)

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testDeps(t *testing.T) Deps {
	return Deps{Feeds: feed.NewClient(feed.WithLogger(zaptest.NewLogger(t)))}
}

// fetchOne runs the adapter fetch and returns its single record.
func fetchOne(t *testing.T, a importapp.Adapter, entry importapp.Entry) feed.Record {
	t.Helper()
	records, err := a.Fetch(context.Background(), entry)
	require.NoError(t, err)
	require.Len(t, records, 1)
	return records[0]
}

// build maps rec the way the importer does before identity checks.
func build(t *testing.T, a importapp.Adapter, rec feed.Record) *importapp.Draft {
	t.Helper()
	b := importapp.NewFieldBuilder(a, nil, nil)
	d := b.Build(rec)
	b.Extract(d, rec)
	if a.Transform != nil {
		require.NoError(t, a.Transform(d, rec))
	}
	return d
}

func assertPrice(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(Deps{})

	assert.Equal(t, []string{
		"cpi", "dotmedia", "globalsat", "globalsat-web", "novatron", "oktabit",
		"quest", "stefinet", "telehermes", "westnet", "zegetron",
	}, r.Names())

	for _, name := range r.Names() {
		a, ok := r.Adapter(name)
		require.True(t, ok, name)
		assert.NoError(t, a.Validate(), name)
	}

	a, ok := r.Adapter(" CPI ")
	require.True(t, ok)
	assert.Equal(t, "cpi", a.Name)
	_, ok = r.Adapter("acme")
	assert.False(t, ok)

	r.Register(importapp.Adapter{Name: "Acme"})
	_, ok = r.Adapter("acme")
	assert.True(t, ok)
}

func TestFeedFetch_RequiresURL(t *testing.T) {
	_, err := CPI(testDeps(t)).Fetch(context.Background(), importapp.Entry{Name: "cpi"})
	assert.ErrorIs(t, err, ErrNoFeedURL)
}

func TestScrapedFetch_Disabled(t *testing.T) {
	_, err := Quest(Deps{}).Fetch(context.Background(), importapp.Entry{Name: "quest"})
	assert.ErrorIs(t, err, ErrScraperDisabled)
}

func TestCPI(t *testing.T) {
	var user, pass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<products>
  <product>
    <code>C-100</code>
    <name>Logitech Mouse M100</name>
    <mpn>910-005003</mpn>
    <ean>5099206027011, 5099206027028</ean>
    <price>7,40</price>
    <stock>25</stock>
    <availability>Διαθέσιμο</availability>
    <category>Computers &gt; Peripherals &gt; Mice</category>
    <image>https://cdn.cpi.gr/m100.jpg</image>
    <images>
      <image>https://cdn.cpi.gr/m100-2.jpg</image>
      <image>https://cdn.cpi.gr/m100-3.jpg</image>
    </images>
    <specs>
      <spec name="Color" value="Black"/>
      <spec name="Weight" value="2,5 kg"/>
    </specs>
  </product>
</products>`))
	}))
	defer srv.Close()

	a := CPI(testDeps(t))
	rec := fetchOne(t, a, importapp.Entry{Name: "cpi", FeedURL: srv.URL + "/feed.xml", Username: "shop", Password: "secret"})
	assert.Equal(t, "shop", user)
	assert.Equal(t, "secret", pass)

	d := build(t, a, rec)
	p := d.Product
	assert.Equal(t, "910-005003", p.MPN)
	assert.Equal(t, "5099206027011", p.Barcode)
	assert.Equal(t, "C-100", d.Offer.SupplierProductID)
	assertPrice(t, "7.40", d.Offer.Wholesale)
	assert.Equal(t, 25, d.Offer.Quantity)
	assert.Equal(t, catalog.StatusInStock, d.Offer.TranslatedStatus)
	assert.Equal(t, []string{"Computers", "Peripherals", "Mice"}, a.Mapping.Category.Segments(rec))
	assert.Equal(t, []catalog.Characteristic{{Name: "Color", Value: "Black"}, {Name: "Weight", Value: "2,5 kg"}}, []catalog.Characteristic(p.Characteristics))
	require.NotNil(t, p.Weight)
	assert.Equal(t, 2500, *p.Weight)
	assert.Equal(t, []string{
		"https://cdn.cpi.gr/m100.jpg",
		"https://cdn.cpi.gr/m100-2.jpg",
		"https://cdn.cpi.gr/m100-3.jpg",
	}, []string(p.Images))
}

func TestDotMedia(t *testing.T) {
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.URL.Query().Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{
			"title": "TP-Link Switch 8 port",
			"mpn": "TL-SG108",
			"barcode": "6935364021641",
			"sku": "DM-77",
			"price_wholesale": "20.00",
			"price_discount": "17.50",
			"stock_qty": 4,
			"stock_status": "InStock",
			"description_html": "Net Weight (kg): 1,5. Weight (kg): 2",
			"attributes": {"Ports": "8", "Color": "Black"},
			"images": ["https://img.dotmedia.gr/sg108.jpg"]
		}]}`))
	}))
	defer srv.Close()

	a := DotMedia(testDeps(t))
	rec := fetchOne(t, a, importapp.Entry{Name: "dotmedia", FeedURL: srv.URL, APIKey: "k-123"})
	assert.Equal(t, "k-123", key)

	d := build(t, a, rec)
	assertPrice(t, "17.50", d.Offer.Wholesale)
	assert.True(t, d.Product.InOffer)
	assert.Equal(t, 4, d.Offer.Quantity)
	assert.Equal(t, catalog.StatusInStock, d.Offer.TranslatedStatus)
	assert.Equal(t, []catalog.Characteristic{{Name: "Color", Value: "Black"}, {Name: "Ports", Value: "8"}}, []catalog.Characteristic(d.Product.Characteristics))
	require.NotNil(t, d.Product.Weight)
	assert.Equal(t, 2000, *d.Product.Weight, "the largest labelled weight wins")
}

func TestDotMedia_DiscountAboveListPriceIgnored(t *testing.T) {
	a := DotMedia(testDeps(t))
	rec := feed.Record{"title": "Cable", "mpn": "C1", "price_wholesale": "5", "price_discount": "6"}
	d := build(t, a, rec)
	assertPrice(t, "5", d.Offer.Wholesale)
	assert.False(t, d.Product.InOffer)
}

func TestGlobalsat(t *testing.T) {
	srv := serve(t, "text/xml", `<Products>
  <Product>
    <Code>G-1</Code>
    <Name>Xiaomi Band 8</Name>
    <Model>Xiaomi Band 8</Model>
    <PartNumber>BHR7165GL</PartNumber>
    <EAN>6941812727131</EAN>
    <Price>31.90</Price>
    <Stock>3</Stock>
    <Category>Wearables/Smart Bands</Category>
    <Image1Link>https://globalsat.gr/img/band8-1.jpg</Image1Link>
    <Image2Link>https://globalsat.gr/img/band8-2.jpg</Image2Link>
    <specifications>
      <item><Name>Display</Name><Value>1.62" AMOLED</Value></item>
      <item><Name>Weight</Name><Value>27 g</Value></item>
    </specifications>
  </Product>
</Products>`)

	a := Globalsat(testDeps(t))
	rec := fetchOne(t, a, importapp.Entry{Name: "globalsat", FeedURL: srv.URL})
	d := build(t, a, rec)

	assert.Empty(t, d.Product.Model, "a model equal to the name is dropped")
	assert.Equal(t, "BHR7165GL", d.Product.MPN)
	assert.Equal(t, []string{"Wearables", "Smart Bands"}, a.Mapping.Category.Segments(rec))
	assert.Equal(t, []string{"https://globalsat.gr/img/band8-1.jpg", "https://globalsat.gr/img/band8-2.jpg"}, []string(d.Product.Images))
	assert.Len(t, d.Product.Characteristics, 2)
	require.NotNil(t, d.Product.Weight)
	assert.Equal(t, 27, *d.Product.Weight)
}

func TestOktabit(t *testing.T) {
	srv := serve(t, "application/xml", `<products>
  <product>
    <code>OK-9</code>
    <title>Kingston SSD 480GB</title>
    <part_no>SA400S37/480G</part_no>
    <barcode>740617263442</barcode>
    <price>25,10</price>
    <stock>0</stock>
    <availability>P</availability>
    <weight>1,2</weight>
    <category>Storage</category>
    <subcategory>SSD</subcategory>
    <sub2category>SATA</sub2category>
    <ImageLink>https://oktabit.gr/i/1.jpg</ImageLink>
    <ImageLink2>https://oktabit.gr/i/2.jpg</ImageLink2>
    <ImageLink3></ImageLink3>
  </product>
</products>`)

	a := Oktabit(testDeps(t))
	rec := fetchOne(t, a, importapp.Entry{Name: "oktabit", FeedURL: srv.URL})
	d := build(t, a, rec)

	assert.Equal(t, catalog.StatusBackorder, d.Offer.TranslatedStatus)
	assert.Zero(t, d.Offer.Quantity)
	assert.Equal(t, []string{"Storage", "SSD", "SATA"}, a.Mapping.Category.Segments(rec))
	require.NotNil(t, d.Product.Weight)
	assert.Equal(t, 1200, *d.Product.Weight, "the weight column is kilograms")
	assert.Equal(t, []string{"https://oktabit.gr/i/1.jpg", "https://oktabit.gr/i/2.jpg"}, []string(d.Product.Images))
}

func TestStefinet(t *testing.T) {
	srv := serve(t, "application/xml", `<catalog>
  <product>
    <id>S-5</id>
    <name>Philips Kettle</name>
    <mpn>HD9350/90</mpn>
    <price>28.00</price>
    <qty>2</qty>
    <url>product/hd9350</url>
    <image>/images/hd9350.jpg</image>
    <attributes>Χρώμα : Ανοξείδωτο| Βάρος : 1,2 kg</attributes>
    <category>Small Appliances/Kettles</category>
  </product>
</catalog>`)

	a := Stefinet(testDeps(t))
	rec := fetchOne(t, a, importapp.Entry{Name: "stefinet", FeedURL: srv.URL})
	d := build(t, a, rec)

	assert.Equal(t, "https://www.stefinet.gr/product/hd9350", d.Offer.ProductURL)
	assert.Equal(t, []string{"https://www.stefinet.gr/images/hd9350.jpg"}, []string(d.Product.Images))
	assert.Equal(t, []catalog.Characteristic{
		{Name: "Χρώμα", Value: "Ανοξείδωτο"},
		{Name: "Βάρος", Value: "1,2 kg"},
	}, []catalog.Characteristic(d.Product.Characteristics))
	require.NotNil(t, d.Product.Weight)
	assert.Equal(t, 1200, *d.Product.Weight)
}

func TestTelehermes(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{
			"name": "Desk Lamp LED",
			"mpn": "TH-L40",
			"ean": "5200000000011",
			"wholesale": "14,20",
			"stock": "7",
			"dimensions": "30χ20χ10 cm",
			"image": "https://cdn.telehermes.gr/l40.jpg",
			"gallery": ["https://cdn.telehermes.gr/l40-b.jpg"],
			"attributes": [{"$": {"key": "Color", "value": "White"}}, {"$": {"key": "Power", "value": "40W"}}]
		}]}`))
	}))
	defer srv.Close()

	a := Telehermes(testDeps(t))
	rec := fetchOne(t, a, importapp.Entry{Name: "telehermes", FeedURL: srv.URL, APIKey: "tok"})
	assert.Equal(t, "Bearer tok", auth)

	d := build(t, a, rec)
	p := d.Product
	assertPrice(t, "14.20", d.Offer.Wholesale)
	assert.Equal(t, 7, d.Offer.Quantity)
	assert.True(t, d.Offer.InStock)
	assert.Equal(t, []catalog.Characteristic{{Name: "Color", Value: "White"}, {Name: "Power", Value: "40W"}}, []catalog.Characteristic(p.Characteristics))
	require.True(t, p.HasDimensions())
	assert.Equal(t, 300, *p.Length)
	assert.Equal(t, 200, *p.Width)
	assert.Equal(t, 100, *p.Height)
	assert.Len(t, p.Images, 2)
}

func TestWestnet(t *testing.T) {
	srv := serve(t, "application/xml", `<products>
  <product>
    <code>W-3</code>
    <name>APC UPS 700VA</name>
    <mpn>BX700U-GR</mpn>
    <price>61,00</price>
    <qty>0</qty>
    <instock>N</instock>
    <description>Net Weight (kg): 0,9 Gross Weight (kg): 1,1</description>
    <image>https://westnet.gr/p/bx700.jpg</image>
    <additional_images>
      <image>https://westnet.gr/p/bx700-2.jpg</image>
      <image>https://westnet.gr/p/bx700-3.jpg</image>
    </additional_images>
  </product>
</products>`)

	a := Westnet(testDeps(t))
	rec := fetchOne(t, a, importapp.Entry{Name: "westnet", FeedURL: srv.URL})
	d := build(t, a, rec)

	assert.False(t, d.Offer.InStock)
	require.NotNil(t, d.Product.Weight)
	assert.Equal(t, 1100, *d.Product.Weight)
	assert.Len(t, d.Product.Images, 3)
}

func TestZegetron(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{
		"Part Number", "Description", "EAN", "Price", "Stock",
		"Weight (kg)", "Length (cm)", "Width (cm)", "Height (cm)", "Image URL", "Category",
	}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{
		"ZG-100", "Switch 8 port", "5200000000028", "19,90", "12",
		"0,8", "25", "15", "4", "https://zegetron.gr/img/zg100.png", "Networking/Switches",
	}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	srv := serve(t, "application/octet-stream", buf.String())

	a := Zegetron(testDeps(t))
	rec := fetchOne(t, a, importapp.Entry{Name: "zegetron", FeedURL: srv.URL + "/pricelist.xlsx"})
	d := build(t, a, rec)
	p := d.Product

	assert.Equal(t, "ZG-100", p.MPN)
	assert.Equal(t, "Switch 8 port", p.Name)
	assertPrice(t, "19.90", d.Offer.Wholesale)
	assert.Equal(t, 12, d.Offer.Quantity)
	require.NotNil(t, p.Weight)
	assert.Equal(t, 800, *p.Weight)
	require.True(t, p.HasDimensions())
	assert.Equal(t, 250, *p.Length)
	assert.Equal(t, 150, *p.Width)
	assert.Equal(t, 40, *p.Height)
	assert.Equal(t, []string{"Networking", "Switches"}, a.Mapping.Category.Segments(rec))
}

func TestQuest_Scraped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/catalog", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<div class="item-card"><a class="item-title" href="/p/qx-1">QX-1</a></div>
		</body></html>`))
	})
	mux.HandleFunc("/p/qx-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<nav class="breadcrumbs"><a>Αρχική</a><a>Περιφερειακά</a><a> </a><a>Πληκτρολόγια</a></nav>
			<h1>Quest Keyboard QX-1</h1>
			<ul>
				<li class="part-number">Part Number: QX-1</li>
				<li class="ean">EAN: 5200000000035, 5200000000036</li>
				<li class="item-code">Q1001</li>
				<li class="brand"><a>Logitech</a></li>
			</ul>
			<span class="dealer-price">24,90 €</span>
			<span class="stock-label">Διαθέσιμο</span>
			<div class="item-description">Wireless keyboard</div>
			<table class="tech-specs">
				<tr><td class="spec-name">Βάρος</td><td class="spec-value">650 g</td></tr>
				<tr><td class="spec-name">Χρώμα</td><td class="spec-value">Μαύρο</td></tr>
			</table>
			<div class="item-gallery"><img src="/media/qx1.jpg"><img src="/media/qx1-b.jpg"></div>
		</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := scraper.New(scraper.NewHTTPBrowser(srv.Client()), scraper.Config{RequestsPerSecond: 1000}, zaptest.NewLogger(t))
	a := Quest(Deps{Scraper: s})
	rec := fetchOne(t, a, importapp.Entry{Name: "quest", FeedURL: srv.URL + "/catalog"})
	assert.Equal(t, "Αρχική > Περιφερειακά > Πληκτρολόγια", rec["category"])

	d := build(t, a, rec)
	p := d.Product
	assert.Equal(t, "Quest Keyboard QX-1", p.Name)
	assert.Equal(t, "QX-1", p.MPN)
	assert.Equal(t, "5200000000035", p.Barcode)
	assert.Equal(t, "Q1001", d.Offer.SupplierProductID)
	assert.Equal(t, srv.URL+"/p/qx-1", d.Offer.ProductURL)
	assertPrice(t, "24.90", d.Offer.Wholesale)
	assert.Equal(t, catalog.StatusInStock, d.Offer.TranslatedStatus)
	assert.True(t, d.Offer.InStock)
	require.NotNil(t, p.Weight)
	assert.Equal(t, 650, *p.Weight)
	assert.Equal(t, []string{srv.URL + "/media/qx1.jpg", srv.URL + "/media/qx1-b.jpg"}, []string(p.Images))
}

func TestStripLabel(t *testing.T) {
	assert.Equal(t, "ABC-123", stripLabel("Κωδικός κατασκευαστή: ABC-123"))
	assert.Equal(t, "ABC-123", stripLabel(" ABC-123 "))
	assert.Equal(t, "520001", firstCode(" 520001 ; 520002"))
	assert.Empty(t, firstCode(" , "))
}
