// Package scraper reads supplier catalogs that have no feed by walking
// their listing pages and product pages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eshop/backend/internal/infrastructure/feed"
)

// Field selects one value of a product page. Attr reads an attribute
// instead of the element text. With Join set, the texts of every match are
// joined, e.g. breadcrumb items into a category path.
type Field struct {
	Selector string
	Attr     string
	Join     string
}

// SiteRules describes how to walk one supplier site.
type SiteRules struct {
	Supplier  string
	StartURLs []string
	// ProductLink selects the product anchors of a listing page.
	ProductLink string
	// NextPage selects the anchor of the following listing page.
	NextPage string
	// Fields maps record keys to product page selectors.
	Fields map[string]Field
	// SpecRow selects a specification row; SpecName and SpecValue are
	// relative to it.
	SpecRow   string
	SpecName  string
	SpecValue string
	// Image selects gallery images; ImageAttr defaults to src.
	Image     string
	ImageAttr string
}

// Record keys the scraper fills besides the configured fields.
const (
	KeyURL    = "url"
	KeySpecs  = "specs"
	KeyImages = "images"
)

// Config configures a Scraper.
type Config struct {
	RequestsPerSecond float64
	// MaxPages bounds listing pages per start URL.
	MaxPages int
}

// Scraper walks supplier sites politely through a shared rate limiter.
type Scraper struct {
	browser  Browser
	limiter  *rate.Limiter
	maxPages int
	logger   *zap.Logger
}

// New creates a Scraper.
func New(browser Browser, cfg Config, logger *zap.Logger) *Scraper {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		browser:  browser,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		maxPages: cfg.MaxPages,
		logger:   logger,
	}
}

// Scrape collects every product of the site as a flat record. A listing
// page that fails to load aborts the scrape, a product page that fails is
// logged and skipped.
func (s *Scraper) Scrape(ctx context.Context, rules SiteRules) ([]feed.Record, error) {
	if len(rules.StartURLs) == 0 {
		return nil, fmt.Errorf("scraper: %s has no start urls", rules.Supplier)
	}
	log := s.logger.With(zap.String("supplier", rules.Supplier))
	start := time.Now()

	links, err := s.collectLinks(ctx, rules)
	if err != nil {
		return nil, err
	}
	log.Info("product links collected", zap.Int("count", len(links)))

	records := make([]feed.Record, 0, len(links))
	failed := 0
	for _, link := range links {
		rec, err := s.scrapeProduct(ctx, rules, link)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			failed++
			log.Warn("product page skipped", zap.String("url", link), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	log.Info("scrape finished",
		zap.Int("records", len(records)),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)),
	)
	return records, nil
}

func (s *Scraper) collectLinks(ctx context.Context, rules SiteRules) ([]string, error) {
	seen := make(map[string]struct{})
	var links []string
	for _, startURL := range rules.StartURLs {
		pageURL := startURL
		visited := make(map[string]struct{})
		for page := 0; pageURL != "" && page < s.maxPages; page++ {
			if _, loop := visited[pageURL]; loop {
				break
			}
			visited[pageURL] = struct{}{}

			doc, base, err := s.load(ctx, pageURL)
			if err != nil {
				return nil, err
			}
			doc.Find(rules.ProductLink).Each(func(_ int, a *goquery.Selection) {
				href, ok := a.Attr("href")
				if !ok {
					return
				}
				abs := resolve(base, href)
				if abs == "" {
					return
				}
				if _, dup := seen[abs]; dup {
					return
				}
				seen[abs] = struct{}{}
				links = append(links, abs)
			})

			pageURL = ""
			if rules.NextPage != "" {
				if href, ok := doc.Find(rules.NextPage).First().Attr("href"); ok {
					pageURL = resolve(base, href)
				}
			}
		}
	}
	return links, nil
}

func (s *Scraper) scrapeProduct(ctx context.Context, rules SiteRules, link string) (feed.Record, error) {
	doc, base, err := s.load(ctx, link)
	if err != nil {
		return nil, err
	}

	rec := feed.Record{KeyURL: link}
	for key, f := range rules.Fields {
		rec[key] = fieldValue(doc, f)
	}

	if rules.SpecRow != "" {
		var specs []any
		doc.Find(rules.SpecRow).Each(func(_ int, row *goquery.Selection) {
			name := strings.TrimSpace(row.Find(rules.SpecName).First().Text())
			value := strings.TrimSpace(row.Find(rules.SpecValue).First().Text())
			if name != "" && value != "" {
				specs = append(specs, map[string]any{"Name": name, "Value": value})
			}
		})
		rec[KeySpecs] = specs
	}

	if rules.Image != "" {
		attr := rules.ImageAttr
		if attr == "" {
			attr = "src"
		}
		var images []any
		doc.Find(rules.Image).Each(func(_ int, img *goquery.Selection) {
			if src, ok := img.Attr(attr); ok {
				if abs := resolve(base, src); abs != "" {
					images = append(images, abs)
				}
			}
		})
		rec[KeyImages] = images
	}
	return rec, nil
}

func fieldValue(doc *goquery.Document, f Field) string {
	if f.Join != "" {
		var parts []string
		doc.Find(f.Selector).Each(func(_ int, sel *goquery.Selection) {
			if t := strings.TrimSpace(sel.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		return strings.Join(parts, f.Join)
	}
	sel := doc.Find(f.Selector).First()
	if f.Attr != "" {
		v, _ := sel.Attr(f.Attr)
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(sel.Text())
}

func (s *Scraper) load(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	html, err := s.browser.HTML(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrPage, pageURL, err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrPage, pageURL, err)
	}
	return doc, base, nil
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
