// Package supplier declares the import adapter of every distributor: where
// its feed lives, how its records map onto products and which parsing rules
// differ from the defaults.
package supplier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/infrastructure/feed"
	"github.com/eshop/backend/internal/infrastructure/scraper"
)

var (
	// ErrNoFeedURL is returned when a supplier entry lacks the feed URL.
	ErrNoFeedURL = errors.New("supplier: feed url is not configured")
	// ErrScraperDisabled is returned by scraped suppliers when no scraper is wired.
	ErrScraperDisabled = errors.New("supplier: scraper is disabled")
)

// Deps are the collaborators adapters fetch through.
type Deps struct {
	Feeds   *feed.Client
	Scraper *scraper.Scraper
}

// Registry maps supplier names to adapters. Names compare case-insensitively.
type Registry struct {
	adapters map[string]importapp.Adapter
}

// NewRegistry creates a registry holding every known supplier.
func NewRegistry(deps Deps) *Registry {
	if deps.Feeds == nil {
		deps.Feeds = feed.NewClient()
	}
	r := &Registry{adapters: make(map[string]importapp.Adapter)}
	for _, a := range []importapp.Adapter{
		CPI(deps),
		DotMedia(deps),
		Globalsat(deps),
		GlobalsatWeb(deps),
		Novatron(deps),
		Oktabit(deps),
		Quest(deps),
		Stefinet(deps),
		Telehermes(deps),
		Westnet(deps),
		Zegetron(deps),
	} {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a importapp.Adapter) {
	r.adapters[strings.ToLower(a.Name)] = a
}

// Adapter implements importapp.AdapterSource.
func (r *Registry) Adapter(name string) (importapp.Adapter, bool) {
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	return a, ok
}

// Names returns the registered supplier names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}

// feedFetch downloads entry.FeedURL and returns the records at recordsPath.
// configure may add supplier specific request options such as API keys.
func feedFetch(client *feed.Client, format feed.Format, recordsPath string, configure func(importapp.Entry, *feed.Request)) importapp.FetchFunc {
	return func(ctx context.Context, entry importapp.Entry) ([]feed.Record, error) {
		if strings.TrimSpace(entry.FeedURL) == "" {
			return nil, ErrNoFeedURL
		}
		req := feed.Request{
			Format:   format,
			Username: entry.Username,
			Password: entry.Password,
		}
		if configure != nil {
			configure(entry, &req)
		}
		doc, err := client.Fetch(ctx, entry.FeedURL, req)
		if err != nil {
			return nil, err
		}
		return feed.Records(doc, recordsPath)
	}
}

// scrapedFetch walks the supplier site. The entry feed URL, when set, lists
// the start pages separated by commas or whitespace and replaces the default ones.
func scrapedFetch(s *scraper.Scraper, rules scraper.SiteRules) importapp.FetchFunc {
	return func(ctx context.Context, entry importapp.Entry) ([]feed.Record, error) {
		if s == nil {
			return nil, fmt.Errorf("%w: %s", ErrScraperDisabled, rules.Supplier)
		}
		run := rules
		if urls := strings.FieldsFunc(entry.FeedURL, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\n' || r == '\t'
		}); len(urls) > 0 {
			run.StartURLs = urls
		}
		return s.Scrape(ctx, run)
	}
}
