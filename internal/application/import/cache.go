package importapp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/extract"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCachePageSize = 5000

// CacheConfig configures the product cache bulk load.
type CacheConfig struct {
	PageSize  int
	PagePause time.Duration
}

// ProductCache is the in-memory identity index shared by concurrent supplier
// runs. It is loaded by the first Acquire and dropped by the last Release.
type ProductCache struct {
	products   catalog.ProductRepository
	categories catalog.CategoryRepository
	brands     catalog.BrandRepository
	config     CacheConfig
	logger     *zap.Logger

	// lifecycle serializes Acquire and Release, so a second supplier waits
	// for the first load instead of starting its own.
	lifecycle sync.Mutex
	mu        sync.RWMutex
	active    map[string]struct{}
	loaded    bool

	byID         map[uuid.UUID]*catalog.Product
	byMPNBarcode map[string]uuid.UUID
	byMPN        map[string]uuid.UUID
	byBarcode    map[string]uuid.UUID
	byModel      map[string]uuid.UUID
	byName       map[string]uuid.UUID
	categoryIdx  *CategoryIndex
	brandList    []catalog.Brand
	brandByID    map[uuid.UUID]string
}

// NewProductCache creates an empty cache.
func NewProductCache(
	products catalog.ProductRepository,
	categories catalog.CategoryRepository,
	brands catalog.BrandRepository,
	config CacheConfig,
	logger *zap.Logger,
) *ProductCache {
	if config.PageSize <= 0 {
		config.PageSize = defaultCachePageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ProductCache{
		products:   products,
		categories: categories,
		brands:     brands,
		config:     config,
		logger:     logger,
		active:     make(map[string]struct{}),
	}
	c.reset()
	return c
}

// Acquire registers supplier as active and loads the cache if it is empty.
func (c *ProductCache) Acquire(ctx context.Context, supplier string) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if !c.isLoaded() {
		if err := c.load(ctx); err != nil {
			c.mu.Lock()
			c.reset()
			c.mu.Unlock()
			return fmt.Errorf("load product cache: %w", err)
		}
	}

	c.mu.Lock()
	c.active[strings.ToLower(supplier)] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Release deregisters supplier. The cache is cleared once no supplier is active.
func (c *ProductCache) Release(supplier string) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, strings.ToLower(supplier))
	if len(c.active) == 0 && c.loaded {
		c.reset()
		c.logger.Info("product cache released")
	}
}

// ActiveSuppliers returns the suppliers currently holding the cache.
func (c *ProductCache) ActiveSuppliers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.active))
	for s := range c.active {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of cached products.
func (c *ProductCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

func (c *ProductCache) isLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// reset drops every table. Callers hold mu.
func (c *ProductCache) reset() {
	c.loaded = false
	c.byID = make(map[uuid.UUID]*catalog.Product)
	c.byMPNBarcode = make(map[string]uuid.UUID)
	c.byMPN = make(map[string]uuid.UUID)
	c.byBarcode = make(map[string]uuid.UUID)
	c.byModel = make(map[string]uuid.UUID)
	c.byName = make(map[string]uuid.UUID)
	c.categoryIdx = NewCategoryIndex(nil)
	c.brandList = nil
	c.brandByID = make(map[uuid.UUID]string)
}

func (c *ProductCache) load(ctx context.Context) error {
	start := time.Now()

	categories, err := c.categories.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("categories: %w", err)
	}
	brands, err := c.brands.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("brands: %w", err)
	}

	c.mu.Lock()
	c.categoryIdx = NewCategoryIndex(categories)
	c.setBrands(brands)
	c.mu.Unlock()

	total := 0
	for offset := 0; ; offset += c.config.PageSize {
		page, err := c.products.FindPage(ctx, offset, c.config.PageSize)
		if err != nil {
			return fmt.Errorf("products at offset %d: %w", offset, err)
		}
		c.mu.Lock()
		for i := range page {
			c.index(&page[i])
		}
		c.mu.Unlock()
		total += len(page)

		if len(page) < c.config.PageSize {
			break
		}
		if err := sleep(ctx, c.config.PagePause); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.loaded = true
	c.mu.Unlock()

	c.logger.Info("product cache loaded",
		zap.Int("products", total),
		zap.Int("categories", len(categories)),
		zap.Int("brands", len(brands)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// setBrands keeps brands longest name first so "LG" never wins over
// "LG Electronics". Callers hold mu.
func (c *ProductCache) setBrands(brands []catalog.Brand) {
	list := append([]catalog.Brand(nil), brands...)
	sort.SliceStable(list, func(i, j int) bool {
		return len([]rune(list[i].Name)) > len([]rune(list[j].Name))
	})
	c.brandList = list
	c.brandByID = make(map[uuid.UUID]string, len(list))
	for _, b := range list {
		c.brandByID[b.ID] = b.Name
	}
}

func identityKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// index stores p and its identity keys. Keys already taken by another
// product keep their first owner. Callers hold mu.
func (c *ProductCache) index(p *catalog.Product) {
	c.byID[p.ID] = p
	mpn, barcode := identityKey(p.MPN), identityKey(p.Barcode)
	put := func(m map[string]uuid.UUID, key string) {
		if key == "" {
			return
		}
		if _, taken := m[key]; !taken {
			m[key] = p.ID
		}
	}
	if mpn != "" && barcode != "" {
		put(c.byMPNBarcode, mpn+"|"+barcode)
	}
	put(c.byMPN, mpn)
	put(c.byBarcode, barcode)
	put(c.byModel, identityKey(p.Model))
	put(c.byName, identityKey(p.Name))
}

// Add inserts or refreshes a product so later lookups of this or any other
// running supplier see it.
func (c *ProductCache) Add(p *catalog.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index(p.Clone())
}

// Get returns a copy of the newest cached state of product id, or nil.
func (c *ProductCache) Get(id uuid.UUID) *catalog.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.byID[id]; ok {
		return p.Clone()
	}
	return nil
}

// Lookup resolves an existing product from partial identity, first match
// wins:
//  1. mpn and barcode together
//  2. mpn
//  3. mpn found as another product's model
//  4. model found as another product's mpn
//  5. barcode, only without an mpn
//  6. name, only without mpn and barcode
//
// The returned product is a copy the caller may modify.
func (c *ProductCache) Lookup(mpn, barcode, model, name string) *catalog.Product {
	mpn, barcode, model, name = identityKey(mpn), identityKey(barcode), identityKey(model), identityKey(name)

	c.mu.RLock()
	defer c.mu.RUnlock()

	get := func(m map[string]uuid.UUID, key string) *catalog.Product {
		if id, ok := m[key]; ok {
			return c.byID[id]
		}
		return nil
	}

	var found *catalog.Product
	if mpn != "" && barcode != "" {
		found = get(c.byMPNBarcode, mpn+"|"+barcode)
	}
	if found == nil && mpn != "" {
		found = get(c.byMPN, mpn)
	}
	if found == nil && mpn != "" {
		if p := get(c.byModel, mpn); p != nil && identityKey(p.Model) == mpn {
			found = p
		}
	}
	if found == nil && model != "" {
		if p := get(c.byMPN, model); p != nil && identityKey(p.MPN) == model {
			found = p
		}
	}
	if found == nil && mpn == "" && barcode != "" {
		found = get(c.byBarcode, barcode)
	}
	if found == nil && mpn == "" && barcode == "" && name != "" {
		found = get(c.byName, name)
	}
	if found == nil {
		return nil
	}
	return found.Clone()
}

// ProductsLinkedTo returns copies of the products whose feed links include supplier.
func (c *ProductCache) ProductsLinkedTo(supplier string) []*catalog.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*catalog.Product
	for _, p := range c.byID {
		if p.IsLinkedTo(supplier) || p.SupplierEntry(supplier) != nil {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Categories returns the category tree snapshot.
func (c *ProductCache) Categories() *CategoryIndex {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.categoryIdx
}

// Brands returns the known brands, longest name first.
func (c *ProductCache) Brands() []catalog.Brand {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.brandList
}

// BrandName returns the name of the brand with id, or "".
func (c *ProductCache) BrandName(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.brandByID[*id]
}

// CategoryIndex resolves supplier category paths against the shop tree.
// It is immutable once built.
type CategoryIndex struct {
	byID     map[uuid.UUID]*catalog.Category
	children map[uuid.UUID][]*catalog.Category
	roots    []*catalog.Category
	byName   map[string][]*catalog.Category
}

// NewCategoryIndex indexes categories by parent and by normalized name and slug.
func NewCategoryIndex(categories []catalog.Category) *CategoryIndex {
	idx := &CategoryIndex{
		byID:     make(map[uuid.UUID]*catalog.Category, len(categories)),
		children: make(map[uuid.UUID][]*catalog.Category),
		byName:   make(map[string][]*catalog.Category),
	}
	for i := range categories {
		cat := &categories[i]
		idx.byID[cat.ID] = cat
		if cat.ParentID == nil {
			idx.roots = append(idx.roots, cat)
		} else {
			idx.children[*cat.ParentID] = append(idx.children[*cat.ParentID], cat)
		}
		for _, key := range categoryKeys(cat) {
			idx.byName[key] = append(idx.byName[key], cat)
		}
	}
	return idx
}

func categoryKeys(cat *catalog.Category) []string {
	keys := []string{extract.Normalize(cat.Name)}
	if cat.Slug != "" {
		if s := extract.Normalize(strings.ReplaceAll(cat.Slug, "-", " ")); s != keys[0] {
			keys = append(keys, s)
		}
	}
	return keys
}

func matchesCategory(cat *catalog.Category, key string) bool {
	for _, k := range categoryKeys(cat) {
		if k == key {
			return true
		}
	}
	return false
}

// Len returns the number of categories.
func (idx *CategoryIndex) Len() int {
	return len(idx.byID)
}

// Resolve walks segments from the outermost level. Each segment is matched
// among the children of the last match, then anywhere in the tree. The
// deepest match wins; nil when nothing matched.
func (idx *CategoryIndex) Resolve(segments []string) *catalog.Category {
	var best *catalog.Category
	level := idx.roots
	for _, seg := range segments {
		key := extract.Normalize(strings.ReplaceAll(seg, "-", " "))
		if key == "" {
			continue
		}
		var match *catalog.Category
		for _, cat := range level {
			if matchesCategory(cat, key) {
				match = cat
				break
			}
		}
		if match == nil {
			if all := idx.byName[key]; len(all) > 0 {
				match = all[0]
			}
		}
		if match == nil {
			continue
		}
		best = match
		level = idx.children[match.ID]
	}
	return best
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
