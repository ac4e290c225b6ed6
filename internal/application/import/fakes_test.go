package importapp

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// memProductRepo is an in-memory catalog.ProductRepository. Write failures
// can be scripted per MPN.
type memProductRepo struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*catalog.Product
	pages   int
	creates int
	updates int
	// conflicts counts updates refused for a stale version.
	conflicts int
	failNext  map[string][]error // by MPN, consumed one per write
}

func newMemProductRepo(products ...*catalog.Product) *memProductRepo {
	r := &memProductRepo{
		items:    make(map[uuid.UUID]*catalog.Product),
		failNext: make(map[string][]error),
	}
	for _, p := range products {
		r.items[p.ID] = p.Clone()
	}
	return r
}

func (r *memProductRepo) failWrites(mpn string, errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext[mpn] = append(r.failNext[mpn], errs...)
}

func (r *memProductRepo) scripted(p *catalog.Product) error {
	queue := r.failNext[p.MPN]
	if len(queue) == 0 {
		return nil
	}
	r.failNext[p.MPN] = queue[1:]
	return queue[0]
}

func (r *memProductRepo) sorted() []*catalog.Product {
	out := make([]*catalog.Product, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (r *memProductRepo) FindPage(_ context.Context, offset, limit int) ([]catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages++
	all := r.sorted()
	if offset >= len(all) {
		return nil, nil
	}
	var out []catalog.Product
	for _, p := range all[offset:min(offset+limit, len(all))] {
		out = append(out, *p.Clone())
	}
	return out, nil
}

func (r *memProductRepo) FindByID(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.items[id]; ok {
		return p.Clone(), nil
	}
	return nil, shared.ErrNotFound
}

func (r *memProductRepo) Create(_ context.Context, p *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.scripted(p); err != nil {
		return err
	}
	r.creates++
	r.items[p.ID] = p.Clone()
	return nil
}

func (r *memProductRepo) Update(_ context.Context, p *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.scripted(p); err != nil {
		return err
	}
	stored, ok := r.items[p.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != p.Version {
		r.conflicts++
		return shared.ErrVersionConflict
	}
	p.Version++
	r.updates++
	r.items[p.ID] = p.Clone()
	return nil
}

func (r *memProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *memProductRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.items)), nil
}

func (r *memProductRepo) ArchiveAbsentSince(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.items {
		if p.DeletedAt != nil && p.DeletedAt.Before(cutoff) && !p.IsArchived {
			p.IsArchived = true
			n++
		}
	}
	return n, nil
}

func (r *memProductRepo) DiscontinueAbsentSince(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.items {
		if p.DeletedAt != nil && p.DeletedAt.Before(cutoff) && p.Status != catalog.StatusDiscontinued {
			p.Status = catalog.StatusDiscontinued
			n++
		}
	}
	return n, nil
}

func (r *memProductRepo) byMPN(mpn string) *catalog.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if strings.EqualFold(p.MPN, mpn) {
			return p.Clone()
		}
	}
	return nil
}

type memCategoryRepo struct{ items []catalog.Category }

func (r *memCategoryRepo) FindAll(context.Context) ([]catalog.Category, error) {
	return append([]catalog.Category(nil), r.items...), nil
}

func (r *memCategoryRepo) Save(_ context.Context, c *catalog.Category) error {
	r.items = append(r.items, *c)
	return nil
}

type memBrandRepo struct{ items []catalog.Brand }

func (r *memBrandRepo) FindAll(context.Context) ([]catalog.Brand, error) {
	return append([]catalog.Brand(nil), r.items...), nil
}

func (r *memBrandRepo) Save(_ context.Context, b *catalog.Brand) error {
	r.items = append(r.items, *b)
	return nil
}

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

func mustProduct(name, mpn, barcode string) *catalog.Product {
	p, err := catalog.NewProduct(name, mpn, barcode)
	if err != nil {
		panic(err)
	}
	return p
}

func testBrand(name string) catalog.Brand {
	b, err := catalog.NewBrand(name, strings.ToLower(strings.ReplaceAll(name, " ", "-")))
	if err != nil {
		panic(err)
	}
	return *b
}
