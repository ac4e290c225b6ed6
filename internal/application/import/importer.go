package importapp

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/domain/shared"
	"github.com/eshop/backend/internal/infrastructure/feed"
	"github.com/eshop/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ImageStore copies supplier images to storage the shop controls and returns
// the new URLs in the same order.
type ImageStore interface {
	Store(ctx context.Context, supplier string, productID uuid.UUID, urls []string) ([]string, error)
}

// Options tunes batch sizes and pauses of the write phase.
type Options struct {
	CreateBatchSize int
	UpdateBatchSize int
	CreatePause     time.Duration
	UpdatePause     time.Duration
	// RetryBackoff is the wait before the single retry of a write that lost
	// a lock.
	RetryBackoff time.Duration
	// ForceGC runs the garbage collector after every create chunk.
	ForceGC         bool
	MaxErrorDetails int
	Exclusions      catalog.Exclusions
}

// DefaultOptions returns the production batch settings.
func DefaultOptions() Options {
	return Options{
		CreateBatchSize: 10,
		UpdateBatchSize: 20,
		CreatePause:     time.Second,
		UpdatePause:     500 * time.Millisecond,
		RetryBackoff:    time.Second,
		MaxErrorDetails: defaultMaxErrors,
	}
}

// Importer runs supplier imports against the shared product cache.
type Importer struct {
	cache    *ProductCache
	products catalog.ProductRepository
	images   ImageStore
	events   shared.EventPublisher
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithImageStore enables image copying on create.
func WithImageStore(s ImageStore) ImporterOption {
	return func(i *Importer) { i.images = s }
}

// WithEventPublisher publishes product events after successful writes.
func WithEventPublisher(p shared.EventPublisher) ImporterOption {
	return func(i *Importer) { i.events = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ImporterOption {
	return func(i *Importer) { i.now = now }
}

// NewImporter creates an Importer.
func NewImporter(cache *ProductCache, products catalog.ProductRepository, opts Options, log *zap.Logger, options ...ImporterOption) *Importer {
	def := DefaultOptions()
	if opts.CreateBatchSize <= 0 {
		opts.CreateBatchSize = def.CreateBatchSize
	}
	if opts.UpdateBatchSize <= 0 {
		opts.UpdateBatchSize = def.UpdateBatchSize
	}
	if opts.MaxErrorDetails <= 0 {
		opts.MaxErrorDetails = def.MaxErrorDetails
	}
	if log == nil {
		log = zap.NewNop()
	}
	i := &Importer{
		cache:    cache,
		products: products,
		opts:     opts,
		logger:   log,
		now:      time.Now,
	}
	for _, o := range options {
		o(i)
	}
	return i
}

// Import runs one supplier end to end: fetch, normalize, create, update and
// unlink what the feed no longer carries. It never panics and never returns
// an error; failures are reported in the Result.
func (i *Importer) Import(ctx context.Context, adapter Adapter, entry Entry) (result Result) {
	run := newRun(adapter, entry, i.opts.MaxErrorDetails, i.now())
	log := logger.WithTraceContext(ctx, i.logger).With(zap.String("supplier", adapter.Name))
	if runID := logger.GetRunID(ctx); runID != "" {
		log = log.With(zap.String("run_id", runID))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("import panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			result = Result{
				Message: MessageError,
				Error:   fmt.Sprintf("panic: %v", r),
				Summary: run.Summary(i.now()),
			}
		}
	}()

	if err := adapter.Validate(); err != nil {
		return i.failed(run, err)
	}
	if err := i.cache.Acquire(ctx, adapter.Name); err != nil {
		log.Error("cache acquire failed", zap.Error(err))
		return i.failed(run, err)
	}
	defer i.cache.Release(adapter.Name)

	run.Categories = i.cache.Categories()
	run.Brands = i.cache.Brands()

	if !entry.Active {
		log.Info("supplier inactive, unlinking its products")
		i.unlinkAll(ctx, run, log)
		return Result{Message: MessageOK, Summary: run.Summary(i.now())}
	}

	records, err := adapter.Fetch(ctx, entry)
	if err != nil {
		log.Error("fetch failed", zap.Error(err))
		return i.failed(run, fmt.Errorf("fetch: %w", err))
	}
	run.Counters.Total = len(records)
	log.Info("feed fetched", zap.Int("records", len(records)))

	drafts := i.preprocess(adapter, records, run, log)

	toCreate, toUpdate := i.categorize(drafts)
	log.Info("records categorized",
		zap.Int("create", len(toCreate)),
		zap.Int("update", len(toUpdate)),
		zap.Int("skipped", run.Counters.Skipped),
	)

	if err := i.createBatches(ctx, toCreate, run, log); err != nil {
		return i.failed(run, err)
	}
	if err := i.updateBatches(ctx, toUpdate, run, log); err != nil {
		return i.failed(run, err)
	}

	if len(drafts) == 0 {
		log.Warn("feed produced no products, stale cleanup skipped")
	} else if err := i.cleanup(ctx, run, log); err != nil {
		return i.failed(run, err)
	}

	summary := run.Summary(i.now())
	log.Info("import finished",
		zap.Int("created", summary.Counters.Created),
		zap.Int("updated", summary.Counters.Updated),
		zap.Int("skipped", summary.Counters.Skipped),
		zap.Int("republished", summary.Counters.Republished),
		zap.Int("unlinked", summary.Counters.Deleted),
		zap.Int("failed", summary.Counters.Failed),
		zap.Duration("duration", summary.Duration),
	)
	return Result{Message: MessageOK, Summary: summary}
}

func (i *Importer) failed(run *Run, err error) Result {
	return Result{Message: MessageError, Error: err.Error(), Summary: run.Summary(i.now())}
}

// preprocess builds a draft per record. Records without MPN and barcode are
// skipped; a record whose transform fails or panics is counted as failed.
func (i *Importer) preprocess(adapter Adapter, records []feed.Record, run *Run, log *zap.Logger) []*Draft {
	builder := NewFieldBuilder(adapter, run.Categories, run.Brands)
	drafts := make([]*Draft, 0, len(records))
	for _, rec := range records {
		d, err := i.transform(builder, adapter, rec)
		if err != nil {
			label := "<unknown>"
			if d != nil {
				label = d.Label()
			}
			log.Warn("record transform failed", zap.String("record", label), zap.Error(err))
			run.fail(label, ErrCodeTransform, err)
			// The feed still carries the product, so cleanup must not unlink it.
			if d != nil && d.Product != nil {
				p := d.Product
				if existing := i.cache.Lookup(p.MPN, p.Barcode, p.Model, p.Name); existing != nil {
					run.MarkSeen(existing.ID)
				}
			}
			continue
		}
		if d == nil {
			run.Counters.Skipped++
			continue
		}
		drafts = append(drafts, d)
	}
	return drafts
}

func (i *Importer) transform(builder *FieldBuilder, adapter Adapter, rec feed.Record) (d *Draft, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errRecordPanic, r)
		}
	}()
	d = builder.Build(rec)
	if !d.Product.HasIdentity() {
		return nil, nil
	}
	builder.Extract(d, rec)
	if adapter.Transform != nil {
		if err := adapter.Transform(d, rec); err != nil {
			return d, err
		}
	}
	if !d.Product.HasIdentity() {
		return nil, nil
	}
	return d, nil
}

var errRecordPanic = errors.New("record handler panicked")

func (i *Importer) categorize(drafts []*Draft) (toCreate []*Draft, toUpdate []updateCandidate) {
	for _, d := range drafts {
		p := d.Product
		if existing := i.cache.Lookup(p.MPN, p.Barcode, p.Model, p.Name); existing != nil {
			toUpdate = append(toUpdate, updateCandidate{draft: d, existing: existing})
			continue
		}
		toCreate = append(toCreate, d)
	}
	return toCreate, toUpdate
}

// createBatches writes new products in small sequential chunks, pausing
// between chunks. Each created product enters the cache at once.
func (i *Importer) createBatches(ctx context.Context, drafts []*Draft, run *Run, log *zap.Logger) error {
	size := i.opts.CreateBatchSize
	for start := 0; start < len(drafts); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := drafts[start:min(start+size, len(drafts))]
		for _, d := range chunk {
			i.guard(run, log, d, ErrCodeCreate, func() error { return i.createOne(ctx, d, run, log) })
		}
		for k := range chunk {
			chunk[k] = nil
		}
		if i.opts.ForceGC {
			runtime.GC()
		}
		if start+size < len(drafts) {
			if err := sleep(ctx, i.opts.CreatePause); err != nil {
				return err
			}
		}
	}
	return nil
}

func (i *Importer) createOne(ctx context.Context, d *Draft, run *Run, log *zap.Logger) error {
	p := d.Product
	// An earlier chunk or another running supplier may have created it.
	if existing := i.cache.Lookup(p.MPN, p.Barcode, p.Model, p.Name); existing != nil {
		run.MarkSeen(existing.ID)
		return i.updateOne(ctx, updateCandidate{draft: d, existing: existing}, run, log)
	}
	if p.Name == "" {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}

	if i.images != nil && len(p.Images) > 0 {
		stored, err := i.images.Store(ctx, run.Supplier, p.ID, p.Images)
		if err != nil {
			log.Warn("image copy failed, keeping supplier urls",
				zap.String("record", d.Label()), zap.Error(err))
			run.Errors.Add(d.Label(), ErrCodeImages, err)
		} else {
			p.SetImages(stored)
		}
	}

	now := i.now()
	p.UpsertSupplier(d.Offer, now)
	if best, ok := p.BestWholesale(); ok {
		p.Wholesale = best
	}
	p.LinkImport(run.Supplier)
	p.RecalculateStatus(d.BrandName, i.opts.Exclusions)

	if err := i.products.Create(ctx, p); err != nil {
		return err
	}
	i.cache.Add(p)
	run.MarkSeen(p.ID)
	run.Counters.Created++
	i.publish(ctx, log, catalog.NewProductCreatedEvent(p, run.Supplier))
	return nil
}

// updateBatches merges matched records into existing products. A write that
// lost a lock is retried once.
func (i *Importer) updateBatches(ctx context.Context, candidates []updateCandidate, run *Run, log *zap.Logger) error {
	size := i.opts.UpdateBatchSize
	for start := 0; start < len(candidates); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := candidates[start:min(start+size, len(candidates))]
		for _, c := range chunk {
			run.MarkSeen(c.existing.ID)
			i.guard(run, log, c.draft, ErrCodeUpdate, func() error { return i.updateOne(ctx, c, run, log) })
		}
		for k := range chunk {
			chunk[k] = updateCandidate{}
		}
		if start+size < len(candidates) {
			if err := sleep(ctx, i.opts.UpdatePause); err != nil {
				return err
			}
		}
	}
	return nil
}

// updateOne merges the record into the newest cached state of the product.
// Another supplier may have written it since categorize took its copy.
func (i *Importer) updateOne(ctx context.Context, c updateCandidate, run *Run, log *zap.Logger) error {
	current := i.cache.Get(c.existing.ID)
	if current == nil {
		current = c.existing
	}

	var (
		oldWholesale decimal.Decimal
		oldStatus    catalog.ProductStatus
		republished  bool
	)
	p, err := i.save(ctx, current, log, func(p *catalog.Product) bool {
		oldWholesale = p.Wholesale
		republished = i.merge(p, c.draft, run.Supplier)
		brand := c.draft.BrandName
		if name := i.cache.BrandName(p.BrandID); name != "" {
			brand = name
		}
		oldStatus = p.RecalculateStatus(brand, i.opts.Exclusions)
		return true
	})
	if err != nil {
		return err
	}
	run.Counters.Updated++
	if republished {
		run.Counters.Republished++
	}

	var events []shared.DomainEvent
	if !oldStatus.IsAvailable() && p.Status.IsAvailable() {
		events = append(events, catalog.NewProductBackInStockEvent(p, oldStatus))
	}
	if !oldWholesale.Equal(p.Wholesale) && oldWholesale.IsPositive() {
		events = append(events, catalog.NewProductPriceChangedEvent(p, oldWholesale))
	}
	i.publish(ctx, log, events...)
	return nil
}

// maxVersionReplays bounds how often a change is replayed on a reloaded
// product after losing to a concurrent writer.
const maxVersionReplays = 3

// save applies change to p and writes it. When the stored row moved on, the
// product is reloaded and change applied again, so concurrent suppliers
// never overwrite each other's entries. A change returning false is dropped
// without a write and save returns nil, nil.
func (i *Importer) save(ctx context.Context, p *catalog.Product, log *zap.Logger, change func(*catalog.Product) bool) (*catalog.Product, error) {
	for replay := 0; ; replay++ {
		if !change(p) {
			return nil, nil
		}
		err := i.writeWithRetry(ctx, p, log)
		if err == nil {
			i.cache.Add(p)
			return p, nil
		}
		if !errors.Is(err, shared.ErrVersionConflict) || replay == maxVersionReplays {
			return nil, err
		}
		log.Debug("product changed by another writer, replaying",
			zap.String("product_id", p.ID.String()), zap.Int("version", p.Version))
		if p, err = i.products.FindByID(ctx, p.ID); err != nil {
			return nil, err
		}
		i.cache.Add(p)
	}
}

// merge folds a fresh supplier record into an existing product. Identity and
// content already present are kept; only empty fields are filled.
func (i *Importer) merge(p *catalog.Product, d *Draft, supplier string) (republished bool) {
	src := d.Product
	p.UpsertSupplier(d.Offer, i.now())
	if best, ok := p.BestWholesale(); ok {
		p.Wholesale = best
	}

	fillString(&p.Name, src.Name)
	fillString(&p.Slug, src.Slug)
	fillString(&p.MPN, src.MPN)
	fillString(&p.Barcode, src.Barcode)
	fillString(&p.Model, src.Model)
	fillDecimal(&p.RetailPrice, src.RetailPrice)
	fillDecimal(&p.RecycleTax, src.RecycleTax)
	if p.Weight == nil && src.Weight != nil {
		w := *src.Weight
		p.Weight = &w
	}
	if !p.HasDimensions() && src.HasDimensions() {
		p.SetDimensions(catalog.Dimensions{Length: *src.Length, Width: *src.Width, Height: *src.Height})
	}
	if len(p.Characteristics) == 0 && len(src.Characteristics) > 0 {
		p.SetCharacteristics(src.Characteristics)
	}
	if len(p.Images) == 0 && len(src.Images) > 0 {
		p.SetImages(src.Images)
	}
	if p.CategoryID == nil && src.CategoryID != nil {
		id := *src.CategoryID
		p.CategoryID = &id
	}
	if p.BrandID == nil && src.BrandID != nil {
		id := *src.BrandID
		p.BrandID = &id
	}

	p.LinkImport(supplier)
	return p.Republish()
}

func fillString(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func fillDecimal(dst *decimal.Decimal, v decimal.Decimal) {
	if dst.IsZero() && !v.IsZero() {
		*dst = v
	}
}

func (i *Importer) writeWithRetry(ctx context.Context, p *catalog.Product, log *zap.Logger) error {
	err := i.products.Update(ctx, p)
	if err == nil || !shared.IsLockContention(err) {
		return err
	}
	log.Warn("write lost a lock, retrying once", zap.String("product_id", p.ID.String()), zap.Error(err))
	if err := sleep(ctx, i.opts.RetryBackoff); err != nil {
		return err
	}
	return i.products.Update(ctx, p)
}

// guard runs fn for one record, turning errors and panics into a counted,
// logged record failure.
func (i *Importer) guard(run *Run, log *zap.Logger, d *Draft, code string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				code = ErrCodePanic
				err = fmt.Errorf("%w: %v", errRecordPanic, r)
			}
		}()
		return fn()
	}()
	if err == nil {
		return
	}
	log.Warn("record write failed",
		zap.String("record", d.Label()),
		zap.String("mpn", d.Product.MPN),
		zap.Error(err),
	)
	run.fail(d.Label(), code, err)
}

func (i *Importer) publish(ctx context.Context, log *zap.Logger, events ...shared.DomainEvent) {
	if i.events == nil || len(events) == 0 {
		return
	}
	if err := i.events.Publish(ctx, events...); err != nil {
		log.Warn("publish product events failed", zap.Error(err))
	}
}
