package importapp

import (
	"context"

	"github.com/eshop/backend/internal/domain/catalog"
	"go.uber.org/zap"
)

// cleanup unlinks the supplier from every product it carried before but not
// in this run.
func (i *Importer) cleanup(ctx context.Context, run *Run, log *zap.Logger) error {
	var stale []*catalog.Product
	for _, p := range i.cache.ProductsLinkedTo(run.Supplier) {
		if !run.Seen(p.ID) {
			stale = append(stale, p)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	log.Info("unlinking stale products", zap.Int("count", len(stale)))
	return i.unlink(ctx, stale, run, log)
}

// unlinkAll detaches an inactive supplier from all of its products.
func (i *Importer) unlinkAll(ctx context.Context, run *Run, log *zap.Logger) {
	products := i.cache.ProductsLinkedTo(run.Supplier)
	if err := i.unlink(ctx, products, run, log); err != nil {
		log.Warn("unlinking stopped", zap.Error(err))
	}
}

// unlink removes the supplier entry and feed link of each product. A product
// no supplier carries anymore and with no own stock is unpublished and
// stamped absent; the archive sweep takes it from there.
func (i *Importer) unlink(ctx context.Context, products []*catalog.Product, run *Run, log *zap.Logger) error {
	size := i.opts.UpdateBatchSize
	for start := 0; start < len(products); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, p := range products[start:min(start+size, len(products))] {
			d := &Draft{Product: p}
			i.guard(run, log, d, ErrCodeUnlink, func() error { return i.unlinkOne(ctx, p, run, log) })
		}
		if start+size < len(products) {
			if err := sleep(ctx, i.opts.UpdatePause); err != nil {
				return err
			}
		}
	}
	return nil
}

func (i *Importer) unlinkOne(ctx context.Context, p *catalog.Product, run *Run, log *zap.Logger) error {
	if current := i.cache.Get(p.ID); current != nil {
		p = current
	}
	saved, err := i.save(ctx, p, log, func(p *catalog.Product) bool {
		if !p.RemoveSupplier(run.Supplier) {
			return false
		}
		if len(p.SupplierInfo) == 0 && p.Inventory <= 0 {
			p.MarkAbsent(i.now())
		}
		if best, ok := p.BestWholesale(); ok {
			p.Wholesale = best
		}
		p.RecalculateStatus(i.cache.BrandName(p.BrandID), i.opts.Exclusions)
		return true
	})
	if err != nil || saved == nil {
		return err
	}
	run.Counters.Deleted++
	i.publish(ctx, log, catalog.NewProductUnlinkedEvent(saved, run.Supplier))
	return nil
}
