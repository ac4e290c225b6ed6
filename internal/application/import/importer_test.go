package importapp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/domain/shared"
	"github.com/eshop/backend/internal/infrastructure/feed"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	repo     *memProductRepo
	cache    *ProductCache
	events   *recordingPublisher
	importer *Importer
}

func newFixture(t *testing.T, opts Options, products ...*catalog.Product) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	repo := newMemProductRepo(products...)
	cache := NewProductCache(repo, &memCategoryRepo{}, &memBrandRepo{}, CacheConfig{}, log)
	events := &recordingPublisher{}
	imp := NewImporter(cache, repo, opts, log,
		WithEventPublisher(events),
		WithClock(func() time.Time { return testNow }),
	)
	return &fixture{repo: repo, cache: cache, events: events, importer: imp}
}

func rec(name, mpn, price, qty string) feed.Record {
	return feed.Record{"name": name, "mpn": mpn, "price": price, "qty": qty}
}

func feedAdapter(records ...feed.Record) Adapter {
	return Adapter{
		Name: "cpi",
		Mapping: FieldMapping{
			Name:      "name",
			MPN:       "mpn",
			Barcode:   "ean",
			Wholesale: "price",
			Quantity:  "qty",
			Weight:    "weight",
			ImageMain: "image",
		},
		Fetch: func(context.Context, Entry) ([]feed.Record, error) {
			out := make([]feed.Record, len(records))
			copy(out, records)
			return out, nil
		},
	}
}

var activeEntry = Entry{Name: "cpi", Active: true}

func linked(p *catalog.Product, supplier string, price string, qty int) *catalog.Product {
	p.UpsertSupplier(catalog.SupplierInfo{
		Name:      supplier,
		Wholesale: decimal.RequireFromString(price),
		Quantity:  qty,
		InStock:   qty > 0,
	}, testNow.Add(-24*time.Hour))
	p.LinkImport(supplier)
	p.Wholesale, _ = p.BestWholesale()
	p.RecalculateStatus("", catalog.Exclusions{})
	return p
}

func TestImporter_UpdateCreateSkip(t *testing.T) {
	existing := mustProduct("Existing mouse", "X1", "")
	f := newFixture(t, Options{}, existing)

	res := f.importer.Import(context.Background(), feedAdapter(
		rec("Renamed mouse", "X1", "10,00", "5"),
		rec("New keyboard", "X2", "20", "0"),
		rec("No identity", "", "5", "1"),
	), activeEntry)

	require.True(t, res.OK(), res.Error)
	c := res.Summary.Counters
	assert.Equal(t, 3, c.Total)
	assert.Equal(t, 1, c.Updated)
	assert.Equal(t, 1, c.Created)
	assert.Equal(t, 1, c.Skipped)
	assert.Zero(t, c.Failed)

	updated := f.repo.byMPN("X1")
	require.NotNil(t, updated)
	assert.Equal(t, "Existing mouse", updated.Name, "existing content is kept")
	assert.True(t, decimal.NewFromInt(10).Equal(updated.Wholesale))
	assert.Equal(t, catalog.StatusMediumStock, updated.Status)
	assert.True(t, updated.IsLinkedTo("cpi"))

	created := f.repo.byMPN("X2")
	require.NotNil(t, created)
	assert.Equal(t, "New keyboard", created.Name)
	assert.Equal(t, catalog.StatusOutOfStock, created.Status)
	require.Len(t, created.SupplierInfo, 1)
	assert.Equal(t, "cpi", created.SupplierInfo[0].Name)
	assert.Len(t, created.SupplierInfo[0].PriceHistory, 1)

	assert.Equal(t, []string{catalog.EventTypeProductCreated, catalog.EventTypeProductBackInStock}, f.events.types())
	assert.Zero(t, f.cache.Len(), "cache is released after the run")
}

func TestImporter_SecondRunCreatesNothing(t *testing.T) {
	f := newFixture(t, Options{})
	adapter := feedAdapter(
		rec("Mouse", "M1", "10", "1"),
		rec("Keyboard", "K1", "20", "1"),
	)

	first := f.importer.Import(context.Background(), adapter, activeEntry)
	require.True(t, first.OK())
	assert.Equal(t, 2, first.Summary.Counters.Created)

	second := f.importer.Import(context.Background(), adapter, activeEntry)
	require.True(t, second.OK())
	assert.Zero(t, second.Summary.Counters.Created)
	assert.Equal(t, 2, second.Summary.Counters.Updated)
	assert.Zero(t, second.Summary.Counters.Deleted)

	n, _ := f.repo.Count(context.Background())
	assert.Equal(t, int64(2), n)
}

func TestImporter_CreateFailureIsIsolated(t *testing.T) {
	f := newFixture(t, Options{})
	var records []feed.Record
	for i := 0; i < 10; i++ {
		records = append(records, rec(fmt.Sprintf("Product %d", i), fmt.Sprintf("M%d", i), "10", "1"))
	}
	f.repo.failWrites("M4", errors.New("insert failed"))

	res := f.importer.Import(context.Background(), feedAdapter(records...), activeEntry)

	require.True(t, res.OK())
	assert.Equal(t, 9, res.Summary.Counters.Created)
	assert.Equal(t, 1, res.Summary.Counters.Failed)
	require.Len(t, res.Summary.Errors, 1)
	assert.Equal(t, "M4", res.Summary.Errors[0].Record)
	assert.Equal(t, ErrCodeCreate, res.Summary.Errors[0].Code)
	assert.Nil(t, f.repo.byMPN("M4"))
}

func TestImporter_UpdateRetry(t *testing.T) {
	contention := fmt.Errorf("deadlock detected: %w", shared.ErrLockContention)

	t.Run("lock contention is retried once", func(t *testing.T) {
		f := newFixture(t, Options{}, mustProduct("Mouse", "X1", ""))
		f.repo.failWrites("X1", contention)

		res := f.importer.Import(context.Background(), feedAdapter(rec("Mouse", "X1", "10", "1")), activeEntry)
		require.True(t, res.OK())
		assert.Equal(t, 1, res.Summary.Counters.Updated)
		assert.Zero(t, res.Summary.Counters.Failed)
		assert.Equal(t, 1, f.repo.updates)
	})

	t.Run("second contention fails the record", func(t *testing.T) {
		f := newFixture(t, Options{}, mustProduct("Mouse", "X1", ""), mustProduct("Pad", "X2", ""))
		f.repo.failWrites("X1", contention, contention)

		res := f.importer.Import(context.Background(), feedAdapter(
			rec("Mouse", "X1", "10", "1"),
			rec("Pad", "X2", "3", "1"),
		), activeEntry)
		require.True(t, res.OK())
		assert.Equal(t, 1, res.Summary.Counters.Updated, "the batch continues")
		assert.Equal(t, 1, res.Summary.Counters.Failed)
		require.Len(t, res.Summary.Errors, 1)
		assert.Equal(t, "LOCK_CONTENTION", res.Summary.Errors[0].Code)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		f := newFixture(t, Options{}, mustProduct("Mouse", "X1", ""))
		f.repo.failWrites("X1", errors.New("check constraint"))

		res := f.importer.Import(context.Background(), feedAdapter(rec("Mouse", "X1", "10", "1")), activeEntry)
		require.True(t, res.OK())
		assert.Equal(t, 1, res.Summary.Counters.Failed)
		assert.Zero(t, f.repo.updates)
		assert.Equal(t, ErrCodeUpdate, res.Summary.Errors[0].Code)
	})
}

func TestImporter_FetchFailureKeepsCatalog(t *testing.T) {
	p := linked(mustProduct("Mouse", "X1", ""), "cpi", "10", 3)
	f := newFixture(t, Options{}, p)

	adapter := feedAdapter()
	adapter.Fetch = func(context.Context, Entry) ([]feed.Record, error) {
		return nil, errors.New("HTTP 503")
	}
	res := f.importer.Import(context.Background(), adapter, activeEntry)

	assert.False(t, res.OK())
	assert.Equal(t, MessageError, res.Message)
	assert.Contains(t, res.Error, "HTTP 503")
	assert.True(t, f.repo.byMPN("X1").IsLinkedTo("cpi"))
	assert.Zero(t, f.repo.updates)
}

func TestImporter_StaleCleanup(t *testing.T) {
	only := linked(mustProduct("Only cpi", "A1", ""), "cpi", "10", 3)
	both := linked(linked(mustProduct("Shared", "B1", ""), "cpi", "10", 3), "westnet", "11", 2)
	stocked := linked(mustProduct("Own stock", "C1", ""), "cpi", "10", 3)
	stocked.Inventory = 5
	f := newFixture(t, Options{}, only, both, stocked)

	res := f.importer.Import(context.Background(), feedAdapter(rec("Fresh", "D1", "4", "1")), activeEntry)
	require.True(t, res.OK())
	assert.Equal(t, 3, res.Summary.Counters.Deleted)
	assert.Equal(t, 1, res.Summary.Counters.Created)

	gotOnly := f.repo.byMPN("A1")
	assert.False(t, gotOnly.Published)
	require.NotNil(t, gotOnly.DeletedAt)
	assert.True(t, testNow.Equal(*gotOnly.DeletedAt))
	assert.Empty(t, gotOnly.SupplierInfo)
	assert.Equal(t, catalog.StatusOutOfStock, gotOnly.Status)

	gotShared := f.repo.byMPN("B1")
	assert.True(t, gotShared.Published)
	assert.Nil(t, gotShared.DeletedAt)
	assert.Equal(t, []string{"westnet"}, []string(gotShared.RelatedImports))
	assert.True(t, decimal.NewFromInt(11).Equal(gotShared.Wholesale))

	gotStocked := f.repo.byMPN("C1")
	assert.True(t, gotStocked.Published)
	assert.Nil(t, gotStocked.DeletedAt)
	assert.Equal(t, catalog.StatusMediumStock, gotStocked.Status)

	unlinked := 0
	for _, ty := range f.events.types() {
		if ty == catalog.EventTypeProductUnlinked {
			unlinked++
		}
	}
	assert.Equal(t, 3, unlinked)
}

func TestImporter_EmptyFeedSkipsCleanup(t *testing.T) {
	p := linked(mustProduct("Mouse", "X1", ""), "cpi", "10", 3)
	f := newFixture(t, Options{}, p)

	res := f.importer.Import(context.Background(), feedAdapter(), activeEntry)
	require.True(t, res.OK())
	assert.Zero(t, res.Summary.Counters.Deleted)
	assert.True(t, f.repo.byMPN("X1").IsLinkedTo("cpi"))
}

func TestImporter_InactiveSupplier(t *testing.T) {
	a := linked(mustProduct("A", "A1", ""), "cpi", "10", 3)
	b := linked(mustProduct("B", "B1", ""), "cpi", "10", 3)
	other := linked(mustProduct("C", "C1", ""), "westnet", "10", 3)
	f := newFixture(t, Options{}, a, b, other)

	fetched := false
	adapter := feedAdapter()
	adapter.Fetch = func(context.Context, Entry) ([]feed.Record, error) {
		fetched = true
		return nil, nil
	}
	res := f.importer.Import(context.Background(), adapter, Entry{Name: "cpi", Active: false})

	require.True(t, res.OK())
	assert.False(t, fetched)
	assert.Equal(t, 2, res.Summary.Counters.Deleted)
	assert.False(t, f.repo.byMPN("A1").IsLinkedTo("cpi"))
	assert.False(t, f.repo.byMPN("B1").Published)
	assert.True(t, f.repo.byMPN("C1").IsLinkedTo("westnet"))
}

func TestImporter_RepublishesAbsentProduct(t *testing.T) {
	p := mustProduct("Returning", "R1", "")
	p.MarkAbsent(testNow.Add(-100 * 24 * time.Hour))
	p.IsArchived = true
	f := newFixture(t, Options{}, p)

	res := f.importer.Import(context.Background(), feedAdapter(rec("Returning", "R1", "10", "20")), activeEntry)
	require.True(t, res.OK())
	assert.Equal(t, 1, res.Summary.Counters.Republished)

	got := f.repo.byMPN("R1")
	assert.True(t, got.Published)
	assert.Nil(t, got.DeletedAt)
	assert.False(t, got.IsArchived)
	assert.Equal(t, catalog.StatusInStock, got.Status)
}

func TestImporter_MergeFillsEmptyFields(t *testing.T) {
	p := linked(mustProduct("Keep this name", "W1", ""), "cpi", "10", 3)
	f := newFixture(t, Options{}, p)

	r := rec("Other name", "W1", "12", "3")
	r["weight"] = "2,5 kg"
	r["image"] = "https://img.example.com/w1.jpg"
	r["ean"] = "5200000000011"
	res := f.importer.Import(context.Background(), feedAdapter(r), activeEntry)
	require.True(t, res.OK())

	got := f.repo.byMPN("W1")
	assert.Equal(t, "Keep this name", got.Name)
	assert.Equal(t, "5200000000011", got.Barcode)
	require.NotNil(t, got.Weight)
	assert.Equal(t, 2500, *got.Weight)
	assert.Equal(t, []string{"https://img.example.com/w1.jpg"}, []string(got.Images))
	assert.True(t, decimal.NewFromInt(12).Equal(got.Wholesale))
	require.Len(t, got.SupplierInfo, 1)
	assert.Len(t, got.SupplierInfo[0].PriceHistory, 2)
	assert.Contains(t, f.events.types(), catalog.EventTypeProductPriceChanged)
}

func TestImporter_DuplicateRecordsInOneFeed(t *testing.T) {
	f := newFixture(t, Options{})
	res := f.importer.Import(context.Background(), feedAdapter(
		rec("Mouse", "DUP", "10", "1"),
		rec("Mouse", "DUP", "9", "1"),
	), activeEntry)

	require.True(t, res.OK())
	assert.Equal(t, 1, res.Summary.Counters.Created)
	assert.Equal(t, 1, res.Summary.Counters.Updated)
	n, _ := f.repo.Count(context.Background())
	assert.Equal(t, int64(1), n)
}

func TestImporter_TransformPanicIsIsolated(t *testing.T) {
	f := newFixture(t, Options{})
	adapter := feedAdapter(rec("Good", "G1", "1", "1"), rec("Bad", "BAD", "1", "1"))
	adapter.Transform = func(d *Draft, _ feed.Record) error {
		if d.Product.MPN == "BAD" {
			panic("unexpected shape")
		}
		return nil
	}

	res := f.importer.Import(context.Background(), adapter, activeEntry)
	require.True(t, res.OK())
	assert.Equal(t, 1, res.Summary.Counters.Created)
	assert.Equal(t, 1, res.Summary.Counters.Failed)
	assert.Equal(t, ErrCodeTransform, res.Summary.Errors[0].Code)
}

func TestImporter_PanicBecomesResult(t *testing.T) {
	f := newFixture(t, Options{})
	adapter := feedAdapter()
	adapter.Fetch = func(context.Context, Entry) ([]feed.Record, error) {
		panic("boom")
	}

	var res Result
	require.NotPanics(t, func() {
		res = f.importer.Import(context.Background(), adapter, activeEntry)
	})
	assert.Equal(t, MessageError, res.Message)
	assert.Contains(t, res.Error, "boom")
	assert.Empty(t, f.cache.ActiveSuppliers())
}

func TestImporter_InvalidAdapter(t *testing.T) {
	f := newFixture(t, Options{})
	res := f.importer.Import(context.Background(), Adapter{Name: "nofetch"}, activeEntry)
	assert.False(t, res.OK())
	assert.Contains(t, res.Error, "no fetch function")
}

func TestImporter_ExclusionsForceAskForPrice(t *testing.T) {
	f := newFixture(t, Options{Exclusions: catalog.NewExclusions("Apple")})
	res := f.importer.Import(context.Background(), feedAdapter(rec("Apple iPhone 15", "IP15", "700", "20")), activeEntry)
	require.True(t, res.OK())
	assert.Equal(t, catalog.StatusAskForPrice, f.repo.byMPN("IP15").Status)
}

func TestImporter_CancelledContext(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	adapter := feedAdapter(rec("Mouse", "M1", "1", "1"))
	fetch := adapter.Fetch
	adapter.Fetch = func(ctx context.Context, e Entry) ([]feed.Record, error) {
		cancel()
		return fetch(ctx, e)
	}

	res := f.importer.Import(ctx, adapter, activeEntry)
	assert.False(t, res.OK())
	assert.Contains(t, res.Error, context.Canceled.Error())
	assert.Nil(t, f.repo.byMPN("M1"))
}

type fakeImageStore struct {
	err   error
	calls int
}

func (s *fakeImageStore) Store(_ context.Context, supplier string, id uuid.UUID, urls []string) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]string, len(urls))
	for i := range urls {
		out[i] = fmt.Sprintf("https://cdn.example.com/%s/%s/%d.jpg", supplier, id, i)
	}
	return out, nil
}

func TestImporter_ImageStore(t *testing.T) {
	r := rec("Mouse", "M1", "1", "1")
	r["image"] = "https://supplier.example.com/m1.jpg"

	t.Run("stored urls replace supplier urls", func(t *testing.T) {
		store := &fakeImageStore{}
		f := newFixture(t, Options{})
		f.importer.images = store

		res := f.importer.Import(context.Background(), feedAdapter(r), activeEntry)
		require.True(t, res.OK())
		got := f.repo.byMPN("M1")
		require.Len(t, got.Images, 1)
		assert.Contains(t, got.Images[0], "https://cdn.example.com/cpi/")
	})

	t.Run("store failure keeps supplier urls", func(t *testing.T) {
		store := &fakeImageStore{err: errors.New("bucket unavailable")}
		f := newFixture(t, Options{})
		f.importer.images = store

		res := f.importer.Import(context.Background(), feedAdapter(r), activeEntry)
		require.True(t, res.OK())
		assert.Equal(t, 1, res.Summary.Counters.Created)
		assert.Equal(t, []string{"https://supplier.example.com/m1.jpg"}, []string(f.repo.byMPN("M1").Images))
		require.Len(t, res.Summary.Errors, 1)
		assert.Equal(t, ErrCodeImages, res.Summary.Errors[0].Code)
	})
}

func TestImporter_ConcurrentSuppliersShareCache(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	// westnet holds the cache while cpi runs, so cpi's release keeps it warm.
	require.NoError(t, f.cache.Acquire(ctx, "westnet"))
	res := f.importer.Import(ctx, feedAdapter(rec("Mouse", "M1", "1", "1")), activeEntry)
	require.True(t, res.OK())

	got := f.cache.Lookup("M1", "", "", "")
	require.NotNil(t, got, "product created by cpi is visible to westnet")
	f.cache.Release("westnet")
	assert.Zero(t, f.cache.Len())
}

func TestImporter_FailedRecordStaysLinked(t *testing.T) {
	assertStillLinked := func(t *testing.T, f *fixture, res Result) {
		t.Helper()
		require.True(t, res.OK(), res.Error)
		assert.Equal(t, 1, res.Summary.Counters.Failed)
		assert.Zero(t, res.Summary.Counters.Deleted)

		got := f.repo.byMPN("X1")
		require.NotNil(t, got)
		assert.True(t, got.IsLinkedTo("cpi"))
		assert.Len(t, got.SupplierInfo, 1)
		assert.True(t, got.Published)
		assert.Nil(t, got.DeletedAt)
	}

	t.Run("write failure", func(t *testing.T) {
		f := newFixture(t, Options{}, linked(mustProduct("Mouse", "X1", ""), "cpi", "10", 3))
		f.repo.failWrites("X1", errors.New("boom"))

		res := f.importer.Import(context.Background(), feedAdapter(
			rec("Mouse", "X1", "11", "3"),
			rec("Pad", "Y1", "2", "1"),
		), activeEntry)
		assertStillLinked(t, f, res)
	})

	t.Run("transform failure", func(t *testing.T) {
		f := newFixture(t, Options{}, linked(mustProduct("Mouse", "X1", ""), "cpi", "10", 3))
		adapter := feedAdapter(
			rec("Mouse", "X1", "11", "3"),
			rec("Pad", "Y1", "2", "1"),
		)
		adapter.Transform = func(d *Draft, _ feed.Record) error {
			if d.Product.MPN == "X1" {
				return errors.New("unparseable specs")
			}
			return nil
		}

		res := f.importer.Import(context.Background(), adapter, activeEntry)
		assertStillLinked(t, f, res)
	})
}

// pausingImageStore blocks the first Store call until resume is closed.
type pausingImageStore struct {
	reached chan struct{}
	resume  chan struct{}
	once    sync.Once
}

func newPausingImageStore() *pausingImageStore {
	return &pausingImageStore{reached: make(chan struct{}), resume: make(chan struct{})}
}

func (s *pausingImageStore) Store(ctx context.Context, _ string, _ uuid.UUID, urls []string) ([]string, error) {
	s.once.Do(func() { close(s.reached) })
	select {
	case <-s.resume:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return urls, nil
}

func TestImporter_InterleavedSuppliersKeepEachOthersEntries(t *testing.T) {
	ctx := context.Background()

	// cpi pauses in its create phase, after it matched P1 for update.
	cpiRun := func(f *fixture) (*pausingImageStore, <-chan Result) {
		store := newPausingImageStore()
		f.importer.images = store
		fresh := rec("Webcam", "N1", "30", "2")
		fresh["image"] = "https://supplier.example.com/n1.jpg"
		done := make(chan Result, 1)
		go func() {
			done <- f.importer.Import(ctx, feedAdapter(rec("Monitor", "P1", "9", "3"), fresh), activeEntry)
		}()
		<-store.reached
		return store, done
	}
	monitor := func() *catalog.Product {
		return linked(linked(mustProduct("Monitor", "P1", ""), "cpi", "10", 3), "westnet", "12", 5)
	}
	assertBoth := func(t *testing.T, f *fixture, westnetPrice string, westnetQty int) {
		t.Helper()
		got := f.repo.byMPN("P1")
		require.NotNil(t, got)
		westnet := got.SupplierEntry("westnet")
		require.NotNil(t, westnet)
		assert.True(t, decimal.RequireFromString(westnetPrice).Equal(westnet.Wholesale), westnet.Wholesale.String())
		assert.Equal(t, westnetQty, westnet.Quantity)
		cpi := got.SupplierEntry("cpi")
		require.NotNil(t, cpi)
		assert.True(t, decimal.NewFromInt(9).Equal(cpi.Wholesale))
		assert.True(t, decimal.RequireFromString(westnetPrice).Equal(got.Wholesale))
	}

	t.Run("second supplier run", func(t *testing.T) {
		f := newFixture(t, Options{}, monitor())
		store, done := cpiRun(f)

		westnet := feedAdapter(rec("Monitor", "P1", "8", "50"))
		westnet.Name = "westnet"
		res := f.importer.Import(ctx, westnet, Entry{Name: "westnet", Active: true})
		require.True(t, res.OK(), res.Error)
		require.Equal(t, 1, res.Summary.Counters.Updated)

		close(store.resume)
		cpi := <-done
		require.True(t, cpi.OK(), cpi.Error)
		assert.Equal(t, 1, cpi.Summary.Counters.Updated)
		assert.Equal(t, 1, cpi.Summary.Counters.Created)
		assertBoth(t, f, "8", 50)
	})

	t.Run("write outside the cache", func(t *testing.T) {
		f := newFixture(t, Options{}, monitor())
		store, done := cpiRun(f)

		other := f.repo.byMPN("P1")
		other.UpsertSupplier(catalog.SupplierInfo{
			Name:      "westnet",
			Wholesale: decimal.NewFromInt(7),
			Quantity:  20,
			InStock:   true,
		}, testNow)
		other.Wholesale, _ = other.BestWholesale()
		require.NoError(t, f.repo.Update(ctx, other))

		close(store.resume)
		cpi := <-done
		require.True(t, cpi.OK(), cpi.Error)
		assert.Zero(t, cpi.Summary.Counters.Failed)
		assert.Equal(t, 1, f.repo.conflicts, "stale copy is refused once, then replayed")
		assertBoth(t, f, "7", 20)
	})
}
