package importapp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eshop/backend/internal/domain/bulk"
	"github.com/eshop/backend/internal/domain/shared"
	"github.com/eshop/backend/internal/infrastructure/logger"
	"github.com/eshop/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// AdapterSource looks supplier adapters up by name.
type AdapterSource interface {
	Adapter(name string) (Adapter, bool)
	Names() []string
}

// EntrySource returns configured supplier entries.
type EntrySource interface {
	Entry(name string) (Entry, bool)
	Entries() []Entry
}

// Entries is a static EntrySource. Names compare case-insensitively.
type Entries []Entry

// Entry implements EntrySource.
func (e Entries) Entry(name string) (Entry, bool) {
	for _, entry := range e {
		if strings.EqualFold(entry.Name, name) {
			return entry, true
		}
	}
	return Entry{}, false
}

// Entries implements EntrySource.
func (e Entries) Entries() []Entry {
	return e
}

// RunLock keeps a supplier from running twice at the same time, also
// across processes.
type RunLock interface {
	// TryLock takes the lock for key. ok is false when someone else holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

// RunObserver records the outcome of runs, e.g. as metrics.
type RunObserver interface {
	ObserveRun(ctx context.Context, supplier string, result Result)
}

// RunObserverFunc adapts a function to RunObserver.
type RunObserverFunc func(ctx context.Context, supplier string, result Result)

// ObserveRun calls f.
func (f RunObserverFunc) ObserveRun(ctx context.Context, supplier string, result Result) {
	f(ctx, supplier, result)
}

// SupplierStatus is the configuration and last run of one supplier.
type SupplierStatus struct {
	Name     string
	Active   bool
	Schedule []string
	Running  bool
	LastRun  *bulk.ImportHistory
}

// RunService starts supplier imports: it takes the run lock, records
// history and reports metrics around Importer.Import.
type RunService struct {
	importer  *Importer
	adapters  AdapterSource
	entries   EntrySource
	history   *ImportHistoryService
	lock      RunLock
	lockTTL   time.Duration
	observers []RunObserver
	logger    *zap.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

// RunServiceOption configures a RunService.
type RunServiceOption func(*RunService)

// WithRunLock guards runs with a distributed lock held at most ttl.
func WithRunLock(lock RunLock, ttl time.Duration) RunServiceOption {
	return func(s *RunService) {
		s.lock = lock
		s.lockTTL = ttl
	}
}

// WithRunObserver reports every finished run to o. It may be given more
// than once.
func WithRunObserver(o RunObserver) RunServiceOption {
	return func(s *RunService) { s.observers = append(s.observers, o) }
}

// WithHistory records every run.
func WithHistory(h *ImportHistoryService) RunServiceOption {
	return func(s *RunService) { s.history = h }
}

// NewRunService creates a RunService.
func NewRunService(importer *Importer, adapters AdapterSource, entries EntrySource, log *zap.Logger, opts ...RunServiceOption) *RunService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &RunService{
		importer: importer,
		adapters: adapters,
		entries:  entries,
		lockTTL:  3 * time.Hour,
		logger:   log,
		running:  make(map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Resolve returns the adapter and entry of supplier.
func (s *RunService) Resolve(supplier string) (Adapter, Entry, error) {
	adapter, ok := s.adapters.Adapter(supplier)
	if !ok {
		return Adapter{}, Entry{}, fmt.Errorf("supplier %q has no adapter: %w", supplier, shared.ErrNotFound)
	}
	entry, ok := s.entries.Entry(adapter.Name)
	if !ok {
		return Adapter{}, Entry{}, fmt.Errorf("supplier %q is not configured: %w", supplier, shared.ErrNotFound)
	}
	return adapter, entry, nil
}

// Run imports one supplier. The error is only set when the run could not
// start; import failures are reported in the Result.
func (s *RunService) Run(ctx context.Context, supplier string, trigger bulk.Trigger) (Result, error) {
	adapter, entry, err := s.Resolve(supplier)
	if err != nil {
		return Result{}, err
	}
	name := adapter.Name

	if !s.markRunning(name) {
		return Result{}, shared.ErrAlreadyRunning
	}
	defer s.clearRunning(name)

	if s.lock != nil {
		unlock, ok, err := s.lock.TryLock(ctx, "import:"+name, s.lockTTL)
		if err != nil {
			return Result{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			return Result{}, shared.ErrAlreadyRunning
		}
		defer func() {
			// The run context may be cancelled by now.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("release run lock failed", zap.String("supplier", name), zap.Error(err))
			}
		}()
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "import", "run",
		telemetry.WithAttribute("supplier", name),
		telemetry.WithAttribute("trigger", string(trigger)),
	)
	defer span.End()

	var history *bulk.ImportHistory
	runID := ""
	if s.history != nil {
		history, err = s.history.Start(ctx, name, trigger)
		if err != nil {
			s.logger.Warn("run history not recorded", zap.String("supplier", name), zap.Error(err))
		} else {
			runID = history.ID.String()
		}
	}
	ctx, _ = logger.WithSupplier(ctx, s.logger, name, runID)

	var result Result
	telemetry.WithProfilingLabels(ctx, map[string]string{"supplier": name, "trigger": string(trigger)}, func(ctx context.Context) {
		result = s.importer.Import(ctx, adapter, entry)
	})

	if history != nil {
		if err := s.history.Finish(context.WithoutCancel(ctx), history, result); err != nil {
			s.logger.Warn("run history not finished", zap.String("supplier", name), zap.Error(err))
		}
	}
	for _, o := range s.observers {
		o.ObserveRun(ctx, name, result)
	}
	if result.OK() {
		telemetry.SetOK(span)
	} else {
		telemetry.RecordError(span, errors.New(result.Error))
	}
	return result, nil
}

func (s *RunService) markRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(name)
	if _, busy := s.running[key]; busy {
		return false
	}
	s.running[key] = struct{}{}
	return true
}

func (s *RunService) clearRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, strings.ToLower(name))
}

// IsRunning reports whether this process is importing supplier.
func (s *RunService) IsRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[strings.ToLower(name)]
	return ok
}

// Suppliers lists every supplier that has both an adapter and an entry.
func (s *RunService) Suppliers(ctx context.Context) []SupplierStatus {
	var out []SupplierStatus
	for _, entry := range s.entries.Entries() {
		adapter, ok := s.adapters.Adapter(entry.Name)
		if !ok {
			continue
		}
		st := SupplierStatus{
			Name:     adapter.Name,
			Active:   entry.Active,
			Schedule: entry.Schedule,
			Running:  s.IsRunning(adapter.Name),
		}
		if s.history != nil {
			if last, err := s.history.Latest(ctx, adapter.Name); err == nil {
				st.LastRun = last
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
