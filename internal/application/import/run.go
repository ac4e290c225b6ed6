package importapp

import (
	"strings"
	"time"

	"github.com/eshop/backend/internal/domain/bulk"
	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/google/uuid"
)

// Entry is the configured import entry of one supplier.
type Entry struct {
	Name     string
	Active   bool
	FeedURL  string
	Username string
	Password string
	APIKey   string
	// Schedule lists daily run times as HH:MM.
	Schedule []string
}

// Draft is one normalized supplier record before it is merged into the catalog.
type Draft struct {
	Product *catalog.Product
	// Offer is this supplier's price and availability for the product.
	Offer catalog.SupplierInfo
	// BrandName is the resolved brand, used by the price exclusions.
	BrandName string
}

// Label identifies the draft in logs and error details.
func (d *Draft) Label() string {
	p := d.Product
	for _, v := range []string{p.MPN, p.Barcode, p.Name} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return "<unnamed>"
}

type updateCandidate struct {
	draft    *Draft
	existing *catalog.Product
}

// Run is the state of one supplier import. It lives for one Import call.
type Run struct {
	Supplier   string
	Entry      Entry
	Mapping    FieldMapping
	Categories *CategoryIndex
	Brands     []catalog.Brand
	Counters   bulk.RunCounters
	Errors     *RecordErrors
	StartedAt  time.Time

	seen map[uuid.UUID]struct{}
}

func newRun(adapter Adapter, entry Entry, maxErrors int, now time.Time) *Run {
	return &Run{
		Supplier:  adapter.Name,
		Entry:     entry,
		Mapping:   adapter.Mapping,
		Errors:    NewRecordErrors(maxErrors),
		StartedAt: now,
		seen:      make(map[uuid.UUID]struct{}),
	}
}

// MarkSeen records that the feed carried the product this run.
func (r *Run) MarkSeen(id uuid.UUID) {
	r.seen[id] = struct{}{}
}

// Seen reports whether the feed carried the product this run.
func (r *Run) Seen(id uuid.UUID) bool {
	_, ok := r.seen[id]
	return ok
}

func (r *Run) fail(label, code string, err error) {
	r.Counters.Failed++
	r.Errors.Add(label, code, err)
}

// Summary reports a finished run.
func (r *Run) Summary(now time.Time) Summary {
	return Summary{
		Counters:    r.Counters,
		Errors:      r.Errors.Errors(),
		TotalErrors: r.Errors.TotalCount(),
		Duration:    now.Sub(r.StartedAt),
	}
}

// Result messages
const (
	MessageOK    = "ok"
	MessageError = "error"
)

// Summary holds the outcome counters of a run.
type Summary struct {
	Counters    bulk.RunCounters `json:"counters"`
	Errors      []RecordError    `json:"errors,omitempty"`
	TotalErrors int              `json:"total_errors"`
	Duration    time.Duration    `json:"duration"`
}

// Details converts the kept record errors for run history.
func (s Summary) Details() []bulk.ImportErrorDetail {
	out := make([]bulk.ImportErrorDetail, len(s.Errors))
	for i, e := range s.Errors {
		out[i] = bulk.ImportErrorDetail{Record: e.Record, Code: e.Code, Message: e.Message}
	}
	return out
}

// Result is what an import returns. Failures never escape as panics or
// errors; they are reported here.
type Result struct {
	Message string  `json:"message"`
	Error   string  `json:"error,omitempty"`
	Summary Summary `json:"summary"`
}

// OK reports whether the run finished.
func (r Result) OK() bool {
	return r.Message == MessageOK
}
