package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/domain/shared"
	"github.com/eshop/backend/internal/infrastructure/config"
)

// mailSender is satisfied by *gomail.Dialer.
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

var digestTemplate = template.Must(template.New("digest").Parse(`<p>{{len .Items}} products are available again after the {{.Supplier}} import.</p>
<table cellpadding="4" border="1" style="border-collapse:collapse">
<tr><th>Product</th><th>MPN</th><th>Was</th><th>Now</th></tr>
{{range .Items}}<tr><td>{{.Name}}</td><td>{{.MPN}}</td><td>{{.OldStatus}}</td><td>{{.NewStatus}}</td></tr>
{{end}}</table>
`))

// BackInStockMailer collects back-in-stock events and mails one digest
// per finished import run.
type BackInStockMailer struct {
	sender     mailSender
	from       string
	recipients []string
	logger     *zap.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]*catalog.ProductBackInStockEvent
	order   []uuid.UUID
}

// NewBackInStockMailer creates a mailer sending through the SMTP server of cfg.
func NewBackInStockMailer(cfg config.MailConfig, logger *zap.Logger) (*BackInStockMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("mail host and from address are required")
	}
	if len(cfg.Recipients) == 0 {
		return nil, errors.New("mail recipients are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	dialer := gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password)
	return newBackInStockMailer(dialer, cfg.From, cfg.Recipients, logger), nil
}

func newBackInStockMailer(sender mailSender, from string, recipients []string, logger *zap.Logger) *BackInStockMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackInStockMailer{
		sender:     sender,
		from:       from,
		recipients: recipients,
		logger:     logger,
		pending:    make(map[uuid.UUID]*catalog.ProductBackInStockEvent),
	}
}

// Handle implements shared.EventHandler. A product reported twice keeps
// its latest status.
func (m *BackInStockMailer) Handle(_ context.Context, e shared.DomainEvent) error {
	ev, ok := e.(*catalog.ProductBackInStockEvent)
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.pending[ev.ProductID]; !seen {
		m.order = append(m.order, ev.ProductID)
	}
	m.pending[ev.ProductID] = ev
	return nil
}

// EventTypes implements shared.EventHandler.
func (m *BackInStockMailer) EventTypes() []string {
	return []string{catalog.EventTypeProductBackInStock}
}

// ObserveRun implements importapp.RunObserver: it mails what has been
// collected so far. Events still queued on the bus go into the next digest.
func (m *BackInStockMailer) ObserveRun(_ context.Context, supplier string, _ importapp.Result) {
	if err := m.Flush(supplier); err != nil {
		m.logger.Warn("back-in-stock digest not sent", zap.String("supplier", supplier), zap.Error(err))
	}
}

// Flush sends the pending digest. Nothing is sent when nothing is pending.
// On failure the events are kept for the next attempt.
func (m *BackInStockMailer) Flush(supplier string) error {
	m.mu.Lock()
	items := make([]*catalog.ProductBackInStockEvent, 0, len(m.order))
	for _, id := range m.order {
		items = append(items, m.pending[id])
	}
	m.mu.Unlock()
	if len(items) == 0 {
		return nil
	}

	var body bytes.Buffer
	if err := digestTemplate.Execute(&body, struct {
		Supplier string
		Items    []*catalog.ProductBackInStockEvent
	}{supplier, items}); err != nil {
		return fmt.Errorf("render digest: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.recipients...)
	msg.SetHeader("Subject", fmt.Sprintf("%d products back in stock (%s)", len(items), supplier))
	msg.SetBody("text/plain", plainDigest(items))
	msg.AddAlternative("text/html", body.String())

	if err := m.sender.DialAndSend(msg); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		if m.pending[it.ProductID] == it {
			delete(m.pending, it.ProductID)
		}
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.pending[id]; ok {
			kept = append(kept, id)
		}
	}
	m.order = kept
	m.logger.Info("back-in-stock digest sent", zap.String("supplier", supplier), zap.Int("products", len(items)))
	return nil
}

// Pending returns the number of products waiting for the next digest.
func (m *BackInStockMailer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func plainDigest(items []*catalog.ProductBackInStockEvent) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- %s", it.Name)
		if it.MPN != "" {
			fmt.Fprintf(&b, " (%s)", it.MPN)
		}
		fmt.Fprintf(&b, ": %s -> %s\n", it.OldStatus, it.NewStatus)
	}
	return b.String()
}

var (
	_ shared.EventHandler   = (*BackInStockMailer)(nil)
	_ importapp.RunObserver = (*BackInStockMailer)(nil)
)
