package notification

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/gomail.v2"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/config"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (s *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, m...)
	return nil
}

func testProduct(t *testing.T, name, mpn string) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(name, mpn, "")
	require.NoError(t, err)
	p.Status = catalog.StatusInStock
	return p
}

func render(t *testing.T, m *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestBackInStockMailer_DigestPerRun(t *testing.T) {
	sender := &fakeSender{}
	mailer := newBackInStockMailer(sender, "shop@example.com", []string{"buyers@example.com"}, zaptest.NewLogger(t))
	ctx := context.Background()

	mouse := testProduct(t, "Logitech M185", "910-002238")
	ssd := testProduct(t, "Samsung 980", "MZ-V8V500BW")
	require.NoError(t, mailer.Handle(ctx, catalog.NewProductBackInStockEvent(mouse, catalog.StatusOutOfStock)))
	require.NoError(t, mailer.Handle(ctx, catalog.NewProductBackInStockEvent(ssd, catalog.StatusIsExpected)))
	require.NoError(t, mailer.Handle(ctx, catalog.NewProductBackInStockEvent(mouse, catalog.StatusBackorder)))
	require.NoError(t, mailer.Handle(ctx, catalog.NewProductCreatedEvent(mouse, "cpi")), "other events are ignored")
	assert.Equal(t, 2, mailer.Pending())

	mailer.ObserveRun(ctx, "cpi", importapp.Result{Message: importapp.MessageOK})

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"shop@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"buyers@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"2 products back in stock (cpi)"}, msg.GetHeader("Subject"))
	raw := render(t, msg)
	assert.Contains(t, raw, "910-002238")
	assert.Contains(t, raw, "MZ-V8V500BW")
	assert.Contains(t, raw, string(catalog.StatusBackorder), "latest event of a product wins")
	assert.Zero(t, mailer.Pending())

	mailer.ObserveRun(ctx, "cpi", importapp.Result{Message: importapp.MessageOK})
	assert.Len(t, sender.sent, 1, "nothing pending, nothing sent")
}

func TestBackInStockMailer_KeepsEventsOnFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	mailer := newBackInStockMailer(sender, "shop@example.com", []string{"buyers@example.com"}, nil)
	ctx := context.Background()

	require.NoError(t, mailer.Handle(ctx, catalog.NewProductBackInStockEvent(testProduct(t, "Mouse", "M1"), catalog.StatusOutOfStock)))
	err := mailer.Flush("westnet")
	require.Error(t, err)
	assert.Equal(t, 1, mailer.Pending())

	sender.err = nil
	require.NoError(t, mailer.Flush("westnet"))
	assert.Len(t, sender.sent, 1)
	assert.Zero(t, mailer.Pending())
}

func TestNewBackInStockMailer_Validation(t *testing.T) {
	_, err := NewBackInStockMailer(config.MailConfig{From: "a@b.c", Recipients: []string{"x@y.z"}}, nil)
	assert.Error(t, err)
	_, err = NewBackInStockMailer(config.MailConfig{Host: "smtp", From: "a@b.c"}, nil)
	assert.Error(t, err)

	m, err := NewBackInStockMailer(config.MailConfig{Host: "smtp", From: "a@b.c", Recipients: []string{"x@y.z"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{catalog.EventTypeProductBackInStock}, m.EventTypes())
}
