package catalog

import (
	"github.com/eshop/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeProduct is the aggregate type of product events.
const AggregateTypeProduct = "Product"

// Event type constants
const (
	EventTypeProductCreated      = "ProductCreated"
	EventTypeProductBackInStock  = "ProductBackInStock"
	EventTypeProductPriceChanged = "ProductPriceChanged"
	EventTypeProductUnlinked     = "ProductUnlinked"
)

// ProductCreatedEvent is published when an import creates a product.
type ProductCreatedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID     `json:"product_id"`
	Name      string        `json:"name"`
	MPN       string        `json:"mpn,omitempty"`
	Barcode   string        `json:"barcode,omitempty"`
	Supplier  string        `json:"supplier"`
	Status    ProductStatus `json:"status"`
}

// NewProductCreatedEvent creates a new ProductCreatedEvent
func NewProductCreatedEvent(p *Product, supplier string) *ProductCreatedEvent {
	return &ProductCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductCreated, AggregateTypeProduct, p.ID),
		ProductID:       p.ID,
		Name:            p.Name,
		MPN:             p.MPN,
		Barcode:         p.Barcode,
		Supplier:        supplier,
		Status:          p.Status,
	}
}

// ProductBackInStockEvent is published when a product becomes orderable again.
type ProductBackInStockEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID     `json:"product_id"`
	Name      string        `json:"name"`
	MPN       string        `json:"mpn,omitempty"`
	OldStatus ProductStatus `json:"old_status"`
	NewStatus ProductStatus `json:"new_status"`
}

// NewProductBackInStockEvent creates a new ProductBackInStockEvent
func NewProductBackInStockEvent(p *Product, old ProductStatus) *ProductBackInStockEvent {
	return &ProductBackInStockEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductBackInStock, AggregateTypeProduct, p.ID),
		ProductID:       p.ID,
		Name:            p.Name,
		MPN:             p.MPN,
		OldStatus:       old,
		NewStatus:       p.Status,
	}
}

// ProductPriceChangedEvent is published when the product wholesale price moves.
type ProductPriceChangedEvent struct {
	shared.BaseDomainEvent
	ProductID    uuid.UUID       `json:"product_id"`
	Name         string          `json:"name"`
	OldWholesale decimal.Decimal `json:"old_wholesale"`
	NewWholesale decimal.Decimal `json:"new_wholesale"`
}

// NewProductPriceChangedEvent creates a new ProductPriceChangedEvent
func NewProductPriceChangedEvent(p *Product, old decimal.Decimal) *ProductPriceChangedEvent {
	return &ProductPriceChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductPriceChanged, AggregateTypeProduct, p.ID),
		ProductID:       p.ID,
		Name:            p.Name,
		OldWholesale:    old,
		NewWholesale:    p.Wholesale,
	}
}

// ProductUnlinkedEvent is published when a supplier stops carrying a product.
type ProductUnlinkedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Supplier  string    `json:"supplier"`
	// Absent is true when no supplier carries the product anymore.
	Absent bool `json:"absent"`
}

// NewProductUnlinkedEvent creates a new ProductUnlinkedEvent
func NewProductUnlinkedEvent(p *Product, supplier string) *ProductUnlinkedEvent {
	return &ProductUnlinkedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductUnlinked, AggregateTypeProduct, p.ID),
		ProductID:       p.ID,
		Name:            p.Name,
		Supplier:        supplier,
		Absent:          p.DeletedAt != nil,
	}
}
