package catalog

import (
	"strings"
	"time"

	"github.com/eshop/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	// MaxImages caps the gallery of a product; the first image is the primary one.
	MaxImages = 6
	// maxPriceHistory bounds the per-supplier price history.
	maxPriceHistory = 30
)

// Characteristic is one technical specification row.
type Characteristic struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PricePoint records a supplier wholesale price at a moment in time.
type PricePoint struct {
	Price decimal.Decimal `json:"price"`
	At    time.Time       `json:"at"`
}

// SupplierInfo is the per-supplier availability and pricing of a product.
type SupplierInfo struct {
	Name              string          `json:"name"`
	SupplierProductID string          `json:"supplier_product_id,omitempty"`
	ProductURL        string          `json:"product_url,omitempty"`
	Wholesale         decimal.Decimal `json:"wholesale"`
	Quantity          int             `json:"quantity"`
	InStock           bool            `json:"in_stock"`
	TranslatedStatus  ProductStatus   `json:"translated_status,omitempty"`
	PriceHistory      []PricePoint    `json:"price_history,omitempty"`
}

// Status is the availability this supplier entry contributes.
// In-stock entries with a known quantity use the stock thresholds.
func (s SupplierInfo) Status() ProductStatus {
	if s.InStock {
		if s.Quantity > 0 {
			return StatusFromQuantity(s.Quantity)
		}
		if s.TranslatedStatus.IsAvailable() {
			return s.TranslatedStatus
		}
		return StatusInStock
	}
	if s.TranslatedStatus.IsValid() {
		return s.TranslatedStatus
	}
	return StatusOutOfStock
}

// Dimensions are package dimensions in millimeters.
type Dimensions struct {
	Length int `json:"length"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Product is the canonical catalog entry every supplier record is normalized into.
type Product struct {
	shared.BaseAggregateRoot
	Name             string          `gorm:"type:varchar(500);not null"`
	Slug             string          `gorm:"type:varchar(550);index"`
	MPN              string          `gorm:"column:mpn;type:varchar(100);index"`
	Barcode          string          `gorm:"type:varchar(50);index"`
	Model            string          `gorm:"type:varchar(100);index"`
	Wholesale        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	RetailPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	RecycleTax       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	InOffer          bool            `gorm:"not null;default:false"`
	Weight           *int
	Length           *int
	Width            *int
	Height           *int
	Description      string                              `gorm:"type:text"`
	ShortDescription string                              `gorm:"type:text"`
	Characteristics  datatypes.JSONSlice[Characteristic] `gorm:"not null"`
	Images           datatypes.JSONSlice[string]         `gorm:"not null"`
	CategoryID       *uuid.UUID                          `gorm:"type:uuid;index"`
	BrandID          *uuid.UUID                          `gorm:"type:uuid;index"`
	Status           ProductStatus                       `gorm:"type:varchar(20);not null;default:'OutOfStock'"`
	Inventory        int                                 `gorm:"not null;default:0"`
	SupplierInfo     datatypes.JSONSlice[SupplierInfo]   `gorm:"not null"`
	RelatedImports   datatypes.JSONSlice[string]         `gorm:"not null"`
	Published        bool                                `gorm:"not null;default:true"`
	// DeletedAt marks when the product stopped appearing in any feed.
	// It is a plain column, not a gorm soft delete.
	DeletedAt  *time.Time `gorm:"index"`
	IsArchived bool       `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a product from its identity fields. At least one of
// mpn or barcode is required.
func NewProduct(name, mpn, barcode string) (*Product, error) {
	p := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              strings.TrimSpace(name),
		MPN:               strings.TrimSpace(mpn),
		Barcode:           strings.TrimSpace(barcode),
		Status:            StatusOutOfStock,
		Published:         true,
	}
	if !p.HasIdentity() {
		return nil, shared.ErrMissingIdentity
	}
	if p.Name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	return p, nil
}

// HasIdentity reports whether the product carries an MPN or a barcode.
func (p *Product) HasIdentity() bool {
	return strings.TrimSpace(p.MPN) != "" || strings.TrimSpace(p.Barcode) != ""
}

// SetCharacteristics replaces the characteristics, dropping blank rows and
// later duplicates of a name (case-insensitive).
func (p *Product) SetCharacteristics(list []Characteristic) {
	p.Characteristics = datatypes.JSONSlice[Characteristic](DedupCharacteristics(list))
}

// DedupCharacteristics keeps the first row of each case-insensitive name.
func DedupCharacteristics(list []Characteristic) []Characteristic {
	seen := make(map[string]struct{}, len(list))
	out := make([]Characteristic, 0, len(list))
	for _, c := range list {
		name := strings.TrimSpace(c.Name)
		value := strings.TrimSpace(c.Value)
		if name == "" || value == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Characteristic{Name: name, Value: value})
	}
	return out
}

// SetImages replaces the gallery, capped to MaxImages.
func (p *Product) SetImages(urls []string) {
	out := make([]string, 0, MaxImages)
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if len(out) == MaxImages {
			break
		}
	}
	p.Images = datatypes.JSONSlice[string](out)
}

// PrimaryImage returns the first image or "".
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// SetDimensions stores package dimensions in millimeters.
func (p *Product) SetDimensions(d Dimensions) {
	l, w, h := d.Length, d.Width, d.Height
	p.Length, p.Width, p.Height = &l, &w, &h
}

// HasDimensions reports whether all three axes are known.
func (p *Product) HasDimensions() bool {
	return p.Length != nil && p.Width != nil && p.Height != nil
}

// SupplierEntry returns the entry for supplier, or nil.
func (p *Product) SupplierEntry(supplier string) *SupplierInfo {
	for i := range p.SupplierInfo {
		if strings.EqualFold(p.SupplierInfo[i].Name, supplier) {
			return &p.SupplierInfo[i]
		}
	}
	return nil
}

// UpsertSupplier inserts or refreshes the supplier entry. A price history
// point is appended whenever the wholesale price differs from the last one.
// It reports whether the supplier price changed.
func (p *Product) UpsertSupplier(info SupplierInfo, now time.Time) bool {
	existing := p.SupplierEntry(info.Name)
	if existing == nil {
		info.PriceHistory = []PricePoint{{Price: info.Wholesale, At: now}}
		p.SupplierInfo = append(p.SupplierInfo, info)
		return false
	}

	changed := !existing.Wholesale.Equal(info.Wholesale)
	history := existing.PriceHistory
	if changed || len(history) == 0 {
		history = append(history, PricePoint{Price: info.Wholesale, At: now})
		if len(history) > maxPriceHistory {
			history = history[len(history)-maxPriceHistory:]
		}
	}
	info.PriceHistory = history
	*existing = info
	return changed
}

// RemoveSupplier drops the supplier entry and the import link. It reports
// whether anything was removed.
func (p *Product) RemoveSupplier(supplier string) bool {
	removed := false
	kept := p.SupplierInfo[:0]
	for _, s := range p.SupplierInfo {
		if strings.EqualFold(s.Name, supplier) {
			removed = true
			continue
		}
		kept = append(kept, s)
	}
	p.SupplierInfo = kept

	links := p.RelatedImports[:0]
	for _, name := range p.RelatedImports {
		if strings.EqualFold(name, supplier) {
			removed = true
			continue
		}
		links = append(links, name)
	}
	p.RelatedImports = links
	return removed
}

// LinkImport records that supplier's feed carries this product.
func (p *Product) LinkImport(supplier string) {
	if p.IsLinkedTo(supplier) {
		return
	}
	p.RelatedImports = append(p.RelatedImports, supplier)
}

// IsLinkedTo reports whether supplier's feed carries this product.
func (p *Product) IsLinkedTo(supplier string) bool {
	for _, name := range p.RelatedImports {
		if strings.EqualFold(name, supplier) {
			return true
		}
	}
	return false
}

// BestWholesale returns the lowest in-stock supplier price, falling back to
// the lowest price overall. ok is false when no supplier has a price.
func (p *Product) BestWholesale() (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, pass := range []bool{true, false} {
		for _, s := range p.SupplierInfo {
			if pass && !s.InStock {
				continue
			}
			if !s.Wholesale.IsPositive() {
				continue
			}
			if !found || s.Wholesale.LessThan(best) {
				best = s.Wholesale
				found = true
			}
		}
		if found {
			return best, true
		}
	}
	return decimal.Zero, false
}

// MarkAbsent unpublishes a product no feed carries anymore.
func (p *Product) MarkAbsent(now time.Time) {
	if p.DeletedAt == nil {
		p.DeletedAt = &now
	}
	p.Published = false
}

// Republish clears the absent marker. It reports whether the product had been absent.
func (p *Product) Republish() bool {
	if p.DeletedAt == nil && p.Published {
		return false
	}
	p.DeletedAt = nil
	p.Published = true
	p.IsArchived = false
	return true
}

// RecalculateStatus derives the status from inventory, supplier entries and
// exclusions. It returns the previous status.
func (p *Product) RecalculateStatus(brandName string, exclusions Exclusions) ProductStatus {
	old := p.Status
	p.Status = CalculateStatus(StatusInput{
		Current:   p.Status,
		Inventory: p.Inventory,
		Suppliers: p.SupplierInfo,
		BrandName: brandName,
		Name:      p.Name,
	}, exclusions)
	return old
}

// Clone returns a deep copy suitable for handing out of a shared cache.
func (p *Product) Clone() *Product {
	c := *p
	c.Characteristics = append(datatypes.JSONSlice[Characteristic](nil), p.Characteristics...)
	c.Images = append(datatypes.JSONSlice[string](nil), p.Images...)
	c.RelatedImports = append(datatypes.JSONSlice[string](nil), p.RelatedImports...)
	c.SupplierInfo = make(datatypes.JSONSlice[SupplierInfo], len(p.SupplierInfo))
	for i, s := range p.SupplierInfo {
		s.PriceHistory = append([]PricePoint(nil), s.PriceHistory...)
		c.SupplierInfo[i] = s
	}
	c.Weight = cloneInt(p.Weight)
	c.Length = cloneInt(p.Length)
	c.Width = cloneInt(p.Width)
	c.Height = cloneInt(p.Height)
	if p.CategoryID != nil {
		id := *p.CategoryID
		c.CategoryID = &id
	}
	if p.BrandID != nil {
		id := *p.BrandID
		c.BrandID = &id
	}
	if p.DeletedAt != nil {
		t := *p.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
