package catalog

import (
	"regexp"
	"strings"
)

// ProductStatus is the derived stock state shown in the shop.
type ProductStatus string

const (
	StatusInStock      ProductStatus = "InStock"
	StatusMediumStock  ProductStatus = "MediumStock"
	StatusLowStock     ProductStatus = "LowStock"
	StatusBackorder    ProductStatus = "Backorder"
	StatusIsExpected   ProductStatus = "IsExpected"
	StatusAskForPrice  ProductStatus = "AskForPrice"
	StatusOutOfStock   ProductStatus = "OutOfStock"
	StatusDiscontinued ProductStatus = "Discontinued"
)

var statusRank = map[ProductStatus]int{
	StatusInStock:      7,
	StatusMediumStock:  6,
	StatusLowStock:     5,
	StatusBackorder:    4,
	StatusIsExpected:   3,
	StatusAskForPrice:  2,
	StatusOutOfStock:   1,
	StatusDiscontinued: 0,
}

// Rank orders statuses from most to least sellable. Unknown statuses rank -1.
func (s ProductStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// IsValid reports whether s is one of the known statuses.
func (s ProductStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsAvailable reports whether the product can be ordered for immediate shipping.
func (s ProductStatus) IsAvailable() bool {
	return s == StatusInStock || s == StatusMediumStock || s == StatusLowStock
}

// StatusFromQuantity maps a stock quantity onto the stock thresholds.
func StatusFromQuantity(qty int) ProductStatus {
	switch {
	case qty > 10:
		return StatusInStock
	case qty > 3:
		return StatusMediumStock
	default:
		return StatusLowStock
	}
}

// Exclusions is the list of brands and name terms that must never show a
// direct buy price.
type Exclusions struct {
	brands   map[string]struct{}
	patterns []*regexp.Regexp
}

// NewExclusions compiles the exclusion terms. Each term matches a brand name
// exactly (case-insensitive) or appears as a whole word in the product name.
func NewExclusions(terms ...string) Exclusions {
	ex := Exclusions{brands: make(map[string]struct{}, len(terms))}
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		ex.brands[strings.ToLower(term)] = struct{}{}
		// \b is ASCII only in RE2, so word boundaries are spelled out.
		ex.patterns = append(ex.patterns,
			regexp.MustCompile(`(?i)(^|[^\pL\pN])`+regexp.QuoteMeta(term)+`([^\pL\pN]|$)`))
	}
	return ex
}

// Matches reports whether brand or name hits an exclusion term.
func (e Exclusions) Matches(brand, name string) bool {
	if brand != "" {
		if _, ok := e.brands[strings.ToLower(strings.TrimSpace(brand))]; ok {
			return true
		}
	}
	if name == "" {
		return false
	}
	for _, re := range e.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// StatusInput carries everything the status derivation looks at.
type StatusInput struct {
	Current   ProductStatus
	Inventory int
	Suppliers []SupplierInfo
	BrandName string
	Name      string
}

// CalculateStatus derives the product status. It is the only place a status
// is computed; import code never assigns one directly.
func CalculateStatus(in StatusInput, exclusions Exclusions) ProductStatus {
	if in.Current == StatusDiscontinued {
		return StatusDiscontinued
	}

	status := availabilityStatus(in.Inventory, in.Suppliers)

	if status != StatusOutOfStock && status != StatusDiscontinued &&
		exclusions.Matches(in.BrandName, in.Name) {
		return StatusAskForPrice
	}
	return status
}

func availabilityStatus(inventory int, suppliers []SupplierInfo) ProductStatus {
	if inventory > 0 {
		return StatusFromQuantity(inventory)
	}

	best, found := bestSupplierStatus(suppliers, true)
	if found {
		return best
	}
	best, found = bestSupplierStatus(suppliers, false)
	if found {
		return best
	}
	return StatusOutOfStock
}

func bestSupplierStatus(suppliers []SupplierInfo, inStock bool) (ProductStatus, bool) {
	var best ProductStatus
	found := false
	for _, s := range suppliers {
		if s.InStock != inStock {
			continue
		}
		st := s.Status()
		if !found || st.Rank() > best.Rank() {
			best = st
			found = true
		}
	}
	return best, found
}
