package domain

import (
	"strings"
)

// CatalogueProduct represents one product in the operator's own catalogue.
// It is immutable for the duration of a pricing run.
type CatalogueProduct struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Brand        string  `json:"brand,omitempty"`
	Category     string  `json:"category,omitempty"`
	Fingerprint  string  `json:"fingerprint"`
	CurrentPrice float64 `json:"currentPrice"`
	Cost         float64 `json:"cost"`
	Currency     string  `json:"currency"`
	SizeValue    float64 `json:"sizeValue,omitempty"` // grams or millilitres, 0 when unknown
	SizeUnit     string  `json:"sizeUnit,omitempty"`
}

// Validate checks the invariants catalogue ingestion is required to uphold.
func (p *CatalogueProduct) Validate() error {
	if p.ID == "" {
		return ErrInvalidProduct
	}
	if strings.TrimSpace(p.Fingerprint) == "" {
		return ErrInvalidProduct
	}
	if p.Cost < 0 {
		return ErrInvalidProduct
	}
	return nil
}

// ProductQuery is what a store adapter receives when searching for
// competitor listings of a catalogue product.
type ProductQuery struct {
	ProductID string `json:"productId"`
	Query     string `json:"query"`
	Brand     string `json:"brand,omitempty"`
}
