package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// StockEntry is the sellable unit: a (product, vendor, city) triple with
// stock, pricing and tax rates. availableStock must never go negative; the
// ledger enforces this with a conditional decrement and the schema backs it
// with a CHECK constraint.
type StockEntry struct {
	BaseModel
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_stock_product_vendor_city" json:"product_id"`
	VendorID  uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_stock_product_vendor_city" json:"vendor_id"`
	CityID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_stock_product_vendor_city" json:"city_id"`

	AvailableStock       int `gorm:"check:available_stock >= 0" json:"available_stock"`
	MinimumOrderQuantity int `gorm:"default:1" json:"minimum_order_quantity"`

	Price      float64     `json:"price"`
	BulkPrices []PriceTier `gorm:"serializer:json" json:"bulk_prices"`

	GSTPercentage float64 `json:"gst_percentage"`
	CGST          float64 `json:"cgst"`
	SGST          float64 `json:"sgst"`
	IGST          float64 `json:"igst"`
}

// PriceTier prices the half-open quantity range [MinQty, MaxQty).
// MaxQty 0 means unbounded.
type PriceTier struct {
	MinQty int     `json:"min_qty"`
	MaxQty int     `json:"max_qty"`
	Price  float64 `json:"price"`
}

// PriceFor resolves the unit price for the given quantity, falling back to
// the flat price when no tier matches.
func (e *StockEntry) PriceFor(qty int) float64 {
	for _, tier := range e.BulkPrices {
		if qty >= tier.MinQty && (tier.MaxQty == 0 || qty < tier.MaxQty) {
			return tier.Price
		}
	}
	return e.Price
}

// ValidateTiers checks that bulk price tiers are strictly increasing and
// non-overlapping. Tiers must already be sorted by MinQty.
func (e *StockEntry) ValidateTiers() error {
	for i, tier := range e.BulkPrices {
		if tier.MinQty < 1 {
			return fmt.Errorf("tier %d: min_qty must be >= 1", i)
		}
		if tier.MaxQty != 0 && tier.MaxQty <= tier.MinQty {
			return fmt.Errorf("tier %d: max_qty must exceed min_qty", i)
		}
		if i == 0 {
			continue
		}
		prev := e.BulkPrices[i-1]
		if prev.MaxQty == 0 {
			return errors.New("only the last tier may be unbounded")
		}
		if tier.MinQty < prev.MaxQty {
			return fmt.Errorf("tier %d overlaps tier %d", i, i-1)
		}
	}
	return nil
}
