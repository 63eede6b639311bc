package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/models"
)

// VendorScope identifies the vendor and service city an order is fulfilled
// from. Resolution is best-effort: a nil scope leaves the order unscoped and
// invisible to vendor-facing views, which must handle that case explicitly.
type VendorScope struct {
	VendorID uuid.UUID
	CityID   *uuid.UUID
}

// VendorResolver determines the owning vendor and matching service city for
// a cart and delivery address.
type VendorResolver struct {
	db *gorm.DB
}

// NewVendorResolver constructs a VendorResolver.
func NewVendorResolver(db *gorm.DB) *VendorResolver {
	return &VendorResolver{db: db}
}

// WithTx returns a resolver view bound to the given transaction.
func (r *VendorResolver) WithTx(tx *gorm.DB) *VendorResolver {
	return &VendorResolver{db: tx}
}

// Resolve returns the vendor scope for the cart, or nil when no vendor can
// be determined. Explicit vendor ids on the line items win; otherwise the
// first item's stock entry names the vendor and the delivery city picks the
// service city, falling back to the stock entry's own city.
func (r *VendorResolver) Resolve(ctx context.Context, items []CartItemInput, address *models.UserAddress) (*VendorScope, error) {
	if len(items) == 0 {
		return nil, nil
	}

	if scope := explicitScope(items); scope != nil {
		return scope, nil
	}

	var entry models.StockEntry
	err := r.db.WithContext(ctx).Where("product_id = ?", items[0].ProductID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	scope := &VendorScope{VendorID: entry.VendorID}

	if address != nil && address.City != "" {
		var cities []models.VendorServiceCity
		if err := r.db.WithContext(ctx).
			Where("vendor_id = ? AND is_active = ?", entry.VendorID, true).
			Find(&cities).Error; err != nil {
			return nil, err
		}
		for i := range cities {
			if strings.EqualFold(cities[i].Name, address.City) || strings.EqualFold(cities[i].DisplayName, address.City) {
				cityID := cities[i].ID
				scope.CityID = &cityID
				break
			}
		}
	}

	if scope.CityID == nil {
		cityID := entry.CityID
		scope.CityID = &cityID
	}

	return scope, nil
}

// explicitScope uses line-item vendor ids when every item carries one and
// they agree.
func explicitScope(items []CartItemInput) *VendorScope {
	first := items[0].VendorID
	if first == nil {
		return nil
	}
	for i := range items {
		if items[i].VendorID == nil || *items[i].VendorID != *first {
			return nil
		}
	}

	scope := &VendorScope{VendorID: *first}
	if items[0].CityID != nil {
		cityID := *items[0].CityID
		scope.CityID = &cityID
	}
	return scope
}
