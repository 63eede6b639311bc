package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/models"
)

// StockLedger owns per-(product, vendor, city) available quantity. Reserve is
// a single conditional decrement, so two racing confirmations can never
// overdraw the same entry.
type StockLedger struct {
	db *gorm.DB
}

// NewStockLedger constructs a ledger over the given database handle.
func NewStockLedger(db *gorm.DB) *StockLedger {
	return &StockLedger{db: db}
}

// WithTx returns a ledger view bound to the given transaction.
func (l *StockLedger) WithTx(tx *gorm.DB) *StockLedger {
	return &StockLedger{db: tx}
}

// Reserve decrements available stock for the exact triple, failing with
// InsufficientStockError when fewer than quantity units remain.
func (l *StockLedger) Reserve(ctx context.Context, productID, vendorID, cityID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}

	res := l.db.WithContext(ctx).Model(&models.StockEntry{}).
		Where("product_id = ? AND vendor_id = ? AND city_id = ? AND available_stock >= ?",
			productID, vendorID, cityID, quantity).
		UpdateColumn("available_stock", gorm.Expr("available_stock - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var entry models.StockEntry
	err := l.db.WithContext(ctx).
		Where("product_id = ? AND vendor_id = ? AND city_id = ?", productID, vendorID, cityID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &InsufficientStockError{ProductID: productID, Available: 0, Required: quantity}
	}
	if err != nil {
		return err
	}
	return &InsufficientStockError{ProductID: productID, Available: entry.AvailableStock, Required: quantity}
}

// Release restores previously reserved units.
func (l *StockLedger) Release(ctx context.Context, productID, vendorID, cityID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}

	res := l.db.WithContext(ctx).Model(&models.StockEntry{}).
		Where("product_id = ? AND vendor_id = ? AND city_id = ?", productID, vendorID, cityID).
		UpdateColumn("available_stock", gorm.Expr("available_stock + ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: stock entry for product %s", ErrNotFound, productID)
	}
	return nil
}

// Lookup returns the stock entry for the exact triple.
func (l *StockLedger) Lookup(ctx context.Context, productID, vendorID, cityID uuid.UUID) (*models.StockEntry, error) {
	var entry models.StockEntry
	err := l.db.WithContext(ctx).
		Where("product_id = ? AND vendor_id = ? AND city_id = ?", productID, vendorID, cityID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: stock entry for product %s", ErrNotFound, productID)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// LookupByProduct returns any stock entry selling the product, used to find
// its owning vendor when the cart carries no explicit vendor.
func (l *StockLedger) LookupByProduct(ctx context.Context, productID uuid.UUID) (*models.StockEntry, error) {
	var entry models.StockEntry
	err := l.db.WithContext(ctx).Where("product_id = ?", productID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: stock entry for product %s", ErrNotFound, productID)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
