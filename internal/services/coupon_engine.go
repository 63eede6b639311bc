package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/utils"
)

// CouponEngine validates vendor-scoped coupons and computes discounts.
// Discounts are always computed against the pre-tax, pre-shipping cart
// subtotal, never against the GST-inclusive total.
type CouponEngine struct {
	db *gorm.DB
}

// NewCouponEngine constructs a CouponEngine.
func NewCouponEngine(db *gorm.DB) *CouponEngine {
	return &CouponEngine{db: db}
}

// WithTx returns an engine view bound to the given transaction.
func (e *CouponEngine) WithTx(tx *gorm.DB) *CouponEngine {
	return &CouponEngine{db: tx}
}

// LoadByCode fetches a coupon by its code.
func (e *CouponEngine) LoadByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := e.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: coupon %s", ErrNotFound, code)
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// LoadByCodeForUpdate locks the coupon row so the usage-limit check and the
// usage increment stay atomic within the caller's transaction.
func (e *CouponEngine) LoadByCodeForUpdate(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := lockForUpdate(e.db.WithContext(ctx)).Where("code = ?", code).First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: coupon %s", ErrNotFound, code)
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// Validate checks that the coupon is usable by the customer for the given
// cart subtotal.
func (e *CouponEngine) Validate(ctx context.Context, coupon *models.Coupon, customerID uuid.UUID, cartTotal float64) error {
	if !coupon.IsActive || !coupon.WithinWindow(time.Now()) {
		return fmt.Errorf("%w: coupon is not valid or expired", ErrValidation)
	}
	if coupon.UsageLimit > 0 && coupon.UsageCount >= coupon.UsageLimit {
		return fmt.Errorf("%w: coupon is not valid or expired", ErrValidation)
	}
	if !coupon.AssignedTo(customerID) {
		return fmt.Errorf("%w: this coupon is not available for you", ErrValidation)
	}
	if coupon.PerUserLimit > 0 {
		var used int64
		if err := e.db.WithContext(ctx).Model(&models.CouponUsage{}).
			Where("coupon_id = ? AND user_id = ?", coupon.ID, customerID).
			Count(&used).Error; err != nil {
			return err
		}
		if used >= int64(coupon.PerUserLimit) {
			return fmt.Errorf("%w: you have already used this coupon", ErrValidation)
		}
	}
	if cartTotal < coupon.MinimumOrderAmount {
		return fmt.Errorf("%w: minimum order amount is %s", ErrValidation, formatAmount(coupon.MinimumOrderAmount))
	}
	return nil
}

// CalculateDiscount computes the discount for the given cart subtotal,
// rounded to 2 decimal places and never exceeding the subtotal.
func (e *CouponEngine) CalculateDiscount(coupon *models.Coupon, cartTotal float64) float64 {
	var discount float64
	switch coupon.DiscountType {
	case models.DiscountTypePercentage:
		discount = cartTotal * coupon.DiscountValue / 100
		if coupon.MaxDiscount > 0 && discount > coupon.MaxDiscount {
			discount = coupon.MaxDiscount
		}
	case models.DiscountTypeFixed:
		discount = coupon.DiscountValue
	}
	if discount > cartTotal {
		discount = cartTotal
	}
	if discount < 0 {
		discount = 0
	}
	return utils.Round2(discount)
}

// CheckVendorAffinity rejects a coupon applied to a cart containing another
// vendor's items. Items whose vendor could not be resolved also reject.
func (e *CouponEngine) CheckVendorAffinity(coupon *models.Coupon, itemVendors []*uuid.UUID) error {
	for _, vendorID := range itemVendors {
		if vendorID == nil || *vendorID != coupon.VendorID {
			return fmt.Errorf("%w: coupon %s is not applicable to items from other vendors", ErrValidation, coupon.Code)
		}
	}
	return nil
}

// Consume appends a usage record and increments the running counter. Must run
// inside the transaction that persists the discounted order so usage and
// order commit or roll back together.
func (e *CouponEngine) Consume(ctx context.Context, coupon *models.Coupon, customerID, orderID uuid.UUID) error {
	usage := models.CouponUsage{
		CouponID: coupon.ID,
		UserID:   customerID,
		OrderID:  orderID,
		UsedAt:   time.Now(),
	}
	if err := e.db.WithContext(ctx).Create(&usage).Error; err != nil {
		return err
	}

	return e.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("id = ?", coupon.ID).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
}

// Available lists coupons the customer could apply right now, optionally
// narrowed to a vendor and checked against a known cart subtotal.
func (e *CouponEngine) Available(ctx context.Context, customerID uuid.UUID, vendorID *uuid.UUID, cartTotal *float64) ([]models.Coupon, error) {
	now := time.Now()
	q := e.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("is_active = ?", true).
		Where("start_date <= ? AND end_date >= ?", now, now)
	if vendorID != nil {
		q = q.Where("vendor_id = ?", *vendorID)
	}

	var coupons []models.Coupon
	if err := q.Order("created_at desc").Find(&coupons).Error; err != nil {
		return nil, err
	}

	usable := make([]models.Coupon, 0, len(coupons))
	for _, coupon := range coupons {
		if coupon.UsageLimit > 0 && coupon.UsageCount >= coupon.UsageLimit {
			continue
		}
		if !coupon.AssignedTo(customerID) {
			continue
		}
		if coupon.PerUserLimit > 0 {
			var used int64
			if err := e.db.WithContext(ctx).Model(&models.CouponUsage{}).
				Where("coupon_id = ? AND user_id = ?", coupon.ID, customerID).
				Count(&used).Error; err != nil {
				return nil, err
			}
			if used >= int64(coupon.PerUserLimit) {
				continue
			}
		}
		if cartTotal != nil && *cartTotal < coupon.MinimumOrderAmount {
			continue
		}
		usable = append(usable, coupon)
	}
	return usable, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
