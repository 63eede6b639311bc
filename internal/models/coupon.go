package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Coupon is a vendor-scoped discount rule. A coupon is redeemable only
// against its owning vendor's line items.
type Coupon struct {
	BaseModel
	VendorID           uuid.UUID `gorm:"type:uuid;index" json:"vendor_id"`
	Code               string    `gorm:"uniqueIndex" json:"code"`
	DiscountType       string    `json:"discount_type"`
	DiscountValue      float64   `json:"discount_value"`
	MaxDiscount        float64   `json:"max_discount"`
	MinimumOrderAmount float64   `json:"minimum_order_amount"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	UsageLimit         int       `json:"usage_limit"`    // 0 = unlimited
	PerUserLimit       int       `json:"per_user_limit"` // 0 = unlimited
	IsActive           bool      `json:"is_active"`

	// Empty means open to all customers.
	AssignedCustomers []string `gorm:"serializer:json" json:"assigned_customers"`

	// UsageCount must always equal the number of Usages rows; both are
	// written in the same transaction that persists the discounted order.
	UsageCount int           `json:"usage_count"`
	Usages     []CouponUsage `json:"used_by,omitempty"`
}

type CouponUsage struct {
	BaseModel
	CouponID uuid.UUID `gorm:"type:uuid;index" json:"coupon_id"`
	UserID   uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	OrderID  uuid.UUID `gorm:"type:uuid" json:"order_id"`
	UsedAt   time.Time `json:"used_at"`
}

// AssignedTo reports whether the coupon is open to the given customer.
func (c *Coupon) AssignedTo(userID uuid.UUID) bool {
	if len(c.AssignedCustomers) == 0 {
		return true
	}
	id := userID.String()
	for _, assigned := range c.AssignedCustomers {
		if assigned == id {
			return true
		}
	}
	return false
}

// WithinWindow reports whether now falls inside the validity window.
func (c *Coupon) WithinWindow(now time.Time) bool {
	if now.Before(c.StartDate) {
		return false
	}
	return !now.After(c.EndDate)
}
