package models

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses form a linear happy path; cancellation is reachable from
// every non-terminal state. Delivered and cancelled are terminal.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

const (
	PaymentMethodCOD    = "cod"
	PaymentMethodOnline = "online"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

type Order struct {
	BaseModel
	UserID      uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	OrderNumber string    `gorm:"uniqueIndex" json:"order_number"`
	OrderStatus string    `gorm:"index" json:"order_status"`
	PlacedAt    time.Time `json:"placed_at"`

	VendorID            *uuid.UUID `gorm:"type:uuid;index" json:"vendor_id"`
	VendorServiceCityID *uuid.UUID `gorm:"type:uuid;index" json:"vendor_service_city_id"`

	PaymentMethod        string `json:"payment_method"`
	PaymentStatus        string `json:"payment_status"`
	PaymentTransactionID string `json:"payment_transaction_id"`

	// Denormalized snapshot of the delivery address at order time; later
	// address edits must not affect historical orders.
	DeliveryAddressID   *uuid.UUID `gorm:"type:uuid" json:"delivery_address_id"`
	DeliveryAddressLine string     `json:"delivery_address_line"`
	DeliveryApartment   string     `json:"delivery_apartment"`
	DeliveryCity        string     `json:"delivery_city"`
	DeliveryDistrict    string     `json:"delivery_district"`
	DeliveryPostalCode  string     `json:"delivery_postal_code"`

	CartTotal       float64    `json:"cart_total"`
	GSTAmount       float64    `json:"gst_amount"`
	ShippingCharges float64    `json:"shipping_charges"`
	CouponID        *uuid.UUID `gorm:"type:uuid" json:"coupon_id"`
	CouponCode      string     `json:"coupon_code"`
	CouponAmount    float64    `json:"coupon_amount"`
	TotalAmount     float64    `json:"total_amount"`

	Items []OrderItem `json:"items,omitempty"`
}

type OrderItem struct {
	BaseModel
	OrderID       uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	ProductID     *uuid.UUID `gorm:"type:uuid" json:"product_id"`
	ProductName   string     `json:"product_name"`
	ProductImage  string     `json:"product_image"`
	Quantity      int        `json:"quantity"`
	UnitPrice     float64    `json:"unit_price"`
	LineTotal     float64    `json:"line_total"`
	GSTPercentage float64    `json:"gst_percentage"`
	GSTAmount     float64    `json:"gst_amount"`
}

// IsTerminalStatus reports whether no further transitions are allowed.
func IsTerminalStatus(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}

// ValidOrderStatus reports whether s names a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether s names a known payment status.
func ValidPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}
