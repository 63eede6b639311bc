package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/utils"
)

func TestCreateOrder_ComputesBilling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.customer, f.createInput(f.cartItem(3, 10)))
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.OrderStatus)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, 30.0, order.CartTotal)
	assert.Equal(t, 1.5, order.GSTAmount)
	assert.Equal(t, 0.0, order.ShippingCharges)
	assert.Equal(t, 31.5, order.TotalAmount)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, 30.0, item.LineTotal)
	assert.Equal(t, 5.0, item.GSTPercentage)
	assert.Equal(t, 1.5, item.GSTAmount)

	// Vendor scope resolved from the stock entry and the address city.
	require.NotNil(t, order.VendorID)
	assert.Equal(t, f.vendor.ID, *order.VendorID)
	require.NotNil(t, order.VendorServiceCityID)
	assert.Equal(t, f.city.ID, *order.VendorServiceCityID)

	// Address is snapshotted, not referenced.
	assert.Equal(t, "14 MG Road", order.DeliveryAddressLine)
	assert.Equal(t, "Pune", order.DeliveryCity)

	// Creation never touches stock.
	assert.Equal(t, 10, f.stockOf(t))
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateOrderInput)
	}{
		{name: "bad payment method", mutate: func(in *CreateOrderInput) { in.PaymentMethod = "barter" }},
		{name: "empty cart", mutate: func(in *CreateOrderInput) { in.Items = nil }},
		{name: "zero quantity", mutate: func(in *CreateOrderInput) { in.Items[0].Quantity = 0 }},
		{name: "negative price", mutate: func(in *CreateOrderInput) { in.Items[0].UnitPrice = -1 }},
		{name: "missing address", mutate: func(in *CreateOrderInput) { in.AddressID = uuid.Nil }},
		{name: "negative shipping", mutate: func(in *CreateOrderInput) { in.ShippingCharges = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.createInput(f.cartItem(1, 10))
			tt.mutate(&in)

			_, err := f.svc.CreateOrder(ctx, f.customer, in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateOrder_AddressMustBelongToCustomer(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), f.createInput(f.cartItem(1, 10)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateOrder_OnlinePaymentWithTransactionCompletes(t *testing.T) {
	f := newFixture(t)

	in := f.createInput(f.cartItem(1, 10))
	in.PaymentMethod = models.PaymentMethodOnline
	in.PaymentTransactionID = "txn-941"

	order, err := f.svc.CreateOrder(context.Background(), f.customer, in)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, order.PaymentStatus)
}

func TestCreateOrder_UnknownCouponCodeIsIgnored(t *testing.T) {
	f := newFixture(t)

	in := f.createInput(f.cartItem(3, 10))
	in.CouponCode = "NO-SUCH-CODE"

	order, err := f.svc.CreateOrder(context.Background(), f.customer, in)
	require.NoError(t, err)
	assert.Nil(t, order.CouponID)
	assert.Equal(t, 0.0, order.CouponAmount)
	assert.Equal(t, 31.5, order.TotalAmount)
}

func TestCreateOrder_InvalidCouponFailsOrder(t *testing.T) {
	f := newFixture(t)
	f.seedCoupon(t, func(c *models.Coupon) { c.IsActive = false })

	in := f.createInput(f.cartItem(3, 10))
	in.CouponCode = "SAVE10"

	_, err := f.svc.CreateOrder(context.Background(), f.customer, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count, "no partial order should be visible on failure")
}

func TestCreateOrder_MinimumOrderAmount(t *testing.T) {
	f := newFixture(t)
	f.seedCoupon(t, func(c *models.Coupon) { c.MinimumOrderAmount = 100 })

	in := f.createInput(f.cartItem(8, 10)) // subtotal 80
	in.CouponCode = "SAVE10"

	_, err := f.svc.CreateOrder(context.Background(), f.customer, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "minimum order amount is 100")
}

func TestCreateOrder_FixedCouponClampsToSubtotal(t *testing.T) {
	f := newFixture(t)
	f.seedCoupon(t, func(c *models.Coupon) {
		c.DiscountType = models.DiscountTypeFixed
		c.DiscountValue = 50
	})

	in := f.createInput(f.cartItem(3, 10)) // subtotal 30, gst 1.5
	in.CouponCode = "SAVE10"

	order, err := f.svc.CreateOrder(context.Background(), f.customer, in)
	require.NoError(t, err)
	assert.Equal(t, 30.0, order.CouponAmount)
	assert.Equal(t, 1.5, order.TotalAmount)
	assert.GreaterOrEqual(t, order.TotalAmount, 0.0)
}

func TestCreateOrder_PercentageCouponRespectsCap(t *testing.T) {
	f := newFixture(t)
	f.seedCoupon(t, func(c *models.Coupon) {
		c.DiscountValue = 50
		c.MaxDiscount = 5
	})

	in := f.createInput(f.cartItem(3, 10))
	in.CouponCode = "SAVE10"

	order, err := f.svc.CreateOrder(context.Background(), f.customer, in)
	require.NoError(t, err)
	assert.Equal(t, 5.0, order.CouponAmount)
	assert.Equal(t, 26.5, order.TotalAmount)
}

func TestCreateOrder_CouponUsageLedgerStaysConsistent(t *testing.T) {
	f := newFixture(t)
	coupon := f.seedCoupon(t, nil)

	in := f.createInput(f.cartItem(3, 10))
	in.CouponCode = coupon.Code

	order, err := f.svc.CreateOrder(context.Background(), f.customer, in)
	require.NoError(t, err)
	require.NotNil(t, order.CouponID)

	var reloaded models.Coupon
	require.NoError(t, f.db.Preload("Usages").First(&reloaded, "id = ?", coupon.ID).Error)
	assert.Equal(t, 1, reloaded.UsageCount)
	require.Len(t, reloaded.Usages, 1)
	assert.Equal(t, reloaded.UsageCount, len(reloaded.Usages))
	assert.Equal(t, order.ID, reloaded.Usages[0].OrderID)
	assert.Equal(t, f.customer, reloaded.Usages[0].UserID)
}

func TestCreateOrder_CouponOverUsageLimitRejected(t *testing.T) {
	f := newFixture(t)
	f.seedCoupon(t, func(c *models.Coupon) {
		c.UsageLimit = 1
		c.UsageCount = 1
	})

	in := f.createInput(f.cartItem(3, 10))
	in.CouponCode = "SAVE10"

	_, err := f.svc.CreateOrder(context.Background(), f.customer, in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid or expired")
}

func TestCreateOrder_CouponVendorAffinity(t *testing.T) {
	f := newFixture(t)

	other := models.Vendor{Name: "Other Mart", IsActive: true}
	require.NoError(t, f.db.Create(&other).Error)
	f.seedCoupon(t, func(c *models.Coupon) { c.VendorID = other.ID })

	in := f.createInput(f.cartItem(3, 10))
	in.CouponCode = "SAVE10"

	_, err := f.svc.CreateOrder(context.Background(), f.customer, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "other vendors")
}

func TestCreateOrder_OrderNumbersAreUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		order, err := f.svc.CreateOrder(ctx, f.customer, f.createInput(f.cartItem(1, 10)))
		require.NoError(t, err)
		assert.False(t, seen[order.OrderNumber], "duplicate order number %s", order.OrderNumber)
		seen[order.OrderNumber] = true
	}
}

func TestTransition_ConfirmReservesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.customer, f.createInput(f.cartItem(3, 10)))
	require.NoError(t, err)

	updated, err := f.svc.Transition(ctx, order.ID, f.vendorActor(), models.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, updated.OrderStatus)
	assert.Equal(t, 7, f.stockOf(t))
}

func TestTransition_InsufficientStockAbortsWhole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Model(&models.StockEntry{}).
		Where("id = ?", f.entry.ID).Update("available_stock", 3).Error)

	order, err := f.svc.CreateOrder(ctx, f.customer, f.createInput(f.cartItem(5, 10)))
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, order.ID, f.vendorActor(), models.OrderStatusConfirmed)
	require.Error(t, err)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, f.product.ID, stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 5, stockErr.Required)

	// Nothing moved, nothing transitioned.
	assert.Equal(t, 3, f.stockOf(t))
	var reloaded models.Order
	require.NoError(t, f.db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, reloaded.OrderStatus)
}

func TestTransition_CancelConfirmedRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := f.createInput(f.cartItem(4, 10))
	in.PaymentMethod = models.PaymentMethodOnline
	in.PaymentTransactionID = "txn-1"

	order, err := f.svc.CreateOrder(ctx, f.customer, in)
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, order.ID, f.vendorActor(), models.OrderStatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, 6, f.stockOf(t))

	cancelled, err := f.svc.Transition(ctx, order.ID, f.vendorActor(), models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.OrderStatus)
	assert.Equal(t, 10, f.stockOf(t), "reserved stock restored exactly")
	assert.Equal(t, models.PaymentStatusRefunded, cancelled.PaymentStatus)
}

func TestTransition_CancelPendingLeavesStockAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.customer, f.createInput(f.cartItem(2, 10)))
	require.NoError(t, err)

	cancelled, err := f.svc.Transition(ctx, order.ID, f.customerActor(), models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.OrderStatus)
	assert.Equal(t, 10, f.stockOf(t))
}

func TestTransition_TerminalStatesAreFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.customer, f.createInput(f.cartItem(1, 10)))
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, order.ID, f.customerActor(), models.OrderStatusCancelled)
	require.NoError(t, err)

	// Cancelling twice is rejected, not re-executed.
	_, err = f.svc.Transition(ctx, order.ID, f.customerActor(), models.OrderStatusCancelled)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTerminalState)

	delivered, err := f.svc.CreateOrder(ctx, f.customer, f.createInput(f.cartItem(1, 10)))
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, delivered.ID, f.vendorActor(), models.OrderStatusConfirmed)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, delivered.ID, f.vendorActor(), models.OrderStatusDelivered)
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, delivered.ID, f.vendorActor(), models.OrderStatusCancelled)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTerminalState)
}

func TestTransition_VendorScopeEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.customer, f.createInput(f.cartItem(1, 10)))
	require.NoError(t, err)

	otherVendor := uuid.New()
	actor := f.vendorActor()
	actor.VendorID = &otherVendor

	_, err = f.svc.Transition(ctx, order.ID, actor, models.OrderStatusConfirmed)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestTransition_CustomerMayOnlyCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.customer, f.createInput(f.cartItem(1, 10)))
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, order.ID, f.customerActor(), models.OrderStatusConfirmed)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)

	// Another customer cannot even see the order.
	stranger := utils.Principal{UserID: uuid.New(), Role: utils.RoleCustomer}
	_, err = f.svc.Transition(ctx, order.ID, stranger, models.OrderStatusCancelled)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateItems_RecomputesBilling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.customer, f.createInput(f.cartItem(3, 10)))
	require.NoError(t, err)

	updated, err := f.svc.UpdateItems(ctx, order.ID, f.vendorActor(), []CartItemInput{f.cartItem(2, 15)})
	require.NoError(t, err)

	assert.Equal(t, 30.0, updated.CartTotal)
	assert.Equal(t, 1.5, updated.GSTAmount)
	assert.Equal(t, 31.5, updated.TotalAmount)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, 2, updated.Items[0].Quantity)

	// Item edits never move stock.
	assert.Equal(t, 10, f.stockOf(t))
}

func TestUpdateItems_RejectedAfterDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.customer, f.createInput(f.cartItem(1, 10)))
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, order.ID, f.vendorActor(), models.OrderStatusConfirmed)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, order.ID, f.vendorActor(), models.OrderStatusDelivered)
	require.NoError(t, err)

	_, err = f.svc.UpdateItems(ctx, order.ID, f.vendorActor(), []CartItemInput{f.cartItem(2, 10)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTerminalState)
}

func TestUpdatePaymentStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.customer, f.createInput(f.cartItem(1, 10)))
	require.NoError(t, err)

	updated, err := f.svc.UpdatePaymentStatus(ctx, order.ID, f.vendorActor(), models.PaymentStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, updated.PaymentStatus)

	_, err = f.svc.UpdatePaymentStatus(ctx, order.ID, f.vendorActor(), "voided")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}
