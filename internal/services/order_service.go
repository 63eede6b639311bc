package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/utils"
)

const maxOrderNumberAttempts = 5

// OrderService orchestrates order creation and the order status state
// machine. All multi-row mutations (coupon usage, stock moves, the order row
// itself) run inside a single transaction.
type OrderService struct {
	db       *gorm.DB
	resolver *VendorResolver
	coupons  *CouponEngine
	ledger   *StockLedger
	notifier NotificationDispatcher
}

// NewOrderService constructs an OrderService.
func NewOrderService(db *gorm.DB, resolver *VendorResolver, coupons *CouponEngine, ledger *StockLedger, notifier NotificationDispatcher) *OrderService {
	return &OrderService{db: db, resolver: resolver, coupons: coupons, ledger: ledger, notifier: notifier}
}

// CartItemInput is one cart line as submitted by the caller. VendorID and
// CityID are optional hints; when absent the resolver supplies the scope.
type CartItemInput struct {
	ProductID    uuid.UUID
	VendorID     *uuid.UUID
	CityID       *uuid.UUID
	ProductName  string
	ProductImage string
	Quantity     int
	UnitPrice    float64
}

// CreateOrderInput carries everything needed to place an order.
type CreateOrderInput struct {
	AddressID            uuid.UUID
	PaymentMethod        string
	PaymentTransactionID string
	ShippingCharges      float64
	CouponCode           string
	Items                []CartItemInput
}

// CreateOrder places an order for the customer: resolves the vendor scope,
// computes per-item GST, applies an optional coupon, aggregates billing and
// persists the order with a unique order number. Stock is not touched here;
// reservation happens on the confirmed transition.
func (s *OrderService) CreateOrder(ctx context.Context, customerID uuid.UUID, in CreateOrderInput) (*models.Order, error) {
	if in.PaymentMethod != models.PaymentMethodCOD && in.PaymentMethod != models.PaymentMethodOnline {
		return nil, fmt.Errorf("%w: payment method must be cod or online", ErrValidation)
	}
	if in.AddressID == uuid.Nil {
		return nil, fmt.Errorf("%w: address_id required", ErrValidation)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: cart items required", ErrValidation)
	}
	if in.ShippingCharges < 0 {
		return nil, fmt.Errorf("%w: shipping charges must be >= 0", ErrValidation)
	}
	for i := range in.Items {
		if in.Items[i].ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: product_id required", ErrValidation)
		}
		if in.Items[i].Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
		}
		if in.Items[i].UnitPrice < 0 {
			return nil, fmt.Errorf("%w: price must be >= 0", ErrValidation)
		}
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var address models.UserAddress
		if err := tx.First(&address, "id = ? AND user_id = ?", in.AddressID, customerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: address", ErrNotFound)
			}
			return err
		}

		scope, err := s.resolver.WithTx(tx).Resolve(ctx, in.Items, &address)
		if err != nil {
			return err
		}

		items, itemVendors, err := s.buildItems(ctx, tx, in.Items, scope)
		if err != nil {
			return err
		}

		var cartTotal, gstTotal float64
		for i := range items {
			cartTotal += items[i].LineTotal
			gstTotal += items[i].GSTAmount
		}
		cartTotal = utils.Round2(cartTotal)
		gstTotal = utils.Round2(gstTotal)

		o := &models.Order{
			UserID:               customerID,
			OrderStatus:          models.OrderStatusPending,
			PlacedAt:             time.Now(),
			PaymentMethod:        in.PaymentMethod,
			PaymentStatus:        models.PaymentStatusPending,
			PaymentTransactionID: in.PaymentTransactionID,
			DeliveryAddressID:    &address.ID,
			DeliveryAddressLine:  address.AddressLine,
			DeliveryApartment:    address.Apartment,
			DeliveryCity:         address.City,
			DeliveryDistrict:     address.District,
			DeliveryPostalCode:   address.PostalCode,
			CartTotal:            cartTotal,
			GSTAmount:            gstTotal,
			ShippingCharges:      in.ShippingCharges,
			Items:                items,
		}
		if scope != nil {
			vendorID := scope.VendorID
			o.VendorID = &vendorID
			o.VendorServiceCityID = scope.CityID
		}
		if in.PaymentMethod == models.PaymentMethodOnline && in.PaymentTransactionID != "" {
			// Gateway confirmation is external; a supplied transaction id
			// means the payment already completed.
			o.PaymentStatus = models.PaymentStatusCompleted
		}

		var coupon *models.Coupon
		if in.CouponCode != "" {
			coupon, err = s.coupons.WithTx(tx).LoadByCodeForUpdate(ctx, in.CouponCode)
			switch {
			case errors.Is(err, ErrNotFound):
				// Unknown codes are ignored and the order proceeds without a
				// discount. A known-but-invalid coupon fails the whole order.
				coupon = nil
			case err != nil:
				return err
			default:
				if err := s.coupons.CheckVendorAffinity(coupon, itemVendors); err != nil {
					return err
				}
				if err := s.coupons.WithTx(tx).Validate(ctx, coupon, customerID, cartTotal); err != nil {
					return err
				}
				o.CouponID = &coupon.ID
				o.CouponCode = coupon.Code
				o.CouponAmount = s.coupons.CalculateDiscount(coupon, cartTotal)
			}
		}

		total := cartTotal + gstTotal + in.ShippingCharges - o.CouponAmount
		if total < 0 {
			total = 0
		}
		o.TotalAmount = utils.Round2(total)

		number, err := s.uniqueOrderNumber(ctx, tx)
		if err != nil {
			return err
		}
		o.OrderNumber = number

		if err := tx.Create(o).Error; err != nil {
			return err
		}

		if coupon != nil {
			if err := s.coupons.WithTx(tx).Consume(ctx, coupon, customerID, o.ID); err != nil {
				return err
			}
		}

		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	data := map[string]string{"order_id": order.ID.String(), "order_number": order.OrderNumber}
	go s.notifier.Notify(context.Background(), order.UserID, "Order placed",
		fmt.Sprintf("Your order %s has been placed", order.OrderNumber), data)
	if order.VendorID != nil {
		go s.notifier.Notify(context.Background(), *order.VendorID, "New order",
			fmt.Sprintf("Order %s is awaiting confirmation", order.OrderNumber), data)
	}

	return order, nil
}

// Transition moves an order to newStatus, applying the stock side effects of
// the state machine. Vendors may only transition orders scoped to their own
// vendor id; customers may only cancel their own orders.
func (s *OrderService) Transition(ctx context.Context, orderID uuid.UUID, actor utils.Principal, newStatus string) (*models.Order, error) {
	if !models.ValidOrderStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrValidation, newStatus)
	}
	if newStatus == models.OrderStatusPending {
		return nil, fmt.Errorf("%w: orders cannot return to pending", ErrValidation)
	}

	var updated *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := lockForUpdate(tx).Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order", ErrNotFound)
			}
			return err
		}

		if err := authorizeTransition(&order, actor, newStatus); err != nil {
			return err
		}

		if models.IsTerminalStatus(order.OrderStatus) {
			return fmt.Errorf("%w: cannot change status of a %s order", ErrTerminalState, order.OrderStatus)
		}
		if order.OrderStatus == newStatus {
			return fmt.Errorf("%w: order is already %s", ErrValidation, newStatus)
		}

		updates := map[string]any{"order_status": newStatus}

		switch newStatus {
		case models.OrderStatusConfirmed:
			if err := s.reserveAll(ctx, tx, &order); err != nil {
				return err
			}
		case models.OrderStatusCancelled:
			// Stock was committed at confirmation; cancelling any earlier
			// state has nothing to restore.
			if order.OrderStatus == models.OrderStatusConfirmed {
				if err := s.releaseAll(ctx, tx, &order); err != nil {
					return err
				}
			}
			if order.PaymentStatus == models.PaymentStatusCompleted {
				// Recorded state change only; refund execution is external.
				updates["payment_status"] = models.PaymentStatusRefunded
			}
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
			return err
		}

		if err := tx.Preload("Items").First(&order, "id = ?", order.ID).Error; err != nil {
			return err
		}
		updated = &order
		return nil
	})
	if err != nil {
		return nil, err
	}

	data := map[string]string{"order_id": updated.ID.String(), "order_number": updated.OrderNumber, "order_status": newStatus}
	go s.notifier.Notify(context.Background(), updated.UserID, "Order "+newStatus,
		fmt.Sprintf("Order %s is now %s", updated.OrderNumber, newStatus), data)
	if newStatus == models.OrderStatusCancelled && updated.VendorID != nil {
		go s.notifier.Notify(context.Background(), *updated.VendorID, "Order cancelled",
			fmt.Sprintf("Order %s was cancelled", updated.OrderNumber), data)
	}

	return updated, nil
}

// UpdatePaymentStatus records a payment state change on a vendor's order.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, actor utils.Principal, newStatus string) (*models.Order, error) {
	if !models.ValidPaymentStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrValidation, newStatus)
	}

	var updated *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := lockForUpdate(tx).First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order", ErrNotFound)
			}
			return err
		}
		if err := requireVendorScope(&order, actor); err != nil {
			return err
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("payment_status", newStatus).Error; err != nil {
			return err
		}
		order.PaymentStatus = newStatus
		updated = &order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateItems replaces the order's line items and recomputes GST and billing
// the same way CreateOrder does. Stock is untouched; only status transitions
// move stock. Permitted while the order is not yet delivered.
func (s *OrderService) UpdateItems(ctx context.Context, orderID uuid.UUID, actor utils.Principal, newItems []CartItemInput) (*models.Order, error) {
	if len(newItems) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	for i := range newItems {
		if newItems[i].ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: product_id required", ErrValidation)
		}
		if newItems[i].Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
		}
		if newItems[i].UnitPrice < 0 {
			return nil, fmt.Errorf("%w: price must be >= 0", ErrValidation)
		}
	}

	var updated *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := lockForUpdate(tx).First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order", ErrNotFound)
			}
			return err
		}
		if err := requireVendorScope(&order, actor); err != nil {
			return err
		}
		if order.OrderStatus == models.OrderStatusDelivered {
			return fmt.Errorf("%w: cannot edit items of a delivered order", ErrTerminalState)
		}

		var scope *VendorScope
		if order.VendorID != nil {
			scope = &VendorScope{VendorID: *order.VendorID, CityID: order.VendorServiceCityID}
		}

		items, _, err := s.buildItems(ctx, tx, newItems, scope)
		if err != nil {
			return err
		}

		var cartTotal, gstTotal float64
		for i := range items {
			cartTotal += items[i].LineTotal
			gstTotal += items[i].GSTAmount
		}
		cartTotal = utils.Round2(cartTotal)
		gstTotal = utils.Round2(gstTotal)

		total := cartTotal + gstTotal + order.ShippingCharges - order.CouponAmount
		if total < 0 {
			total = 0
		}

		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}

		updates := map[string]any{
			"cart_total":   cartTotal,
			"gst_amount":   gstTotal,
			"total_amount": utils.Round2(total),
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
			return err
		}

		if err := tx.Preload("Items").First(&order, "id = ?", order.ID).Error; err != nil {
			return err
		}
		updated = &order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// buildItems snapshots cart lines into order items, pricing GST per item
// from the matching stock entry (0 when absent). Returns the effective
// vendor of each line for coupon affinity checks.
func (s *OrderService) buildItems(ctx context.Context, tx *gorm.DB, in []CartItemInput, scope *VendorScope) ([]models.OrderItem, []*uuid.UUID, error) {
	ledger := s.ledger.WithTx(tx)

	items := make([]models.OrderItem, 0, len(in))
	itemVendors := make([]*uuid.UUID, 0, len(in))

	for i := range in {
		line := in[i]

		vendorID := line.VendorID
		cityID := line.CityID
		if vendorID == nil && scope != nil {
			v := scope.VendorID
			vendorID = &v
		}
		if cityID == nil && scope != nil {
			cityID = scope.CityID
		}

		var gstPct float64
		if vendorID != nil && cityID != nil {
			entry, err := ledger.Lookup(ctx, line.ProductID, *vendorID, *cityID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, nil, err
			}
			if entry != nil {
				gstPct = entry.GSTPercentage
				if line.Quantity < entry.MinimumOrderQuantity {
					return nil, nil, fmt.Errorf("%w: minimum order quantity for product %s is %d",
						ErrValidation, line.ProductID, entry.MinimumOrderQuantity)
				}
			}
		}

		lineTotal := utils.Round2(line.UnitPrice * float64(line.Quantity))
		gstAmount := utils.Round2(lineTotal * gstPct / 100)

		productID := line.ProductID
		items = append(items, models.OrderItem{
			ProductID:     &productID,
			ProductName:   line.ProductName,
			ProductImage:  line.ProductImage,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			LineTotal:     lineTotal,
			GSTPercentage: gstPct,
			GSTAmount:     gstAmount,
		})
		itemVendors = append(itemVendors, vendorID)
	}

	return items, itemVendors, nil
}

// reserveAll reserves stock for every item; a single shortfall fails the
// whole transition and the enclosing transaction rolls back any partial
// reservations.
func (s *OrderService) reserveAll(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.VendorID == nil || order.VendorServiceCityID == nil {
		return fmt.Errorf("%w: order has no vendor scope, stock cannot be reserved", ErrValidation)
	}

	ledger := s.ledger.WithTx(tx)
	for i := range order.Items {
		item := order.Items[i]
		if item.ProductID == nil {
			return fmt.Errorf("%w: order item %s has no product reference", ErrValidation, item.ID)
		}
		if err := ledger.Reserve(ctx, *item.ProductID, *order.VendorID, *order.VendorServiceCityID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// releaseAll restores the stock reserved at confirmation.
func (s *OrderService) releaseAll(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.VendorID == nil || order.VendorServiceCityID == nil {
		return nil
	}

	ledger := s.ledger.WithTx(tx)
	for i := range order.Items {
		item := order.Items[i]
		if item.ProductID == nil {
			continue
		}
		if err := ledger.Release(ctx, *item.ProductID, *order.VendorID, *order.VendorServiceCityID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func authorizeTransition(order *models.Order, actor utils.Principal, newStatus string) error {
	switch actor.Role {
	case utils.RoleVendor:
		return requireVendorScope(order, actor)
	default:
		if order.UserID != actor.UserID {
			return fmt.Errorf("%w: order", ErrNotFound)
		}
		if newStatus != models.OrderStatusCancelled {
			return fmt.Errorf("%w: customers may only cancel orders", ErrForbidden)
		}
		return nil
	}
}

func requireVendorScope(order *models.Order, actor utils.Principal) error {
	if actor.Role != utils.RoleVendor || actor.VendorID == nil {
		return fmt.Errorf("%w: vendor access required", ErrForbidden)
	}
	if order.VendorID == nil || *order.VendorID != *actor.VendorID {
		return fmt.Errorf("%w: order belongs to another vendor", ErrForbidden)
	}
	return nil
}

// uniqueOrderNumber allocates an order number by generate-then-check with a
// bounded retry; the uniqueIndex on order_number is the final arbiter under
// concurrent creation.
func (s *OrderService) uniqueOrderNumber(ctx context.Context, tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		number, err := generateOrderNumber()
		if err != nil {
			return "", err
		}

		var count int64
		if err := tx.WithContext(ctx).Model(&models.Order{}).
			Where("order_number = ?", number).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return number, nil
		}
	}
	return "", fmt.Errorf("%w: could not allocate a unique order number", ErrConflict)
}

func generateOrderNumber() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%d-%06d", time.Now().UnixMilli(), n.Int64()), nil
}

// lockForUpdate adds a row lock on dialects that support it. The sqlite
// driver used in tests serializes writes on the connection instead.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
