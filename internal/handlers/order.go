package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/middleware"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/services"
	"github.com/example/bazaar/internal/utils"
)

// OrderHandler manages customer-facing order endpoints.
type OrderHandler struct {
	db     *gorm.DB
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, orders *services.OrderService) *OrderHandler {
	return &OrderHandler{db: db, orders: orders}
}

type cartItemRequest struct {
	ProductID    string  `json:"product_id"`
	VendorID     string  `json:"vendor_id"`
	CityID       string  `json:"city_id"`
	ProductName  string  `json:"product_name"`
	ProductImage string  `json:"product_image"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
}

type createOrderRequest struct {
	AddressID            string            `json:"address_id"`
	PaymentMethod        string            `json:"payment_method"`
	PaymentTransactionID string            `json:"payment_transaction_id"`
	CartItems            []cartItemRequest `json:"cart_items"`
	TotalAmount          float64           `json:"total_amount"`
	CartTotal            float64           `json:"cart_total"`
	GSTAmount            float64           `json:"gst_amount"`
	ShippingCharges      float64           `json:"shipping_charges"`
	CouponCode           string            `json:"coupon_code"`
}

// CreateOrder places an order for the authenticated customer.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.TotalAmount <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "total amount must be > 0")
	}

	addressID, err := uuid.Parse(req.AddressID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid address_id")
	}

	items, err := parseCartItems(req.CartItems)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	order, err := h.orders.CreateOrder(c.Context(), principal.UserID, services.CreateOrderInput{
		AddressID:            addressID,
		PaymentMethod:        req.PaymentMethod,
		PaymentTransactionID: req.PaymentTransactionID,
		ShippingCharges:      req.ShippingCharges,
		CouponCode:           req.CouponCode,
		Items:                items,
	})
	if err != nil {
		return httpError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

// ListOrders returns orders for the authenticated customer.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{}).Where("user_id = ?", principal.UserID)

	if status := c.Query("status"); status != "" {
		query = query.Where("order_status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns a single order owned by the authenticated customer.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.Preload("Items").
		First(&order, "id = ? AND user_id = ?", id, principal.UserID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// CancelOrder cancels the customer's own order via the status state machine.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.Transition(c.Context(), id, principal, models.OrderStatusCancelled)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

func parseCartItems(reqs []cartItemRequest) ([]services.CartItemInput, error) {
	items := make([]services.CartItemInput, 0, len(reqs))
	for _, r := range reqs {
		productID, err := uuid.Parse(r.ProductID)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
		}

		item := services.CartItemInput{
			ProductID:    productID,
			ProductName:  r.ProductName,
			ProductImage: r.ProductImage,
			Quantity:     r.Quantity,
			UnitPrice:    r.UnitPrice,
		}
		if r.VendorID != "" {
			vendorID, err := uuid.Parse(r.VendorID)
			if err != nil {
				return nil, fiber.NewError(fiber.StatusBadRequest, "invalid vendor_id")
			}
			item.VendorID = &vendorID
		}
		if r.CityID != "" {
			cityID, err := uuid.Parse(r.CityID)
			if err != nil {
				return nil, fiber.NewError(fiber.StatusBadRequest, "invalid city_id")
			}
			item.CityID = &cityID
		}
		items = append(items, item)
	}
	return items, nil
}
