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

// VendorOrderHandler manages vendor-facing order endpoints. Every query is
// scoped to the authenticated principal's vendor id, so unscoped orders are
// never visible here.
type VendorOrderHandler struct {
	db     *gorm.DB
	orders *services.OrderService
}

// NewVendorOrderHandler constructs VendorOrderHandler.
func NewVendorOrderHandler(db *gorm.DB, orders *services.OrderService) *VendorOrderHandler {
	return &VendorOrderHandler{db: db, orders: orders}
}

// ListOrders returns orders scoped to the vendor, optionally filtered by
// status and service city.
func (h *VendorOrderHandler) ListOrders(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || principal.VendorID == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{}).Where("vendor_id = ?", *principal.VendorID)

	if status := c.Query("status"); status != "" {
		query = query.Where("order_status = ?", status)
	}
	if city := c.Query("city_id"); city != "" {
		cityID, err := uuid.Parse(city)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid city_id")
		}
		query = query.Where("vendor_service_city_id = ?", cityID)
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

// GetOrder returns one order scoped to the vendor.
func (h *VendorOrderHandler) GetOrder(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || principal.VendorID == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.Preload("Items").
		First(&order, "id = ? AND vendor_id = ?", id, *principal.VendorID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type updateStatusRequest struct {
	OrderStatus string `json:"order_status"`
}

// UpdateStatus transitions the order through the status state machine.
func (h *VendorOrderHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.Transition(c.Context(), id, principal, req.OrderStatus)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type updatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status"`
}

// UpdatePaymentStatus records a payment state change.
func (h *VendorOrderHandler) UpdatePaymentStatus(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updatePaymentStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.UpdatePaymentStatus(c.Context(), id, principal, req.PaymentStatus)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type updateItemsRequest struct {
	Items []cartItemRequest `json:"items"`
}

// UpdateItems replaces the order's line items and recomputes billing.
func (h *VendorOrderHandler) UpdateItems(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateItemsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	items, err := parseCartItems(req.Items)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	order, err := h.orders.UpdateItems(c.Context(), id, principal, items)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}
