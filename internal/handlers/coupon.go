package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/middleware"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/services"
	"github.com/example/bazaar/internal/utils"
)

// CouponHandler manages customer coupon checks and vendor coupon CRUD.
type CouponHandler struct {
	db      *gorm.DB
	coupons *services.CouponEngine
}

// NewCouponHandler constructs CouponHandler.
func NewCouponHandler(db *gorm.DB, coupons *services.CouponEngine) *CouponHandler {
	return &CouponHandler{db: db, coupons: coupons}
}

type validateCouponRequest struct {
	Code      string            `json:"code"`
	CartTotal float64           `json:"cart_total"`
	VendorID  string            `json:"vendor_id"`
	CartItems []cartItemRequest `json:"cart_items"`
}

// Validate checks a coupon against the caller's cart and returns the
// discount it would grant.
func (h *CouponHandler) Validate(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req validateCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "coupon code required")
	}

	coupon, err := h.coupons.LoadByCode(c.Context(), req.Code)
	if err != nil {
		return httpError(err)
	}

	itemVendors, err := affinityVendors(req)
	if err != nil {
		return err
	}
	if err := h.coupons.CheckVendorAffinity(coupon, itemVendors); err != nil {
		return httpError(err)
	}

	if err := h.coupons.Validate(c.Context(), coupon, principal.UserID, req.CartTotal); err != nil {
		return httpError(err)
	}

	discount := h.coupons.CalculateDiscount(coupon, req.CartTotal)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"discount":     discount,
			"final_amount": utils.Round2(req.CartTotal - discount),
		},
	})
}

// Available lists coupons the customer could apply right now.
func (h *CouponHandler) Available(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var vendorID *uuid.UUID
	if v := c.Query("vendor_id"); v != "" {
		parsed, err := uuid.Parse(v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid vendor_id")
		}
		vendorID = &parsed
	}

	var cartTotal *float64
	if v := c.QueryFloat("cart_total", -1); v >= 0 {
		cartTotal = &v
	}

	coupons, err := h.coupons.Available(c.Context(), principal.UserID, vendorID, cartTotal)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": coupons})
}

type couponRequest struct {
	Code               string   `json:"code"`
	DiscountType       string   `json:"discount_type"`
	DiscountValue      float64  `json:"discount_value"`
	MaxDiscount        float64  `json:"max_discount"`
	MinimumOrderAmount float64  `json:"minimum_order_amount"`
	StartDate          string   `json:"start_date"`
	EndDate            string   `json:"end_date"`
	UsageLimit         int      `json:"usage_limit"`
	PerUserLimit       int      `json:"per_user_limit"`
	IsActive           *bool    `json:"is_active"`
	AssignedCustomers  []string `json:"assigned_customers"`
}

// Create registers a coupon owned by the authenticated vendor.
func (h *CouponHandler) Create(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || principal.VendorID == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req couponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	coupon := models.Coupon{VendorID: *principal.VendorID, IsActive: true}
	if err := applyCouponRequest(&coupon, &req); err != nil {
		return err
	}

	var existing int64
	if err := h.db.Model(&models.Coupon{}).Where("code = ?", coupon.Code).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return fiber.NewError(fiber.StatusConflict, "coupon code already exists")
	}

	if err := h.db.Create(&coupon).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": coupon})
}

// List returns the vendor's own coupons.
func (h *CouponHandler) List(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || principal.VendorID == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var coupons []models.Coupon
	if err := h.db.Where("vendor_id = ?", *principal.VendorID).
		Order("created_at desc").Find(&coupons).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": coupons})
}

// Update edits a coupon owned by the vendor.
func (h *CouponHandler) Update(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || principal.VendorID == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var coupon models.Coupon
	if err := h.db.First(&coupon, "id = ? AND vendor_id = ?", id, *principal.VendorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "coupon not found")
		}
		return err
	}

	var req couponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := applyCouponRequest(&coupon, &req); err != nil {
		return err
	}

	if err := h.db.Save(&coupon).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": coupon})
}

// Delete removes a coupon owned by the vendor.
func (h *CouponHandler) Delete(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || principal.VendorID == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	res := h.db.Where("id = ? AND vendor_id = ?", id, *principal.VendorID).Delete(&models.Coupon{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "coupon not found")
	}

	return c.JSON(fiber.Map{"success": true})
}

func applyCouponRequest(coupon *models.Coupon, req *couponRequest) error {
	if req.Code != "" {
		coupon.Code = req.Code
	}
	if coupon.Code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "coupon code required")
	}

	if req.DiscountType != "" {
		coupon.DiscountType = req.DiscountType
	}
	if coupon.DiscountType != models.DiscountTypePercentage && coupon.DiscountType != models.DiscountTypeFixed {
		return fiber.NewError(fiber.StatusBadRequest, "discount type must be percentage or fixed")
	}
	if req.DiscountValue < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "discount value must be >= 0")
	}
	if req.DiscountValue > 0 {
		coupon.DiscountValue = req.DiscountValue
	}
	if coupon.DiscountType == models.DiscountTypePercentage {
		coupon.MaxDiscount = req.MaxDiscount
	} else {
		coupon.MaxDiscount = 0
	}
	coupon.MinimumOrderAmount = req.MinimumOrderAmount
	coupon.UsageLimit = req.UsageLimit
	coupon.PerUserLimit = req.PerUserLimit
	coupon.AssignedCustomers = req.AssignedCustomers
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}

	if req.StartDate != "" {
		start, err := time.Parse(time.RFC3339, req.StartDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid start_date")
		}
		coupon.StartDate = start
	}
	if req.EndDate != "" {
		end, err := time.Parse(time.RFC3339, req.EndDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid end_date")
		}
		coupon.EndDate = end
	}
	if coupon.EndDate.Before(coupon.StartDate) {
		return fiber.NewError(fiber.StatusBadRequest, "end_date must follow start_date")
	}

	return nil
}

// affinityVendors extracts the vendor of every cart line for the affinity
// check, preferring an explicit vendor_id over per-item hints.
func affinityVendors(req validateCouponRequest) ([]*uuid.UUID, error) {
	if req.VendorID != "" {
		vendorID, err := uuid.Parse(req.VendorID)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid vendor_id")
		}
		return []*uuid.UUID{&vendorID}, nil
	}

	vendors := make([]*uuid.UUID, 0, len(req.CartItems))
	for _, item := range req.CartItems {
		if item.VendorID == "" {
			vendors = append(vendors, nil)
			continue
		}
		vendorID, err := uuid.Parse(item.VendorID)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid vendor_id")
		}
		vendors = append(vendors, &vendorID)
	}
	return vendors, nil
}
