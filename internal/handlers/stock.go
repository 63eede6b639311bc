package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/middleware"
	"github.com/example/bazaar/internal/models"
)

// StockHandler manages a vendor's per-city stock entries.
type StockHandler struct {
	db *gorm.DB
}

// NewStockHandler constructs StockHandler.
func NewStockHandler(db *gorm.DB) *StockHandler {
	return &StockHandler{db: db}
}

// List returns the vendor's stock entries, optionally filtered by city.
func (h *StockHandler) List(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || principal.VendorID == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	query := h.db.Where("vendor_id = ?", *principal.VendorID)
	if city := c.Query("city_id"); city != "" {
		cityID, err := uuid.Parse(city)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid city_id")
		}
		query = query.Where("city_id = ?", cityID)
	}

	var entries []models.StockEntry
	if err := query.Order("created_at desc").Find(&entries).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": entries})
}

type stockEntryRequest struct {
	ProductID            string             `json:"product_id"`
	CityID               string             `json:"city_id"`
	AvailableStock       int                `json:"available_stock"`
	MinimumOrderQuantity int                `json:"minimum_order_quantity"`
	Price                float64            `json:"price"`
	BulkPrices           []models.PriceTier `json:"bulk_prices"`
	GSTPercentage        float64            `json:"gst_percentage"`
	CGST                 float64            `json:"cgst"`
	SGST                 float64            `json:"sgst"`
	IGST                 float64            `json:"igst"`
}

// Upsert creates or updates the stock entry for a (product, city) pair
// within the vendor's scope.
func (h *StockHandler) Upsert(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || principal.VendorID == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req stockEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
	}
	cityID, err := uuid.Parse(req.CityID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid city_id")
	}
	if req.AvailableStock < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "available stock must be >= 0")
	}
	if req.MinimumOrderQuantity < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "minimum order quantity must be >= 1")
	}
	if req.Price < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "price must be >= 0")
	}

	entry := models.StockEntry{
		ProductID:            productID,
		VendorID:             *principal.VendorID,
		CityID:               cityID,
		AvailableStock:       req.AvailableStock,
		MinimumOrderQuantity: req.MinimumOrderQuantity,
		Price:                req.Price,
		BulkPrices:           req.BulkPrices,
		GSTPercentage:        req.GSTPercentage,
		CGST:                 req.CGST,
		SGST:                 req.SGST,
		IGST:                 req.IGST,
	}
	if err := entry.ValidateTiers(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var existing models.StockEntry
	err = h.db.Where("product_id = ? AND vendor_id = ? AND city_id = ?",
		productID, *principal.VendorID, cityID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := h.db.Create(&entry).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		entry.BaseModel = existing.BaseModel
		if err := h.db.Save(&entry).Error; err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": entry})
}
