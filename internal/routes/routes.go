package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/config"
	"github.com/example/bazaar/internal/handlers"
	"github.com/example/bazaar/internal/middleware"
	"github.com/example/bazaar/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	notifier := services.NewKafkaDispatcher(cfg.KafkaBrokers, cfg.NotificationsTopic)
	ledger := services.NewStockLedger(db)
	coupons := services.NewCouponEngine(db)
	resolver := services.NewVendorResolver(db)
	orders := services.NewOrderService(db, resolver, coupons, ledger, notifier)

	orderHandler := handlers.NewOrderHandler(db, orders)
	vendorOrderHandler := handlers.NewVendorOrderHandler(db, orders)
	couponHandler := handlers.NewCouponHandler(db, coupons)
	stockHandler := handlers.NewStockHandler(db)

	api := app.Group("/api")
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	// Customer routes
	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Put("/orders/:id/cancel", orderHandler.CancelOrder)

	protected.Post("/coupons/validate", couponHandler.Validate)
	protected.Get("/coupons/available", couponHandler.Available)

	// Vendor routes
	vendor := protected.Group("/vendor", middleware.RequireVendor())
	vendor.Get("/orders", vendorOrderHandler.ListOrders)
	vendor.Get("/orders/:id", vendorOrderHandler.GetOrder)
	vendor.Patch("/orders/:id/status", vendorOrderHandler.UpdateStatus)
	vendor.Patch("/orders/:id/payment-status", vendorOrderHandler.UpdatePaymentStatus)
	vendor.Patch("/orders/:id/items", vendorOrderHandler.UpdateItems)

	vendor.Post("/coupons", couponHandler.Create)
	vendor.Get("/coupons", couponHandler.List)
	vendor.Put("/coupons/:id", couponHandler.Update)
	vendor.Delete("/coupons/:id", couponHandler.Delete)

	vendor.Get("/stock", stockHandler.List)
	vendor.Put("/stock", stockHandler.Upsert)
}
