package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/database"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// fixture seeds one vendor with a service city, a product with stock in that
// city, and a customer with an address in the same city.
type fixture struct {
	db  *gorm.DB
	svc *OrderService

	customer uuid.UUID
	vendor   models.Vendor
	city     models.VendorServiceCity
	product  models.Product
	entry    models.StockEntry
	address  models.UserAddress
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)

	f := &fixture{db: db, customer: uuid.New()}

	f.vendor = models.Vendor{Name: "Fresh Basket", IsActive: true}
	require.NoError(t, db.Create(&f.vendor).Error)

	f.city = models.VendorServiceCity{
		VendorID:    f.vendor.ID,
		Name:        "pune",
		DisplayName: "Pune",
		IsActive:    true,
	}
	require.NoError(t, db.Create(&f.city).Error)

	f.product = models.Product{Slug: "basmati-rice-5kg", Name: "Basmati Rice 5kg", IsActive: true}
	require.NoError(t, db.Create(&f.product).Error)

	f.entry = models.StockEntry{
		ProductID:            f.product.ID,
		VendorID:             f.vendor.ID,
		CityID:               f.city.ID,
		AvailableStock:       10,
		MinimumOrderQuantity: 1,
		Price:                10,
		GSTPercentage:        5,
	}
	require.NoError(t, db.Create(&f.entry).Error)

	f.address = models.UserAddress{
		UserID:      f.customer,
		Label:       "home",
		AddressLine: "14 MG Road",
		City:        "Pune",
		PostalCode:  "411001",
	}
	require.NoError(t, db.Create(&f.address).Error)

	notifier := NewKafkaDispatcher(nil, "")
	f.svc = NewOrderService(db,
		NewVendorResolver(db),
		NewCouponEngine(db),
		NewStockLedger(db),
		notifier,
	)
	return f
}

func (f *fixture) cartItem(qty int, price float64) CartItemInput {
	return CartItemInput{
		ProductID:   f.product.ID,
		ProductName: f.product.Name,
		Quantity:    qty,
		UnitPrice:   price,
	}
}

func (f *fixture) createInput(items ...CartItemInput) CreateOrderInput {
	return CreateOrderInput{
		AddressID:     f.address.ID,
		PaymentMethod: models.PaymentMethodCOD,
		Items:         items,
	}
}

func (f *fixture) customerActor() utils.Principal {
	return utils.Principal{UserID: f.customer, Role: utils.RoleCustomer}
}

func (f *fixture) vendorActor() utils.Principal {
	vendorID := f.vendor.ID
	return utils.Principal{UserID: uuid.New(), Role: utils.RoleVendor, VendorID: &vendorID}
}

func (f *fixture) seedCoupon(t *testing.T, mutate func(*models.Coupon)) models.Coupon {
	t.Helper()

	coupon := models.Coupon{
		VendorID:      f.vendor.ID,
		Code:          "SAVE10",
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: 10,
		StartDate:     time.Now().Add(-time.Hour),
		EndDate:       time.Now().Add(24 * time.Hour),
		IsActive:      true,
	}
	if mutate != nil {
		mutate(&coupon)
	}
	require.NoError(t, f.db.Create(&coupon).Error)
	return coupon
}

func (f *fixture) stockOf(t *testing.T) int {
	t.Helper()

	var entry models.StockEntry
	require.NoError(t, f.db.First(&entry, "id = ?", f.entry.ID).Error)
	return entry.AvailableStock
}
