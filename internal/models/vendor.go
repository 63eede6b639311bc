package models

import "github.com/google/uuid"

type Vendor struct {
	BaseModel
	Name          string              `json:"name"`
	ContactPhone  string              `json:"contact_phone"`
	IsActive      bool                `json:"is_active"`
	ServiceCities []VendorServiceCity `json:"service_cities,omitempty"`
}

// VendorServiceCity is a city a vendor has declared they can fulfil orders
// in. Orders are scoped to exactly one vendor + service-city pair.
type VendorServiceCity struct {
	BaseModel
	VendorID    uuid.UUID `gorm:"type:uuid;index" json:"vendor_id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	IsActive    bool      `json:"is_active"`
}
