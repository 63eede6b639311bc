package models

// Product is a slim catalog reference; full catalog management lives in a
// separate service. Orders snapshot the name and image at creation time.
type Product struct {
	BaseModel
	Slug      string  `gorm:"uniqueIndex" json:"slug"`
	Name      string  `json:"name"`
	HeroImage string  `json:"hero_image"`
	BasePrice float64 `json:"base_price"`
	IsActive  bool    `json:"is_active"`
}
