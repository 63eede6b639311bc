package utils

import "github.com/gofiber/fiber/v2"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination is the page window parsed from list-endpoint query params.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// ParsePagination reads page and limit query params, clamping the page size
// to maxPageSize so a single request cannot drag the whole table.
func ParsePagination(c *fiber.Ctx) Pagination {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	limit := c.QueryInt("limit", defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	return Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}
