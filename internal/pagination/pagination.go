// Package pagination pages through price history listings.
package pagination

import (
	"gorm.io/gorm"
)

const (
	// DefaultPageSize applies when neither page_size nor limit is given.
	DefaultPageSize = 100
	// MaxPageSize bounds a single page of history rows.
	MaxPageSize = 1000
)

// PageRequest holds pagination parameters parsed from query strings.
// Limit is accepted as an alias of page_size; page_size wins when both are set.
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=1000"`
	Limit    int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// Normalize resolves the limit alias, fills defaults and clamps the page size.
func (p *PageRequest) Normalize() {
	if p.PageSize <= 0 && p.Limit > 0 {
		p.PageSize = p.Limit
	}
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PageSize <= 0:
		p.PageSize = DefaultPageSize
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	}
	p.Limit = 0
}

// Offset returns the SQL OFFSET for the current page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageResponse wraps one page of rows with the totals of the whole listing.
type PageResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// NewPageResponse creates a PageResponse from the given data and total count.
func NewPageResponse[T any](data []T, page, pageSize int, totalItems int64) PageResponse[T] {
	if data == nil {
		data = []T{}
	}
	var totalPages int
	if pageSize > 0 {
		totalPages = int((totalItems + int64(pageSize) - 1) / int64(pageSize))
	}
	return PageResponse[T]{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}

// Paginate returns a GORM scope applying OFFSET and LIMIT for req.
func Paginate(req PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.Offset()).Limit(req.PageSize)
	}
}
