package domain

import "time"

// BaseModel is embedded by every persisted entity. It is used instead of
// gorm.Model so that rows are hard-deleted.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageRequest holds pagination, sorting, and filtering parameters.
type PageRequest struct {
	Page     int
	PageSize int
	Sort     string
	Filter   map[string]string
}

// PageResult is one page of a listing together with its totals.
type PageResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// HasPrev reports whether a previous page exists.
func (p *PageResult[T]) HasPrev() bool {
	return p.Page > 1
}

// HasNext reports whether a following page exists.
func (p *PageResult[T]) HasNext() bool {
	return p.Page < p.TotalPages
}
