package pkg

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tasklane/tasklane/internal/domain"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
	defaultSort     = "id:desc"

	// maxSortKeys bounds the number of comma-separated sort keys honoured.
	maxSortKeys = 3
)

// Filter key suffixes understood by Filter.
const (
	likeSuffix = "__like"
	inSuffix   = "__in"
)

// reservedParams lists query parameter names used for pagination/sorting, not for filtering.
var reservedParams = map[string]bool{
	"page":      true,
	"page_size": true,
	"sort":      true,
}

// validFieldName matches only alphanumeric characters and underscores.
var validFieldName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParsePageRequest extracts pagination, sorting, and filtering parameters from query params.
func ParsePageRequest(c *gin.Context) domain.PageRequest {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if page < 1 {
		page = defaultPage
	}

	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	sort := strings.TrimSpace(c.DefaultQuery("sort", defaultSort))
	if sort == "" {
		sort = defaultSort
	}

	filter := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if reservedParams[key] {
			continue
		}
		if len(values) > 0 && values[0] != "" {
			filter[key] = values[0]
		}
	}

	return domain.PageRequest{
		Page:     page,
		PageSize: pageSize,
		Sort:     sort,
		Filter:   filter,
	}
}

// Paginate returns a GORM scope that applies LIMIT and OFFSET based on the page request.
func Paginate(req domain.PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		page := max(req.Page, 1)
		size := req.PageSize
		if size < 1 {
			size = defaultPageSize
		}
		return db.Offset((page - 1) * size).Limit(size)
	}
}

// Sort returns a GORM scope that applies ORDER BY from req.Sort, a
// comma-separated list of "field:asc|desc" keys. Keys with a field outside
// allowed or a bad direction are skipped. "id desc" is appended as a
// tie-breaker unless id is already ordered, so paging stays stable.
func Sort(req domain.PageRequest, allowed []string) func(db *gorm.DB) *gorm.DB {
	return SortBy(req, allowed, nil)
}

// SortBy is Sort with per-field ORDER BY expressions. A field listed in
// exprs is ordered by its expression instead of its column, which lets
// enum-like text columns sort by rank. exprs must be trusted SQL.
func SortBy(req domain.PageRequest, allowed []string, exprs map[string]string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		seen := make(map[string]bool, maxSortKeys)
		for i, key := range strings.Split(req.Sort, ",") {
			if i >= maxSortKeys {
				break
			}
			field, direction, ok := strings.Cut(strings.TrimSpace(key), ":")
			if !ok {
				continue
			}
			field = strings.TrimSpace(field)
			direction = strings.ToLower(strings.TrimSpace(direction))

			if direction != "asc" && direction != "desc" {
				continue
			}
			if !validFieldName.MatchString(field) || !isAllowed(field, allowed) || seen[field] {
				continue
			}
			seen[field] = true
			column := field
			if expr, ok := exprs[field]; ok {
				column = expr
			}
			db = db.Order(column + " " + direction)
		}
		if !seen["id"] {
			db = db.Order("id desc")
		}
		return db
	}
}

// Filter returns a GORM scope that applies WHERE conditions based on the page request filters.
// Only keys whose field is in allowed are applied; others are ignored.
//
//	field=value         exact match
//	field__like=value   LIKE '%value%'
//	field__in=a,b,c     IN ('a','b','c')
func Filter(req domain.PageRequest, allowed []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for key, value := range req.Filter {
			field, op := splitFilterKey(key)
			if !validFieldName.MatchString(field) || !isAllowed(field, allowed) {
				continue
			}
			switch op {
			case likeSuffix:
				db = db.Where(field+" LIKE ? ESCAPE '\\'", "%"+escapeLike(value)+"%")
			case inSuffix:
				values := splitList(value)
				if len(values) == 0 {
					continue
				}
				db = db.Where(field+" IN ?", values)
			default:
				db = db.Where(field+" = ?", value)
			}
		}
		return db
	}
}

// NewPageResult creates a PageResult with computed TotalPages.
func NewPageResult[T any](items []T, total int64, req domain.PageRequest) *domain.PageResult[T] {
	totalPages := 0
	if req.PageSize > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	}

	if items == nil {
		items = []T{}
	}

	return &domain.PageResult[T]{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
	}
}

func splitFilterKey(key string) (field, op string) {
	for _, suffix := range []string{likeSuffix, inSuffix} {
		if f, ok := strings.CutSuffix(key, suffix); ok {
			return f, suffix
		}
	}
	return key, ""
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// escapeLike neutralises LIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func isAllowed(field string, allowed []string) bool {
	return slices.Contains(allowed, field)
}
