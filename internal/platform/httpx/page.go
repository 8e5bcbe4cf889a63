package httpx

import (
	"math"
	"net/http"
	"strconv"
)

// Page is the envelope every list endpoint returns. Page numbers are
// zero-based, matching what the consuming clients expect.
type Page struct {
	Content       any `json:"content"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Size          int `json:"size"`
	Number        int `json:"number"`
}

// NewPage assembles the list envelope from content and totals.
func NewPage(content any, page, size, total int) Page {
	if size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}
	totalPages := int(math.Ceil(float64(total) / float64(size)))
	return Page{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Size:          size,
		Number:        page,
	}
}

// PageParams extracts page/size query parameters with list defaults.
func PageParams(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 0 {
		page = 0
	}
	size, _ = strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 || size > 200 {
		size = 20
	}
	return page, size
}
