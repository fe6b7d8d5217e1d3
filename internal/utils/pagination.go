// Package utils provides small, generic helpers used across layers.
// They are independent of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts s to an int, returning def when s is empty or
// not a valid integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// TotalPages computes the page count for total items at pageSize per
// page. Zero or negative pageSize yields 0.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	pages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		pages++
	}
	return int(pages)
}
