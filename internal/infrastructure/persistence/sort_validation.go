package persistence

import (
	"strings"

	"github.com/devicecenter/backend/internal/domain/shared"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// DeviceSortFields contains allowed sort fields for devices
var DeviceSortFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"updated_at":    true,
	"name":          true,
	"serial_number": true,
	"status":        true,
}

// ProductSortFields contains allowed sort fields for products
var ProductSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"code":       true,
	"name":       true,
	"status":     true,
	"unit_price": true,
}

// orderClause builds a whitelisted ORDER BY expression from a filter
func orderClause(f shared.Filter, allowed map[string]bool) string {
	return ValidateSortField(f.OrderBy, allowed, "created_at") + " " + ValidateSortOrder(f.OrderDir)
}
