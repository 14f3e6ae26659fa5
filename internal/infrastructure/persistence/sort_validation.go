package persistence

import (
	"strings"
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

// Common allowed sort fields for entities with base fields
// These are the common fields present in most entities

// CommonSortFields contains fields common to most entities
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// FormulaSortFields contains allowed sort fields for manufacturing formulas
var FormulaSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"formula_number": true,
	"name":           true,
	"status":         true,
	"price_tier":     true,
	"effective_from": true,
	"effective_to":   true,
}

// ProcessSortFields contains allowed sort fields for manufacturing processes
var ProcessSortFields = map[string]bool{
	"id":                    true,
	"created_at":            true,
	"updated_at":            true,
	"process_number":        true,
	"status":                true,
	"process_date":          true,
	"start_date":            true,
	"end_date":              true,
	"total_cost":            true,
	"completion_percentage": true,
}

// StockLevelSortFields contains allowed sort fields for stock levels
var StockLevelSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"item_id":      true,
	"warehouse_id": true,
	"quantity":     true,
}
