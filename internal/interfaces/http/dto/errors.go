package dto

import "net/http"

// API error codes, format ERR_<CATEGORY>_<DESCRIPTION>. Handlers translate
// domain error codes into these before writing a response.
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
	ErrCodeValidationRange    = "ERR_VALIDATION_RANGE"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"

	ErrCodeInvalidState      = "ERR_INVALID_STATE"
	ErrCodeBusinessRule      = "ERR_BUSINESS_RULE"
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"

	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"

	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps API error codes to HTTP status codes.
// Validation and input errors map to 400, business rule violations to 422.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:      http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock: http.StatusUnprocessableEntity,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status for an API error code, defaulting
// to 500 for unknown codes.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping translates domain error codes to API error codes.
var DomainErrorCodeMapping = map[string]string{
	// Shared codes
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"FORBIDDEN":            ErrCodeForbidden,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"INSUFFICIENT_STOCK":   ErrCodeInsufficientStock,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,

	// Formula validation
	"INVALID_FORMULA_NUMBER":   ErrCodeInvalidInput,
	"INVALID_PRODUCT":          ErrCodeInvalidInput,
	"INVALID_UNIT":             ErrCodeInvalidInput,
	"INVALID_ITEM":             ErrCodeInvalidInput,
	"INVALID_WAREHOUSE":        ErrCodeInvalidInput,
	"INVALID_QUANTITY":         ErrCodeInvalidInput,
	"INVALID_QUANTITY_PAIR":    ErrCodeInvalidInput,
	"INVALID_COST":             ErrCodeInvalidInput,
	"INVALID_PRICE_TIER":       ErrCodeInvalidInput,
	"INVALID_EFFECTIVE_WINDOW": ErrCodeInvalidInput,
	"UNREALISTIC_EFFICIENCY":   ErrCodeBusinessRule,

	// Formula lifecycle
	"DUPLICATE_FORMULA_NUMBER":  ErrCodeAlreadyExists,
	"FORMULA_ARCHIVED":          ErrCodeInvalidState,
	"FORMULA_ACTIVE":            ErrCodeInvalidState,
	"FORMULA_NOT_ACTIVE":        ErrCodeBusinessRule,
	"FORMULA_NOT_EFFECTIVE":     ErrCodeBusinessRule,
	"INVALID_FORMULA":           ErrCodeInvalidInput,
	"INVALID_STATUS":            ErrCodeInvalidInput,
	"INVALID_STATUS_TRANSITION": ErrCodeInvalidState,

	// Process lifecycle
	"INVALID_PROCESS_NUMBER":      ErrCodeInvalidInput,
	"DUPLICATE_PROCESS_NUMBER":    ErrCodeAlreadyExists,
	"DUPLICATE_RAW_MATERIAL":      ErrCodeAlreadyExists,
	"WAREHOUSE_COLLISION":         ErrCodeInvalidInput,
	"DATE_ORDER_VIOLATION":        ErrCodeInvalidInput,
	"INVALID_REASON":              ErrCodeInvalidInput,
	"INVALID_PROGRESS":            ErrCodeInvalidInput,
	"NO_LINES":                    ErrCodeBusinessRule,
	"LINE_NOT_FOUND":              ErrCodeNotFound,
	"ITEM_NOT_FOUND":              ErrCodeNotFound,
	"UNIT_NOT_FOUND":              ErrCodeNotFound,
	"WAREHOUSE_NOT_FOUND":         ErrCodeNotFound,
	"INSUFFICIENT_CRITICAL_STOCK": ErrCodeInsufficientStock,
}

// NormalizeErrorCode converts a domain error code to its API form.
// Codes already in API form, or unknown ones, pass through unchanged.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
