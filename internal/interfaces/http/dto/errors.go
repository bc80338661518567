package dto

import (
	"net/http"

	"github.com/curricula/backend/internal/domain/shared"
)

// API error codes returned in ErrorInfo.Code. Every code is ERR_ prefixed.
const (
	ErrCodeUnknown     = "ERR_UNKNOWN"
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodePersistence = "ERR_PERSISTENCE"
	ErrCodeUnavailable = "ERR_SERVICE_UNAVAILABLE" // shutting down or at the job limit

	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"

	ErrCodeTenantRequired = "ERR_TENANT_REQUIRED"
	ErrCodeTenantMismatch = "ERR_TENANT_MISMATCH"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE" // e.g. cancelling a finished job

	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus is the status written for each API error code
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:     http.StatusInternalServerError,
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodePersistence: http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,

	ErrCodeTenantRequired: http.StatusBadRequest,
	// records of another tenant are reported as absent
	ErrCodeTenantMismatch: http.StatusNotFound,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// DomainCodeMapping translates shared.DomainError codes into API codes
var DomainCodeMapping = map[string]string{
	shared.CodeNotFound:       ErrCodeNotFound,
	shared.CodeAlreadyExists:  ErrCodeAlreadyExists,
	shared.CodeInvalidInput:   ErrCodeInvalidInput,
	shared.CodeValidation:     ErrCodeValidation,
	shared.CodeInvalidState:   ErrCodeInvalidState,
	shared.CodeConflict:       ErrCodeConcurrencyConflict,
	shared.CodeTenantMismatch: ErrCodeTenantMismatch,
	shared.CodePersistence:    ErrCodePersistence,
	shared.CodeUnavailable:    ErrCodeUnavailable,
}

// GetHTTPStatus falls back to 500 for codes it does not know
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode maps a domain code to its API code. API codes and
// unrecognised codes are returned unchanged.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
