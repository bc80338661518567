package dto

import "time"

// Response is the envelope of every API reply. Exactly one of Data and Error
// is set; Meta accompanies list data.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail names one rejected request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta is the size of a list response and the limit it was capped at
type Meta struct {
	Count int `json:"count"`
	Limit int `json:"limit,omitempty"`
}

func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

func NewListResponse(data any, count, limit int) Response {
	return Response{Success: true, Data: data, Meta: &Meta{Count: count, Limit: limit}}
}

// NewErrorResponseWithRequestID accepts either a shared.Code* or an ERR_*
// code; domain codes are normalized.
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	return Response{Error: &ErrorInfo{
		Code:      NormalizeErrorCode(code),
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}}
}

// NewValidationErrorResponse is the 400 body listing rejected fields
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	resp := NewErrorResponseWithRequestID(ErrCodeValidation, message, requestID)
	resp.Error.Details = details
	return resp
}

// IDRequest binds a UUID :id path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// LimitRequest caps list endpoints that return the most recent records
type LimitRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}
