package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/curricula/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator makes gin's validator report JSON field names (form names
// for query structs) instead of Go field names.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return ""
	})
}

// FormatValidationErrors lists one detail per failed field. Errors that are
// not validator.ValidationErrors produce no details.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var fieldErrs validator.ValidationErrors
	var details []dto.ValidationDetail
	if errors.As(err, &fieldErrs) {
		details = make([]dto.ValidationDetail, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: getValidationMessage(fe)})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError aborts a request whose body or query failed to bind.
// A body cut off by BodyLimit answers 413, everything else 400.
func HandleValidationError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size", getRequestID(c)))
		return
	}

	resp := FormatValidationErrors(err, getRequestID(c))
	if len(resp.Error.Details) == 0 {
		resp.Error.Message = "Malformed request: " + err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}

var tagMessages = map[string]string{
	"required":           "This field is required",
	"uuid":               "Invalid UUID format",
	"bcp47_language_tag": "Must be a BCP 47 language tag",
	"len":                "Must be exactly %s characters",
	"oneof":              "Must be one of: %s",
	"gte":                "Must be greater than or equal to %s",
	"lte":                "Must be less than or equal to %s",
	"gt":                 "Must be greater than %s",
	"lt":                 "Must be less than %s",
}

func getValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "max":
		bound := "at least "
		if fe.Tag() == "max" {
			bound = "at most "
		}
		msg := "Must be " + bound + fe.Param()
		if fe.Kind() == reflect.String {
			msg += " characters"
		}
		return msg
	}
	if tmpl, ok := tagMessages[fe.Tag()]; ok {
		return strings.Replace(tmpl, "%s", fe.Param(), 1)
	}
	return "Invalid value"
}
