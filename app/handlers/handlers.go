// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	businessflow "github.com/podscale/adops/business_flow"
)

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must have at least " + err.Param() + " entries"
	case "max":
		return err.Field() + " must have at most " + err.Param() + " entries"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "datetime":
		return err.Field() + " must be a date in YYYY-MM-DD format"
	case "uuid4":
		return err.Field() + " must be a UUID"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

// statusForError maps a business error code to an HTTP status.
func statusForError(err error) int {
	switch businessflow.ErrorCode(err) {
	case businessflow.ErrCodeSchemaViolation:
		return fiber.StatusForbidden
	case businessflow.ErrCodeInvalidInput, businessflow.ErrCodeRateCardMissing:
		return fiber.StatusBadRequest
	case businessflow.ErrCodeForeignKey:
		return fiber.StatusNotFound
	case businessflow.ErrCodeInventoryConflict, businessflow.ErrCodeDuplicateSubmission:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
