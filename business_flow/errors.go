package businessflow

import (
	"errors"
	"fmt"
)

// Stable error codes carried on API error envelopes.
const (
	ErrCodeSchemaViolation     = "E_SCHEMA"
	ErrCodeInvalidInput        = "E_INPUT"
	ErrCodeForeignKey          = "E_FK"
	ErrCodeRateCardMissing     = "E_RATE"
	ErrCodeInventoryConflict   = "E_INV_AVAIL"
	ErrCodeDuplicateSubmission = "E_DUP"
	ErrCodeTransactionFailed   = "E_TXN"
	ErrCodeUnexpected          = "E_UNEXPECTED"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrMembershipNotFound   = errors.New("user is not a member of this organization")
	ErrInsufficientRole     = errors.New("role does not permit this operation")
	ErrCrossTenantDenied    = errors.New("cross-tenant access requires superuser role")
	ErrSchemaViolation      = errors.New("tenant schema boundary violation")
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrShowNotFound         = errors.New("show not found")
	ErrAdvertiserNotFound   = errors.New("advertiser not found")
	ErrAgencyNotFound       = errors.New("agency not found")
	ErrRateCardMissing      = errors.New("no effective rate card for air date")
	ErrInventoryUnavailable = errors.New("requested inventory is not available")
	ErrBlockingConflict     = errors.New("blocking conflicts prevent commit")
	ErrDuplicateSubmission  = errors.New("duplicate submission")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrInvalidDateRange     = errors.New("date range start must not be after end")
	ErrInvalidFallback      = errors.New("unknown fallback strategy")
	ErrTransactionFailed    = errors.New("transaction failed")
	ErrWorkflowTransition   = errors.New("campaign status transition not allowed")
)

// BusinessError wraps a domain failure with a stable code for the API layer.
type BusinessError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the stable code from err, falling back to E_UNEXPECTED.
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ErrCodeUnexpected
}

func IsSchemaViolation(err error) bool {
	return errors.Is(err, ErrSchemaViolation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrganizationNotFound) ||
		errors.Is(err, ErrCampaignNotFound) ||
		errors.Is(err, ErrShowNotFound) ||
		errors.Is(err, ErrAdvertiserNotFound) ||
		errors.Is(err, ErrAgencyNotFound) ||
		errors.Is(err, ErrReservationNotFound)
}

func IsInventoryConflict(err error) bool {
	return errors.Is(err, ErrInventoryUnavailable) || errors.Is(err, ErrBlockingConflict)
}

func IsDuplicateSubmission(err error) bool {
	return errors.Is(err, ErrDuplicateSubmission)
}
