package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/podscale/adops/app/dto"
	businessflow "github.com/podscale/adops/business_flow"
	"github.com/podscale/adops/models"
	"github.com/podscale/adops/utils"
)

// InventoryHandlerInterface defines the contract for inventory handlers
type InventoryHandlerInterface interface {
	GetAvailability(c fiber.Ctx) error
	ReleaseReservations(c fiber.Ctx) error
}

// InventoryHandler handles availability queries and reservation releases
type InventoryHandler struct {
	tenantFlow       businessflow.TenantFlow
	availabilityFlow businessflow.AvailabilityFlow
	commitFlow       businessflow.CommitFlow
	validator        *validator.Validate
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(
	tenantFlow businessflow.TenantFlow,
	availabilityFlow businessflow.AvailabilityFlow,
	commitFlow businessflow.CommitFlow,
) *InventoryHandler {
	return &InventoryHandler{
		tenantFlow:       tenantFlow,
		availabilityFlow: availabilityFlow,
		commitFlow:       commitFlow,
		validator:        validator.New(),
	}
}

func (h *InventoryHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:          errorCode,
			CorrelationID: correlationFromLocals(c),
			Details:       details,
		},
	})
}

func (h *InventoryHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// GetAvailability reports open slots per episode and placement type
// @Summary Inventory availability
// @Description List remaining ad slot capacity for shows in a date window
// @Tags Inventory
// @Produce json
// @Param start_date query string true "Window start (YYYY-MM-DD)"
// @Param end_date query string true "Window end (YYYY-MM-DD)"
// @Param show_ids query []int false "Show IDs (all shows when omitted)"
// @Param placement_types query []string false "Placement types"
// @Success 200 {object} dto.APIResponse{data=dto.AvailabilityResponse} "Availability retrieved"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/inventory/availability [get]
func (h *InventoryHandler) GetAvailability(c fiber.Ctx) error {
	var req dto.AvailabilityRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", businessflow.ErrCodeInvalidInput, err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", businessflow.ErrCodeInvalidInput, validationErrors)
	}

	start, err := time.Parse(utils.DateLayout, req.StartDate)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid start date", businessflow.ErrCodeInvalidInput, nil)
	}
	end, err := time.Parse(utils.DateLayout, req.EndDate)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid end date", businessflow.ErrCodeInvalidInput, nil)
	}

	ctx := h.createRequestContext(c, "/api/v1/inventory/availability")
	partition, err := h.resolvePartition(ctx, c)
	if err != nil {
		return h.ErrorResponse(c, statusForError(err), "Tenant resolution failed", businessflow.ErrorCode(err), nil)
	}

	query := businessflow.AvailabilityQuery{
		ShowIDs:   req.ShowIDs,
		StartDate: start,
		EndDate:   end,
	}
	for _, pt := range req.PlacementTypes {
		query.PlacementTypes = append(query.PlacementTypes, models.PlacementType(pt))
	}

	result, err := h.availabilityFlow.QueryAvailability(ctx, partition, query)
	if err != nil {
		return h.ErrorResponse(c, statusForError(err), "Availability query failed", businessflow.ErrorCode(err), nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Availability retrieved", result)
}

// ReleaseReservations bulk-releases expired holds, or all holds under one
// schedule reference when a body is supplied
// @Summary Release reservations
// @Description Release expired inventory holds, or holds for one schedule reference
// @Tags Inventory
// @Accept json
// @Produce json
// @Param request body dto.ReleaseReservationsRequest false "Schedule reference to release"
// @Success 200 {object} dto.APIResponse{data=dto.ReleaseReservationsResponse} "Reservations released"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/inventory/reservations/release [post]
func (h *InventoryHandler) ReleaseReservations(c fiber.Ctx) error {
	ctx := h.createRequestContext(c, "/api/v1/inventory/reservations/release")
	partition, err := h.resolvePartition(ctx, c)
	if err != nil {
		return h.ErrorResponse(c, statusForError(err), "Tenant resolution failed", businessflow.ErrorCode(err), nil)
	}

	meta := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	meta.CorrelationID = correlationFromLocals(c)

	var released int64
	if len(c.Body()) > 0 {
		var req dto.ReleaseReservationsRequest
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", businessflow.ErrCodeInvalidInput, err.Error())
		}
		if err := h.validator.Struct(&req); err != nil {
			var validationErrors []string
			for _, err := range err.(validator.ValidationErrors) {
				validationErrors = append(validationErrors, getValidationErrorMessage(err))
			}
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", businessflow.ErrCodeInvalidInput, validationErrors)
		}
		scheduleRef, err := uuid.Parse(req.ScheduleRef)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid schedule reference", businessflow.ErrCodeInvalidInput, nil)
		}
		released, err = h.commitFlow.ReleaseSchedule(ctx, partition, scheduleRef, meta)
		if err != nil {
			return h.ErrorResponse(c, statusForError(err), "Reservation release failed", businessflow.ErrorCode(err), nil)
		}
	} else {
		released, err = h.commitFlow.ReleaseExpiredReservations(ctx, partition)
		if err != nil {
			return h.ErrorResponse(c, statusForError(err), "Reservation release failed", businessflow.ErrorCode(err), nil)
		}
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Reservations released", dto.ReleaseReservationsResponse{
		Message:  "reservations released",
		Released: released,
	})
}

func (h *InventoryHandler) resolvePartition(ctx context.Context, c fiber.Ctx) (models.Partition, error) {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return models.Partition{}, businessflow.NewBusinessError(businessflow.ErrCodeSchemaViolation, "user not authenticated", businessflow.ErrMembershipNotFound)
	}

	partition, _, err := h.tenantFlow.Resolve(ctx, userID)
	if err != nil {
		return models.Partition{}, err
	}

	if target := c.Get("X-Organization"); target != "" {
		principal, _ := c.Locals("principal").(*models.Principal)
		meta := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
		meta.CorrelationID = correlationFromLocals(c)
		partition, err = h.tenantFlow.ResolveForOrganization(ctx, principal, target, meta)
		if err != nil {
			return models.Partition{}, err
		}
	}
	return partition, nil
}

func (h *InventoryHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup
	return ctx
}
