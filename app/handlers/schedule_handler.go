package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/podscale/adops/app/dto"
	"github.com/podscale/adops/app/middleware"
	businessflow "github.com/podscale/adops/business_flow"
	"github.com/podscale/adops/models"
	"github.com/podscale/adops/utils"
)

// ScheduleHandlerInterface defines the contract for schedule handlers
type ScheduleHandlerInterface interface {
	PreviewSchedule(c fiber.Ctx) error
	CommitSchedule(c fiber.Ctx) error
	GetCampaignConflicts(c fiber.Ctx) error
	GetCampaignActivity(c fiber.Ctx) error
}

// ScheduleHandler handles schedule preview, commit, and conflict requests
type ScheduleHandler struct {
	tenantFlow     businessflow.TenantFlow
	allocationFlow businessflow.AllocationFlow
	commitFlow     businessflow.CommitFlow
	conflictFlow   businessflow.ConflictFlow
	validator      *validator.Validate
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(
	tenantFlow businessflow.TenantFlow,
	allocationFlow businessflow.AllocationFlow,
	commitFlow businessflow.CommitFlow,
	conflictFlow businessflow.ConflictFlow,
) *ScheduleHandler {
	return &ScheduleHandler{
		tenantFlow:     tenantFlow,
		allocationFlow: allocationFlow,
		commitFlow:     commitFlow,
		conflictFlow:   conflictFlow,
		validator:      validator.New(),
	}
}

func (h *ScheduleHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
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

func (h *ScheduleHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// PreviewSchedule runs the bulk allocator without persisting anything
// @Summary Preview schedule
// @Description Propose ad slot placements for a demand without booking them
// @Tags Schedules
// @Accept json
// @Produce json
// @Param request body dto.SchedulePreviewRequest true "Allocation demand"
// @Success 200 {object} dto.APIResponse{data=dto.SchedulePreviewResponse} "Preview computed"
// @Failure 400 {object} dto.APIResponse "Validation error or missing rate card"
// @Failure 404 {object} dto.APIResponse "Referenced entity not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/schedule/preview [post]
func (h *ScheduleHandler) PreviewSchedule(c fiber.Ctx) error {
	var req dto.SchedulePreviewRequest
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

	ctx := h.createRequestContext(c, "/api/v1/schedule/preview")
	partition, _, err := h.resolvePartition(ctx, c)
	if err != nil {
		return h.ErrorResponse(c, statusForError(err), "Tenant resolution failed", businessflow.ErrorCode(err), nil)
	}

	result, err := h.allocationFlow.Allocate(ctx, partition, &req)
	if err != nil {
		return h.ErrorResponse(c, statusForError(err), "Schedule preview failed", businessflow.ErrorCode(err), err.Error())
	}

	resp := dto.SchedulePreviewResponse{
		Message:       "preview computed",
		CorrelationID: correlationFromLocals(c),
		WouldPlace:    make([]dto.PlannedSpotDTO, 0, len(result.WouldPlace)),
		Conflicts:     result.Conflicts,
		Summary:       result.Summary,
	}
	for _, s := range result.WouldPlace {
		resp.WouldPlace = append(resp.WouldPlace, s.DTO())
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Schedule preview computed", resp)
}

// CommitSchedule books the previewed placements transactionally
// @Summary Commit schedule
// @Description Book ad slots for a demand with idempotent replay protection
// @Tags Schedules
// @Accept json
// @Produce json
// @Param request body dto.ScheduleCommitRequest true "Allocation demand with idempotency key"
// @Success 200 {object} dto.APIResponse{data=dto.ScheduleCommitResponse} "Schedule committed"
// @Failure 400 {object} dto.APIResponse "Validation error or missing rate card"
// @Failure 404 {object} dto.APIResponse "Referenced entity not found"
// @Failure 409 {object} dto.APIResponse "Inventory unavailable or strict shortfall"
// @Failure 500 {object} dto.APIResponse "Transaction failure"
// @Router /api/v1/schedule/commit [post]
func (h *ScheduleHandler) CommitSchedule(c fiber.Ctx) error {
	var req dto.ScheduleCommitRequest
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

	ctx := h.createRequestContext(c, "/api/v1/schedule/commit")
	partition, _, err := h.resolvePartition(ctx, c)
	if err != nil {
		return h.ErrorResponse(c, statusForError(err), "Tenant resolution failed", businessflow.ErrorCode(err), nil)
	}

	meta := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	meta.CorrelationID = correlationFromLocals(c)

	result, err := h.commitFlow.Commit(ctx, partition, &req, meta)
	if err != nil {
		return h.ErrorResponse(c, statusForError(err), "Schedule commit failed", businessflow.ErrorCode(err), err.Error())
	}

	if result.IdempotentReplay {
		middleware.RecordIdempotentReplay()
	} else {
		middleware.RecordCommit(len(result.Committed), len(result.FinalConflicts))
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Schedule committed", result)
}

// GetCampaignConflicts reports category and competitor conflicts
// @Summary Campaign conflicts
// @Description List blocking and warning conflicts for a campaign
// @Tags Schedules
// @Produce json
// @Param campaignUUID path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignConflictsResponse} "Conflicts retrieved"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/schedule/conflicts/{campaignUUID} [get]
func (h *ScheduleHandler) GetCampaignConflicts(c fiber.Ctx) error {
	campaignUUID, err := uuid.Parse(c.Params("campaignUUID"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign UUID", businessflow.ErrCodeInvalidInput, nil)
	}

	ctx := h.createRequestContext(c, "/api/v1/schedule/conflicts")
	partition, _, err := h.resolvePartition(ctx, c)
	if err != nil {
		return h.ErrorResponse(c, statusForError(err), "Tenant resolution failed", businessflow.ErrorCode(err), nil)
	}

	result, err := h.conflictFlow.CheckConflictsByUUID(ctx, partition, campaignUUID)
	if err != nil {
		return h.ErrorResponse(c, statusForError(err), "Conflict check failed", businessflow.ErrorCode(err), nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Conflicts retrieved", result)
}

// GetCampaignActivity returns the audit trail for a campaign
// @Summary Campaign activity
// @Description Lists commit and workflow audit entries for a campaign, newest first
// @Tags schedule
// @Produce json
// @Param campaignUUID path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse "Activity retrieved"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/schedule/activity/{campaignUUID} [get]
func (h *ScheduleHandler) GetCampaignActivity(c fiber.Ctx) error {
	campaignUUID, err := uuid.Parse(c.Params("campaignUUID"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign UUID", businessflow.ErrCodeInvalidInput, nil)
	}

	ctx := h.createRequestContext(c, "/api/v1/schedule/activity")
	partition, _, err := h.resolvePartition(ctx, c)
	if err != nil {
		return h.ErrorResponse(c, statusForError(err), "Tenant resolution failed", businessflow.ErrorCode(err), nil)
	}

	entries, err := h.commitFlow.CampaignActivity(ctx, partition, campaignUUID)
	if err != nil {
		return h.ErrorResponse(c, statusForError(err), "Activity lookup failed", businessflow.ErrorCode(err), nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Activity retrieved", entries)
}

// resolvePartition derives the caller's tenant partition. A superuser may
// target another tenant with the X-Organization header; the grant is
// audit-logged by the flow.
func (h *ScheduleHandler) resolvePartition(ctx context.Context, c fiber.Ctx) (models.Partition, *models.Membership, error) {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return models.Partition{}, nil, businessflow.NewBusinessError(businessflow.ErrCodeSchemaViolation, "user not authenticated", businessflow.ErrMembershipNotFound)
	}

	partition, membership, err := h.tenantFlow.Resolve(ctx, userID)
	if err != nil {
		return models.Partition{}, nil, err
	}

	if target := c.Get("X-Organization"); target != "" {
		principal, _ := c.Locals("principal").(*models.Principal)
		meta := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
		meta.CorrelationID = correlationFromLocals(c)
		partition, err = h.tenantFlow.ResolveForOrganization(ctx, principal, target, meta)
		if err != nil {
			return models.Partition{}, nil, err
		}
	}
	return partition, membership, nil
}

func (h *ScheduleHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup
	return ctx
}

func correlationFromLocals(c fiber.Ctx) string {
	if v, ok := c.Locals("correlation_id").(string); ok && v != "" {
		return v
	}
	if v, ok := c.Locals("requestid").(string); ok {
		return v
	}
	return ""
}
