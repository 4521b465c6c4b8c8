// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/inboxglow/inboxglow/app/dto"
	businessflow "github.com/inboxglow/inboxglow/business_flow"
)

// WarmupHandlerInterface defines the contract for warmup lifecycle handlers
type WarmupHandlerInterface interface {
	RegisterSender(c fiber.Ctx) error
	StartWarmup(c fiber.Ctx) error
	StopWarmup(c fiber.Ctx) error
	PauseWarmup(c fiber.Ctx) error
	ResumeWarmup(c fiber.Ctx) error
	GetStatus(c fiber.Ctx) error
	GetSchedule(c fiber.Ctx) error
	ScheduleDaily(c fiber.Ctx) error
	RecordOutcome(c fiber.Ctx) error
}

// WarmupHandler handles warmup lifecycle HTTP requests
type WarmupHandler struct {
	warmupFlow businessflow.WarmupFlow
	validator  *validator.Validate
}

// NewWarmupHandler creates a new warmup handler
func NewWarmupHandler(warmupFlow businessflow.WarmupFlow) *WarmupHandler {
	return &WarmupHandler{
		warmupFlow: warmupFlow,
		validator:  validator.New(),
	}
}

func (h *WarmupHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *WarmupHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RegisterSender registers a customer mailbox for warmup
// @Summary Register Sender
// @Description Register a sender mailbox with its ESP type and credential
// @Tags Warmup
// @Accept json
// @Produce json
// @Param request body dto.RegisterSenderRequest true "Sender registration data"
// @Success 201 {object} dto.APIResponse{data=dto.RegisterSenderResponse} "Sender registered successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Email already registered"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/senders [post]
func (h *WarmupHandler) RegisterSender(c fiber.Ctx) error {
	var req dto.RegisterSenderRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.warmupFlow.RegisterSender(h.createRequestContext(c, "/api/v1/senders"), &req, metadata)
	if err != nil {
		if businessflow.IsSenderEmailExists(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Email already registered", "SENDER_EMAIL_EXISTS", nil)
		}
		if businessflow.IsInvalidESPType(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown ESP type", "INVALID_ESP_TYPE", nil)
		}

		log.Println("Register sender failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Sender registration failed", "SENDER_REGISTER_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// StartWarmup opens a warmup session for a sender
// @Summary Start Warmup
// @Description Start a warmup session for the sender, idempotent for active sessions
// @Tags Warmup
// @Accept json
// @Produce json
// @Param uuid path string true "Sender UUID"
// @Param request body dto.StartWarmupRequest false "Optional ramp profile override"
// @Success 200 {object} dto.APIResponse{data=dto.StartWarmupResponse} "Warmup session started"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Sender not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/senders/{uuid}/warmup/start [post]
func (h *WarmupHandler) StartWarmup(c fiber.Ctx) error {
	var req dto.StartWarmupRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	req.SenderUUID = c.Params("uuid")

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.warmupFlow.StartWarmup(h.createRequestContext(c, "/api/v1/senders/:uuid/warmup/start"), &req)
	if err != nil {
		if businessflow.IsSenderNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Sender not found", "SENDER_NOT_FOUND", nil)
		}
		if businessflow.IsSenderInactive(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Sender is inactive", "SENDER_INACTIVE", nil)
		}
		if businessflow.IsUnknownRampProfile(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown ramp profile", "UNKNOWN_RAMP_PROFILE", nil)
		}

		log.Println("Start warmup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Start warmup failed", "WARMUP_START_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// StopWarmup completes the sender's warmup session
// @Summary Stop Warmup
// @Description Complete the sender's warmup session and cancel queued tasks
// @Tags Warmup
// @Produce json
// @Param uuid path string true "Sender UUID"
// @Success 200 {object} dto.APIResponse{data=dto.StopWarmupResponse} "Warmup session completed"
// @Failure 404 {object} dto.APIResponse "No active session"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/senders/{uuid}/warmup/stop [post]
func (h *WarmupHandler) StopWarmup(c fiber.Ctx) error {
	result, err := h.warmupFlow.StopWarmup(h.createRequestContext(c, "/api/v1/senders/:uuid/warmup/stop"), c.Params("uuid"))
	if err != nil {
		if businessflow.IsSenderNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Sender not found", "SENDER_NOT_FOUND", nil)
		}
		if businessflow.IsSessionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No warmup session to stop", "SESSION_NOT_FOUND", nil)
		}

		log.Println("Stop warmup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Stop warmup failed", "WARMUP_STOP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// PauseWarmup pauses the sender's active session
// @Summary Pause Warmup
// @Description Pause the sender's active warmup session with a reason
// @Tags Warmup
// @Accept json
// @Produce json
// @Param uuid path string true "Sender UUID"
// @Param request body dto.PauseWarmupRequest true "Pause reason"
// @Success 200 {object} dto.APIResponse{data=dto.PauseWarmupResponse} "Warmup session paused"
// @Failure 400 {object} dto.APIResponse "Session not active"
// @Failure 404 {object} dto.APIResponse "Sender not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/senders/{uuid}/warmup/pause [post]
func (h *WarmupHandler) PauseWarmup(c fiber.Ctx) error {
	var req dto.PauseWarmupRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.SenderUUID = c.Params("uuid")

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.warmupFlow.PauseWarmup(h.createRequestContext(c, "/api/v1/senders/:uuid/warmup/pause"), &req)
	if err != nil {
		if businessflow.IsSenderNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Sender not found", "SENDER_NOT_FOUND", nil)
		}
		if businessflow.IsSessionNotActive(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Session is not active", "SESSION_NOT_ACTIVE", nil)
		}

		log.Println("Pause warmup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Pause warmup failed", "WARMUP_PAUSE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ResumeWarmup resumes a paused session at the elapsed ramp day
// @Summary Resume Warmup
// @Description Resume a paused warmup session, regenerating the schedule from today
// @Tags Warmup
// @Produce json
// @Param uuid path string true "Sender UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ResumeWarmupResponse} "Warmup session resumed"
// @Failure 400 {object} dto.APIResponse "Session not paused"
// @Failure 404 {object} dto.APIResponse "Sender not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/senders/{uuid}/warmup/resume [post]
func (h *WarmupHandler) ResumeWarmup(c fiber.Ctx) error {
	result, err := h.warmupFlow.ResumeWarmup(h.createRequestContext(c, "/api/v1/senders/:uuid/warmup/resume"), c.Params("uuid"))
	if err != nil {
		if businessflow.IsSenderNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Sender not found", "SENDER_NOT_FOUND", nil)
		}
		if businessflow.IsSessionNotPaused(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Session is not paused", "SESSION_NOT_PAUSED", nil)
		}

		log.Println("Resume warmup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Resume warmup failed", "WARMUP_RESUME_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// GetStatus returns the sender's warmup status and reputation
// @Summary Warmup Status
// @Description Get the sender's session state, reputation score, and rolling metrics
// @Tags Warmup
// @Produce json
// @Param uuid path string true "Sender UUID"
// @Success 200 {object} dto.APIResponse{data=dto.WarmupStatusResponse} "Status fetched successfully"
// @Failure 404 {object} dto.APIResponse "Sender not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/senders/{uuid}/warmup/status [get]
func (h *WarmupHandler) GetStatus(c fiber.Ctx) error {
	result, err := h.warmupFlow.GetStatus(h.createRequestContext(c, "/api/v1/senders/:uuid/warmup/status"), c.Params("uuid"))
	if err != nil {
		if businessflow.IsSenderNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Sender not found", "SENDER_NOT_FOUND", nil)
		}

		log.Println("Get warmup status failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Get warmup status failed", "WARMUP_STATUS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Status fetched successfully", result)
}

// GetSchedule returns the ramp schedule of the sender's latest session
// @Summary Warmup Schedule
// @Description Get the day-by-day ramp schedule of the sender's latest session
// @Tags Warmup
// @Produce json
// @Param uuid path string true "Sender UUID"
// @Success 200 {object} dto.APIResponse{data=dto.GetScheduleResponse} "Schedule fetched successfully"
// @Failure 404 {object} dto.APIResponse "Sender or session not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/senders/{uuid}/warmup/schedule [get]
func (h *WarmupHandler) GetSchedule(c fiber.Ctx) error {
	result, err := h.warmupFlow.GetSchedule(h.createRequestContext(c, "/api/v1/senders/:uuid/warmup/schedule"), c.Params("uuid"))
	if err != nil {
		if businessflow.IsSenderNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Sender not found", "SENDER_NOT_FOUND", nil)
		}
		if businessflow.IsSessionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No warmup session found", "SESSION_NOT_FOUND", nil)
		}

		log.Println("Get warmup schedule failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Get warmup schedule failed", "WARMUP_SCHEDULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Schedule fetched successfully", result)
}

// ScheduleDaily triggers the daily scheduling run for one sender
// @Summary Run Daily Scheduling
// @Description Run the daily warmup scheduling algorithm for the sender immediately
// @Tags Warmup
// @Produce json
// @Param uuid path string true "Sender UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ScheduleDailyResponse} "Daily scheduling completed"
// @Failure 404 {object} dto.APIResponse "Sender not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/senders/{uuid}/warmup/schedule/run [post]
func (h *WarmupHandler) ScheduleDaily(c fiber.Ctx) error {
	result, err := h.warmupFlow.ScheduleDailyBySenderUUID(h.createRequestContext(c, "/api/v1/senders/:uuid/warmup/schedule/run"), c.Params("uuid"))
	if err != nil {
		if businessflow.IsSenderNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Sender not found", "SENDER_NOT_FOUND", nil)
		}

		log.Println("Daily scheduling failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Daily scheduling failed", "WARMUP_SCHEDULE_DAILY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// RecordOutcome ingests an externally observed delivery or engagement outcome
// @Summary Record Outcome
// @Description Record a delivery or engagement outcome for the sender
// @Tags Warmup
// @Accept json
// @Produce json
// @Param uuid path string true "Sender UUID"
// @Param request body dto.RecordOutcomeRequest true "Outcome data"
// @Success 200 {object} dto.APIResponse{data=dto.RecordOutcomeResponse} "Outcome recorded"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Sender not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/senders/{uuid}/warmup/outcomes [post]
func (h *WarmupHandler) RecordOutcome(c fiber.Ctx) error {
	var req dto.RecordOutcomeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.SenderUUID = c.Params("uuid")

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.warmupFlow.RecordOutcome(h.createRequestContext(c, "/api/v1/senders/:uuid/warmup/outcomes"), &req)
	if err != nil {
		if businessflow.IsSenderNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Sender not found", "SENDER_NOT_FOUND", nil)
		}

		log.Println("Record outcome failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Record outcome failed", "WARMUP_OUTCOME_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// createRequestContext creates a context with timeout and request-scoped values for business flows
func (h *WarmupHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *WarmupHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "timeout", timeout)
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup

	return ctx
}
