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
	"github.com/inboxglow/inboxglow/utils"
)

// PoolHandlerInterface defines the contract for pool management handlers
type PoolHandlerInterface interface {
	OnboardAccount(c fiber.Ctx) error
	ActivateAccount(c fiber.Ctx) error
	ListAccounts(c fiber.Ctx) error
	UpdateHealth(c fiber.Ctx) error
	RunMaintenance(c fiber.Ctx) error
	DownloadWarmupReportCSV(c fiber.Ctx) error
	DownloadWarmupReportExcel(c fiber.Ctx) error
}

// PoolHandler handles warmup pool management HTTP requests
type PoolHandler struct {
	poolFlow   businessflow.PoolFlow
	reportFlow businessflow.ReportFlow
	validator  *validator.Validate
}

// NewPoolHandler creates a new pool handler
func NewPoolHandler(poolFlow businessflow.PoolFlow, reportFlow businessflow.ReportFlow) *PoolHandler {
	return &PoolHandler{
		poolFlow:   poolFlow,
		reportFlow: reportFlow,
		validator:  validator.New(),
	}
}

func (h *PoolHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *PoolHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// OnboardAccount adds a mailbox to the warmup pool
// @Summary Onboard Pool Account
// @Description Add a mailbox to the warmup pool in warming status
// @Tags Pool
// @Accept json
// @Produce json
// @Param request body dto.OnboardPoolAccountRequest true "Pool account data"
// @Success 201 {object} dto.APIResponse{data=dto.OnboardPoolAccountResponse} "Pool account onboarded"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Email already in pool"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pool/accounts [post]
func (h *PoolHandler) OnboardAccount(c fiber.Ctx) error {
	var req dto.OnboardPoolAccountRequest
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

	result, err := h.poolFlow.OnboardAccount(h.createRequestContext(c, "/api/v1/pool/accounts"), &req, metadata)
	if err != nil {
		if businessflow.IsPoolAccountExists(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Email already in pool", "POOL_ACCOUNT_EXISTS", nil)
		}
		if businessflow.IsInvalidESPType(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown ESP type", "INVALID_ESP_TYPE", nil)
		}

		log.Println("Onboard pool account failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Pool onboarding failed", "POOL_ONBOARD_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// ActivateAccount promotes a warming pool account to active
// @Summary Activate Pool Account
// @Description Promote a warming pool account to active status
// @Tags Pool
// @Produce json
// @Param uuid path string true "Pool account UUID"
// @Success 200 {object} dto.APIResponse{data=dto.PoolAccountDTO} "Pool account activated"
// @Failure 404 {object} dto.APIResponse "Pool account not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pool/accounts/{uuid}/activate [post]
func (h *PoolHandler) ActivateAccount(c fiber.Ctx) error {
	result, err := h.poolFlow.ActivateAccount(h.createRequestContext(c, "/api/v1/pool/accounts/:uuid/activate"), c.Params("uuid"))
	if err != nil {
		if businessflow.IsPoolAccountNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Pool account not found", "POOL_ACCOUNT_NOT_FOUND", nil)
		}

		log.Println("Activate pool account failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Pool activation failed", "POOL_ACTIVATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Pool account activated", result)
}

// ListAccounts returns a page of pool accounts
// @Summary List Pool Accounts
// @Description List pool accounts ordered by health score
// @Tags Pool
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Param status query string false "Filter by status"
// @Param esp_type query string false "Filter by ESP type"
// @Success 200 {object} dto.APIResponse{data=dto.ListPoolAccountsResponse} "Pool accounts fetched"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pool/accounts [get]
func (h *PoolHandler) ListAccounts(c fiber.Ctx) error {
	var req dto.ListPoolAccountsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	result, err := h.poolFlow.ListAccounts(h.createRequestContext(c, "/api/v1/pool/accounts"), &req)
	if err != nil {
		log.Println("List pool accounts failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "List pool accounts failed", "POOL_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Pool accounts fetched", result)
}

// UpdateHealth recomputes a pool account's health from reported rates
// @Summary Update Pool Account Health
// @Description Recompute a pool account's health score from bounce, spam, and reply rates
// @Tags Pool
// @Accept json
// @Produce json
// @Param uuid path string true "Pool account UUID"
// @Param request body dto.UpdatePoolHealthRequest true "Observed rates in percent"
// @Success 200 {object} dto.APIResponse{data=dto.UpdatePoolHealthResponse} "Health updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Pool account not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pool/accounts/{uuid}/health [put]
func (h *PoolHandler) UpdateHealth(c fiber.Ctx) error {
	var req dto.UpdatePoolHealthRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UUID = c.Params("uuid")

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.poolFlow.UpdateHealthScore(h.createRequestContext(c, "/api/v1/pool/accounts/:uuid/health"), &req)
	if err != nil {
		if businessflow.IsPoolAccountNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Pool account not found", "POOL_ACCOUNT_NOT_FOUND", nil)
		}

		log.Println("Update pool health failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Pool health update failed", "POOL_HEALTH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Health updated", result)
}

// RunMaintenance triggers the pool maintenance pass immediately
// @Summary Run Pool Maintenance
// @Description Retire stale suspended accounts, reactivate elapsed cooldowns, reset daily counters
// @Tags Pool
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.PoolMaintenanceResponse} "Maintenance completed"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pool/maintenance [post]
func (h *PoolHandler) RunMaintenance(c fiber.Ctx) error {
	result, err := h.poolFlow.RunMaintenance(h.createRequestContext(c, "/api/v1/pool/maintenance"))
	if err != nil {
		log.Println("Pool maintenance failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Pool maintenance failed", "POOL_MAINTENANCE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Maintenance completed", result)
}

// DownloadWarmupReportCSV streams a sender's warmup metrics as CSV
// @Summary Download Warmup Report CSV
// @Description Download a sender's daily warmup metrics as a CSV file
// @Tags Reports
// @Produce text/csv
// @Param uuid path string true "Sender UUID"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {file} file "CSV report"
// @Failure 400 {object} dto.APIResponse "Invalid date range"
// @Failure 404 {object} dto.APIResponse "Sender not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/reports/warmup/{uuid}/csv [get]
func (h *PoolHandler) DownloadWarmupReportCSV(c fiber.Ctx) error {
	from, to, err := h.reportRange(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid date range", "INVALID_DATE_RANGE", err.Error())
	}

	filename, data, err := h.reportFlow.DownloadWarmupReportCSV(h.createRequestContext(c, "/api/v1/reports/warmup/:uuid/csv"), c.Params("uuid"), from, to)
	if err != nil {
		return h.reportError(c, err)
	}

	c.Set("Content-Type", "text/csv; charset=utf-8")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// DownloadWarmupReportExcel streams a sender's warmup report workbook
// @Summary Download Warmup Report Excel
// @Description Download a sender's warmup report as an Excel workbook
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param uuid path string true "Sender UUID"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {file} file "Excel report"
// @Failure 400 {object} dto.APIResponse "Invalid date range"
// @Failure 404 {object} dto.APIResponse "Sender not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/reports/warmup/{uuid}/xlsx [get]
func (h *PoolHandler) DownloadWarmupReportExcel(c fiber.Ctx) error {
	from, to, err := h.reportRange(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid date range", "INVALID_DATE_RANGE", err.Error())
	}

	filename, data, err := h.reportFlow.DownloadWarmupReportExcel(h.createRequestContext(c, "/api/v1/reports/warmup/:uuid/xlsx"), c.Params("uuid"), from, to)
	if err != nil {
		return h.reportError(c, err)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// reportRange parses the optional from/to query dates, defaulting to the
// trailing 30 days
func (h *PoolHandler) reportRange(c fiber.Ctx) (time.Time, time.Time, error) {
	to := utils.UTCToday()
	from := to.AddDate(0, 0, -29)

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}

	return from, to, nil
}

func (h *PoolHandler) reportError(c fiber.Ctx, err error) error {
	if businessflow.IsSenderNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Sender not found", "SENDER_NOT_FOUND", nil)
	}
	if businessflow.IsStartDateAfterEndDate(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date is after end date", "INVALID_DATE_RANGE", nil)
	}

	log.Println("Download warmup report failed", err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Report generation failed", "REPORT_FAILED", nil)
}

// createRequestContext creates a context with timeout and request-scoped values for business flows
func (h *PoolHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup

	return ctx
}
