package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/skustudio/api/internal/model"
	"github.com/skustudio/api/internal/service"
	"github.com/skustudio/api/pkg/response"
)

type BatchHandler struct {
	service   *service.BatchService
	sheets    *service.SheetService
	validator *validator.Validate
}

func NewBatchHandler(svc *service.BatchService, sheets *service.SheetService, v *validator.Validate) *BatchHandler {
	return &BatchHandler{
		service:   svc,
		sheets:    sheets,
		validator: v,
	}
}

// Create handles POST /api/batch/create
// @Summary      Create batch job
// @Description  Register a batch image generation job from product rows
// @Tags         Batch
// @Accept       json
// @Produce      json
// @Param        request body model.BatchCreateRequest true "Create request"
// @Success      201 {object} model.BatchCreateResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/batch/create [post]
func (h *BatchHandler) Create(c *fiber.Ctx) error {
	var req model.BatchCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	if !validStylePreset(req.StylePreset) {
		return response.ValidationError(c, "Unknown style preset", nil)
	}
	if req.AspectRatio != "" && !validAspectRatio(req.AspectRatio) {
		return response.ValidationError(c, "Unknown aspect ratio", nil)
	}

	result, err := h.service.CreateJob(&req)
	if err != nil {
		if errors.Is(err, service.ErrNoUsableItems) {
			return response.ValidationError(c, "No usable items: every row is missing an image URL", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// Start handles POST /api/batch/start/:jobId
// @Summary      Start batch job
// @Description  Dispatch a pending or interrupted job for processing
// @Tags         Batch
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      202 {object} model.BatchStartResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/batch/start/{jobId} [post]
func (h *BatchHandler) Start(c *fiber.Ctx) error {
	result, err := h.service.StartJob(c.Context(), c.Params("jobId"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.Accepted(c, result)
}

// Status handles GET /api/batch/status/:jobId
// @Summary      Get job status
// @Description  Return the full job record including per-item status
// @Tags         Batch
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.Job
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/batch/status/{jobId} [get]
func (h *BatchHandler) Status(c *fiber.Ctx) error {
	job, err := h.service.GetJob(c.Params("jobId"))
	if err != nil {
		return response.NotFound(c, "Job not found")
	}
	return response.OK(c, job)
}

// List handles GET /api/batch/list
// @Summary      List jobs
// @Description  Return summaries of recent jobs, newest first
// @Tags         Batch
// @Produce      json
// @Param        limit query int false "Maximum number of jobs" default(50)
// @Success      200 {array} model.JobSummary
// @Failure      401 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/batch/list [get]
func (h *BatchHandler) List(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	return response.OK(c, h.service.ListJobs(limit))
}

// Cancel handles POST /api/batch/cancel/:jobId
// @Summary      Cancel job
// @Description  Request cooperative cancellation; finished jobs are unaffected
// @Tags         Batch
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.BatchCancelResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/batch/cancel/{jobId} [post]
func (h *BatchHandler) Cancel(c *fiber.Ctx) error {
	result, err := h.service.CancelJob(c.Params("jobId"))
	if err != nil {
		return response.NotFound(c, "Job not found")
	}
	return response.OK(c, result)
}

// Download handles GET /api/batch/download/:jobId
// @Summary      Download results
// @Description  Download all successful outputs as a ZIP archive
// @Tags         Batch
// @Produce      application/zip
// @Param        jobId path string true "Job ID"
// @Success      200 {file} binary
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/batch/download/{jobId} [get]
func (h *BatchHandler) Download(c *fiber.Ctx) error {
	filename, data, err := h.service.DownloadResults(c.Params("jobId"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, service.ErrNoResults):
			return response.NoResults(c, "Job has no successful results to download")
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(data)
}

// Report handles GET /api/batch/report/:jobId
// @Summary      Download job report
// @Description  Download a per-item XLSX report of outcomes and errors
// @Tags         Batch
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        jobId path string true "Job ID"
// @Success      200 {file} binary
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/batch/report/{jobId} [get]
func (h *BatchHandler) Report(c *fiber.Ctx) error {
	job, err := h.service.GetJob(c.Params("jobId"))
	if err != nil {
		return response.NotFound(c, "Job not found")
	}

	data, err := h.sheets.BuildReport(job)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="report_`+job.ID+`.xlsx"`)
	return c.Send(data)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}

func validStylePreset(p model.StylePreset) bool {
	for _, v := range model.ValidStylePresets {
		if p == v {
			return true
		}
	}
	return false
}

func validAspectRatio(r model.AspectRatio) bool {
	for _, v := range model.ValidAspectRatios {
		if r == v {
			return true
		}
	}
	return false
}
