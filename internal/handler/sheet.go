package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/skustudio/api/internal/model"
	"github.com/skustudio/api/internal/service"
	"github.com/skustudio/api/pkg/response"
)

type SheetHandler struct {
	service *service.SheetService
	batch   *service.BatchService
}

func NewSheetHandler(svc *service.SheetService, batch *service.BatchService) *SheetHandler {
	return &SheetHandler{
		service: svc,
		batch:   batch,
	}
}

// Parse handles POST /api/sheet/parse
// @Summary      Parse product sheet
// @Description  Parse an uploaded XLSX file into product item rows
// @Tags         Sheet
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "XLSX file"
// @Success      200 {object} model.SheetParseResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sheet/parse [post]
func (h *SheetHandler) Parse(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "Missing file upload", nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.ValidationError(c, "Cannot read uploaded file", nil)
	}
	defer file.Close()

	result, err := h.service.Parse(file)
	if err != nil {
		if errors.Is(err, service.ErrNoRows) {
			return response.ValidationError(c, "Sheet contains no usable rows", nil)
		}
		return response.ValidationError(c, err.Error(), nil)
	}

	return response.OK(c, result)
}

// Create handles POST /api/sheet/create
// @Summary      Create job from sheet
// @Description  Parse an uploaded XLSX and create a batch job in one call
// @Tags         Sheet
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "XLSX file"
// @Param        stylePreset formData string true "Style preset"
// @Param        targetLanguage formData string false "Target language"
// @Param        aspectRatio formData string false "Aspect ratio"
// @Param        requirements formData string false "Free-form requirements"
// @Success      201 {object} model.BatchCreateResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sheet/create [post]
func (h *SheetHandler) Create(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "Missing file upload", nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.ValidationError(c, "Cannot read uploaded file", nil)
	}
	defer file.Close()

	parsed, err := h.service.Parse(file)
	if err != nil {
		if errors.Is(err, service.ErrNoRows) {
			return response.ValidationError(c, "Sheet contains no usable rows", nil)
		}
		return response.ValidationError(c, err.Error(), nil)
	}

	preset := model.StylePreset(strings.TrimSpace(c.FormValue("stylePreset")))
	if preset == "" {
		return response.ValidationError(c, "Missing style preset", nil)
	}

	req := &model.BatchCreateRequest{
		Items:          parsed.Items,
		StylePreset:    preset,
		TargetLanguage: model.Language(strings.TrimSpace(c.FormValue("targetLanguage"))),
		AspectRatio:    model.AspectRatio(strings.TrimSpace(c.FormValue("aspectRatio"))),
		Requirements:   c.FormValue("requirements"),
		Options: model.GenerationOptions{
			RenderText: c.FormValue("renderText") == "true",
			Background: c.FormValue("background"),
			Scene:      c.FormValue("scene"),
		},
	}

	result, err := h.batch.CreateJob(req)
	if err != nil {
		if errors.Is(err, service.ErrNoUsableItems) {
			return response.ValidationError(c, "No usable items in sheet", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// Template handles GET /api/sheet/template
// @Summary      Download upload template
// @Description  Download an empty XLSX template with the expected columns
// @Tags         Sheet
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success      200 {file} binary
// @Failure      401 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sheet/template [get]
func (h *SheetHandler) Template(c *fiber.Ctx) error {
	data, err := h.service.BuildTemplate()
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="skustudio_template.xlsx"`)
	return c.Send(data)
}
