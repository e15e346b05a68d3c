package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/skustudio/api/internal/model"
	"github.com/skustudio/api/internal/service"
	"github.com/skustudio/api/pkg/response"
)

type CopyHandler struct {
	service   *service.CopyService
	validator *validator.Validate
}

func NewCopyHandler(svc *service.CopyService, v *validator.Validate) *CopyHandler {
	return &CopyHandler{
		service:   svc,
		validator: v,
	}
}

// Rewrite handles POST /api/copy/rewrite
// @Summary      Rewrite product title
// @Description  Generate marketplace-styled title candidates with AI
// @Tags         Copy
// @Accept       json
// @Produce      json
// @Param        request body model.CopyRewriteRequest true "Rewrite request"
// @Success      200 {object} model.CopyRewriteResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/copy/rewrite [post]
func (h *CopyHandler) Rewrite(c *fiber.Ctx) error {
	var req model.CopyRewriteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Rewrite(c.Context(), &req)
	if err != nil {
		return response.AIError(c, err.Error())
	}

	return response.OK(c, result)
}

// Translate handles POST /api/copy/translate
// @Summary      Translate product copy
// @Description  Translate product copy between supported languages
// @Tags         Copy
// @Accept       json
// @Produce      json
// @Param        request body model.CopyTranslateRequest true "Translate request"
// @Success      200 {object} model.CopyTranslateResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/copy/translate [post]
func (h *CopyHandler) Translate(c *fiber.Ctx) error {
	var req model.CopyTranslateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Translate(c.Context(), &req)
	if err != nil {
		return response.AIError(c, err.Error())
	}

	return response.OK(c, result)
}
