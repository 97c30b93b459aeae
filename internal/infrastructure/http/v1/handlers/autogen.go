package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/thenano/openmrs-module-idgen/internal/core/id"
	"github.com/thenano/openmrs-module-idgen/internal/domain/idgen"
	"github.com/thenano/openmrs-module-idgen/internal/infrastructure/http/v1/dto"
)

// AutoGenerationHandler handles auto-generation option endpoints.
type AutoGenerationHandler struct {
	*BaseHandler
	service *idgen.Service
}

// NewAutoGenerationHandler creates an auto-generation handler.
func NewAutoGenerationHandler(base *BaseHandler, service *idgen.Service) *AutoGenerationHandler {
	return &AutoGenerationHandler{BaseHandler: base, service: service}
}

// List returns all options.
// GET /api/v1/idgen/autogeneration-options
func (h *AutoGenerationHandler) List(c *gin.Context) {
	options, err := h.service.AutoGenerationOptions(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.AutoGenerationOptionResponse, 0, len(options))
	for _, o := range options {
		items = append(items, dto.FromOption(o))
	}
	h.OK(c, items)
}

// GetByType returns the option covering one identifier type.
// GET /api/v1/idgen/autogeneration-options/:type
func (h *AutoGenerationHandler) GetByType(c *gin.Context) {
	option, err := h.service.AutoGenerationOption(c.Request.Context(), c.Param("type"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOption(option))
}

// Save creates or updates an option.
// POST /api/v1/idgen/autogeneration-options
func (h *AutoGenerationHandler) Save(c *gin.Context) {
	var req dto.AutoGenerationOptionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	option, err := req.ToOption(id.Nil())
	if err != nil {
		h.Error(c, err)
		return
	}

	saved, err := h.service.SaveAutoGenerationOption(c.Request.Context(), option)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOption(saved))
}

// Update modifies an existing option by id.
// PUT /api/v1/idgen/autogeneration-options/:id
func (h *AutoGenerationHandler) Update(c *gin.Context) {
	optionID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.AutoGenerationOptionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	option, err := req.ToOption(optionID)
	if err != nil {
		h.Error(c, err)
		return
	}

	saved, err := h.service.SaveAutoGenerationOption(c.Request.Context(), option)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOption(saved))
}

// Purge permanently removes an option.
// DELETE /api/v1/idgen/autogeneration-options/:id
func (h *AutoGenerationHandler) Purge(c *gin.Context) {
	optionID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.PurgeAutoGenerationOption(c.Request.Context(), optionID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
