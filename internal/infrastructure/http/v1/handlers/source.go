package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/thenano/openmrs-module-idgen/internal/core/id"
	"github.com/thenano/openmrs-module-idgen/internal/domain/idgen"
	"github.com/thenano/openmrs-module-idgen/internal/infrastructure/http/v1/dto"
)

// SourceHandler handles identifier source management and generation.
type SourceHandler struct {
	*BaseHandler
	service *idgen.Service
}

// NewSourceHandler creates a source handler.
func NewSourceHandler(base *BaseHandler, service *idgen.Service) *SourceHandler {
	return &SourceHandler{BaseHandler: base, service: service}
}

// Types lists supported source types.
// GET /api/v1/idgen/source-types
func (h *SourceHandler) Types(c *gin.Context) {
	h.OK(c, h.service.SourceTypes())
}

// List returns sources, optionally filtered by type.
// GET /api/v1/idgen/sources?type=&includeRetired=
func (h *SourceHandler) List(c *gin.Context) {
	includeRetired := h.BoolQuery(c, "includeRetired")

	var (
		sources []idgen.IdentifierSource
		err     error
	)
	if sourceType := c.Query("type"); sourceType != "" {
		sources, err = h.service.SourcesByType(c.Request.Context(), idgen.SourceType(sourceType), includeRetired)
	} else {
		sources, err = h.service.AllSources(c.Request.Context(), includeRetired)
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.SourceResponse, 0, len(sources))
	for _, s := range sources {
		items = append(items, dto.FromSource(s))
	}
	h.OK(c, dto.SourceListResponse{Items: items, Total: len(items)})
}

// Get returns one source.
// GET /api/v1/idgen/sources/:id
func (h *SourceHandler) Get(c *gin.Context) {
	sourceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	source, err := h.service.GetSource(c.Request.Context(), sourceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSource(source))
}

// Create registers a new source.
// POST /api/v1/idgen/sources
func (h *SourceHandler) Create(c *gin.Context) {
	var req dto.SourceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	source, err := req.ToSource(id.Nil())
	if err != nil {
		h.Error(c, err)
		return
	}

	saved, err := h.service.SaveSource(c.Request.Context(), source)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, saved.Info().ID.String())
}

// Update modifies an existing source.
// PUT /api/v1/idgen/sources/:id
func (h *SourceHandler) Update(c *gin.Context) {
	sourceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.SourceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	source, err := req.ToSource(sourceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	saved, err := h.service.SaveSource(c.Request.Context(), source)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSource(saved))
}

// Retire soft-retires a source.
// POST /api/v1/idgen/sources/:id/retire
func (h *SourceHandler) Retire(c *gin.Context) {
	sourceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.RetireRequest
	if !h.BindJSON(c, &req) {
		return
	}

	source, err := h.service.RetireSource(c.Request.Context(), sourceID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSource(source))
}

// Purge permanently removes a source.
// DELETE /api/v1/idgen/sources/:id
func (h *SourceHandler) Purge(c *gin.Context) {
	sourceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.PurgeSource(c.Request.Context(), sourceID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Generate issues a batch of identifiers from a source.
// POST /api/v1/idgen/sources/:id/identifiers
func (h *SourceHandler) Generate(c *gin.Context) {
	sourceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.GenerateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.BatchSize == 0 {
		req.BatchSize = 1
	}

	identifiers, err := h.service.GenerateIdentifiers(c.Request.Context(), sourceID, req.BatchSize, req.Comment)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.GenerateResponse{Identifiers: identifiers})
}

// GetSequenceValue reads the committed counter of a sequential source.
// GET /api/v1/idgen/sources/:id/sequence-value
func (h *SourceHandler) GetSequenceValue(c *gin.Context) {
	sourceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	value, err := h.service.SequenceValue(c.Request.Context(), sourceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SequenceValueResponse{Value: value})
}

// SetSequenceValue overwrites the counter of a sequential source.
// PUT /api/v1/idgen/sources/:id/sequence-value
func (h *SourceHandler) SetSequenceValue(c *gin.Context) {
	sourceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.SequenceValueRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetSequenceValue(c.Request.Context(), sourceID, req.Value); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "sequence value updated")
}
