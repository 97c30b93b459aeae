package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/thenano/openmrs-module-idgen/internal/domain/idgen"
	"github.com/thenano/openmrs-module-idgen/internal/infrastructure/http/v1/dto"
)

// PoolHandler handles identifier pool endpoints.
type PoolHandler struct {
	*BaseHandler
	service *idgen.Service
}

// NewPoolHandler creates a pool handler.
func NewPoolHandler(base *BaseHandler, service *idgen.Service) *PoolHandler {
	return &PoolHandler{BaseHandler: base, service: service}
}

// Quantity reports pool sizes.
// GET /api/v1/idgen/pools/:id/quantity?available=&used=
func (h *PoolHandler) Quantity(c *gin.Context) {
	poolID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	quantity, err := h.service.QuantityInPool(c.Request.Context(), poolID,
		h.BoolQuery(c, "available"), h.BoolQuery(c, "used"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.QuantityResponse{Quantity: quantity})
}

// Upload adds identifiers to a pool. An explicit identifier list is
// inserted as-is; a batchSize instead draws from the backing source.
// Large uploads may arrive gzip-encoded.
// POST /api/v1/idgen/pools/:id/identifiers
func (h *PoolHandler) Upload(c *gin.Context) {
	poolID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.PoolUploadRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if len(req.Identifiers) > 0 {
		if err := h.service.AddIdentifiersToPool(ctx, poolID, req.Identifiers); err != nil {
			h.Error(c, err)
			return
		}
		h.Success(c, "identifiers added to pool")
		return
	}

	if err := h.service.FillPoolFromSource(ctx, poolID, req.BatchSize); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "pool filled from backing source")
}

// Reserve hands out up to quantity available identifiers, flipping them
// to used.
// POST /api/v1/idgen/pools/:id/reserve
func (h *PoolHandler) Reserve(c *gin.Context) {
	poolID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.PoolReserveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	entries, err := h.service.AvailableIdentifiers(c.Request.Context(), poolID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.PooledIdentifierResponse, 0, len(entries))
	for _, e := range entries {
		item := dto.PooledIdentifierResponse{
			Identifier: e.Identifier,
			AddedAt:    e.AddedAt,
			UsedAt:     e.UsedAt,
		}
		if e.UsedBy != nil {
			item.UsedBy = *e.UsedBy
		}
		items = append(items, item)
	}
	h.OK(c, items)
}
