package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/core/id"
	"github.com/thenano/openmrs-module-idgen/internal/domain/idgen"
	"github.com/thenano/openmrs-module-idgen/internal/infrastructure/http/v1/dto"
)

// LogHandler handles issuance ledger queries.
type LogHandler struct {
	*BaseHandler
	service *idgen.Service
}

// NewLogHandler creates a ledger handler.
func NewLogHandler(base *BaseHandler, service *idgen.Service) *LogHandler {
	return &LogHandler{BaseHandler: base, service: service}
}

// List returns ledger entries matching the query, oldest first.
// GET /api/v1/idgen/log-entries?source=&from=&to=&identifier=&generatedBy=&comment=
func (h *LogHandler) List(c *gin.Context) {
	var filter idgen.LogFilter

	if raw := c.Query("source"); raw != "" {
		sourceID, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid source id").WithDetail("value", raw))
			return
		}
		filter.SourceID = &sourceID
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid from date, expected YYYY-MM-DD").WithDetail("value", raw))
			return
		}
		filter.FromDate = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid to date, expected YYYY-MM-DD").WithDetail("value", raw))
			return
		}
		filter.ToDate = &to
	}
	filter.Identifier = c.Query("identifier")
	filter.GeneratedBy = c.Query("generatedBy")
	filter.Comment = c.Query("comment")

	entries, err := h.service.LogEntries(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.LogEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.FromLogEntry(e))
	}
	h.OK(c, items)
}
