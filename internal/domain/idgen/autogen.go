package idgen

import (
	"context"
	"strings"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/core/entity"
	"github.com/thenano/openmrs-module-idgen/internal/core/id"
)

// AutoGenerationOption selects which source auto-generates identifiers for
// one identifier-type classification, and whether manual entry is allowed.
// At most one option may exist per identifier type.
type AutoGenerationOption struct {
	entity.BaseEntity

	// IdentifierType is the classification this option applies to
	// (e.g. a patient identifier type name).
	IdentifierType string `db:"identifier_type" json:"identifierType"`

	// SourceID references the generating source.
	SourceID id.ID `db:"source_id" json:"sourceId"`

	// AutomaticGenerationEnabled generates an identifier on record creation.
	AutomaticGenerationEnabled bool `db:"automatic_generation_enabled" json:"automaticGenerationEnabled"`

	// ManualEntryEnabled permits callers to type an identifier by hand.
	ManualEntryEnabled bool `db:"manual_entry_enabled" json:"manualEntryEnabled"`
}

// NewAutoGenerationOption creates an option with generation enabled and
// manual entry disabled, matching the common configuration.
func NewAutoGenerationOption(identifierType string, sourceID id.ID) *AutoGenerationOption {
	return &AutoGenerationOption{
		BaseEntity:                 entity.NewBaseEntity(),
		IdentifierType:             identifierType,
		SourceID:                   sourceID,
		AutomaticGenerationEnabled: true,
	}
}

// Validate implements entity.Validatable.
func (o *AutoGenerationOption) Validate(ctx context.Context) error {
	if strings.TrimSpace(o.IdentifierType) == "" {
		return apperror.NewValidation("identifier type is required").
			WithDetail("field", "identifierType")
	}
	if id.IsNil(o.SourceID) {
		return apperror.NewValidation("source is required").
			WithDetail("field", "sourceId")
	}
	return nil
}
