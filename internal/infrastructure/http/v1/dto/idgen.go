package dto

import (
	"time"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/core/id"
	"github.com/thenano/openmrs-module-idgen/internal/domain/idgen"
)

// SourceRequest creates or updates an identifier source. Type selects
// the variant; only the matching variant fields are read.
type SourceRequest struct {
	Type        string `json:"type" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Version     int    `json:"version"`

	// sequential
	Prefix              string `json:"prefix"`
	Suffix              string `json:"suffix"`
	FirstIdentifierBase string `json:"firstIdentifierBase"`
	MinLength           int    `json:"minLength"`
	MaxLength           int    `json:"maxLength"`
	BaseCharacterSet    string `json:"baseCharacterSet"`
	CheckDigitAlgorithm string `json:"checkDigitAlgorithm"`

	// remote
	URL            string `json:"url"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	TimeoutSeconds int    `json:"timeoutSeconds"`

	// pool
	BackingSourceID         string `json:"backingSourceId"`
	BatchSize               int    `json:"batchSize"`
	MinPoolSize             int    `json:"minPoolSize"`
	SequentialAllocation    bool   `json:"sequentialAllocation"`
	RefillWithScheduledTask bool   `json:"refillWithScheduledTask"`
}

// ToSource builds the domain variant. A zero sourceID means create.
func (r *SourceRequest) ToSource(sourceID id.ID) (idgen.IdentifierSource, error) {
	var source idgen.IdentifierSource

	switch idgen.SourceType(r.Type) {
	case idgen.SourceTypeSequential:
		s := idgen.NewSequentialSource(r.Name)
		s.Prefix = r.Prefix
		s.Suffix = r.Suffix
		s.FirstIdentifierBase = r.FirstIdentifierBase
		s.MinLength = r.MinLength
		s.MaxLength = r.MaxLength
		if r.BaseCharacterSet != "" {
			s.BaseCharacterSet = r.BaseCharacterSet
		}
		s.CheckDigitAlgorithm = r.CheckDigitAlgorithm
		source = s

	case idgen.SourceTypeRemote:
		s := idgen.NewRemoteSource(r.Name, r.URL)
		s.Username = r.Username
		s.Password = r.Password
		s.Timeout = time.Duration(r.TimeoutSeconds) * time.Second
		source = s

	case idgen.SourceTypePool:
		p := idgen.NewIdentifierPool(r.Name)
		if r.BackingSourceID != "" {
			backingID, err := id.Parse(r.BackingSourceID)
			if err != nil {
				return nil, apperror.NewValidation("invalid backing source id").
					WithDetail("value", r.BackingSourceID)
			}
			p.BackingSourceID = &backingID
		}
		p.BatchSize = r.BatchSize
		p.MinPoolSize = r.MinPoolSize
		p.SequentialAllocation = r.SequentialAllocation
		p.RefillWithScheduledTask = r.RefillWithScheduledTask
		source = p

	default:
		return nil, apperror.NewUnsupportedSource(r.Type)
	}

	info := source.Info()
	info.Description = r.Description
	if !id.IsNil(sourceID) {
		info.ID = sourceID
		info.Version = r.Version
	}
	return source, nil
}

// SourceResponse is the wire shape of any source variant.
type SourceResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	Retired     bool      `json:"retired"`

	Sequential *SequentialConfig `json:"sequential,omitempty"`
	Remote     *RemoteConfig     `json:"remote,omitempty"`
	Pool       *PoolConfig       `json:"pool,omitempty"`
}

// SequentialConfig is the sequential variant configuration.
type SequentialConfig struct {
	Prefix              string `json:"prefix,omitempty"`
	Suffix              string `json:"suffix,omitempty"`
	FirstIdentifierBase string `json:"firstIdentifierBase,omitempty"`
	MinLength           int    `json:"minLength,omitempty"`
	MaxLength           int    `json:"maxLength,omitempty"`
	BaseCharacterSet    string `json:"baseCharacterSet"`
	CheckDigitAlgorithm string `json:"checkDigitAlgorithm,omitempty"`
	NextValue           int64  `json:"nextValue"`
}

// RemoteConfig is the remote variant configuration. The password never
// leaves the server.
type RemoteConfig struct {
	URL            string `json:"url"`
	Username       string `json:"username,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

// PoolConfig is the pool variant configuration.
type PoolConfig struct {
	BackingSourceID         string `json:"backingSourceId,omitempty"`
	BatchSize               int    `json:"batchSize,omitempty"`
	MinPoolSize             int    `json:"minPoolSize,omitempty"`
	SequentialAllocation    bool   `json:"sequentialAllocation"`
	RefillWithScheduledTask bool   `json:"refillWithScheduledTask"`
}

// FromSource converts a domain source to its wire shape.
func FromSource(source idgen.IdentifierSource) SourceResponse {
	info := source.Info()
	resp := SourceResponse{
		ID:          info.ID.String(),
		Type:        string(source.Type()),
		Name:        info.Name,
		Description: info.Description,
		Version:     info.Version,
		CreatedAt:   info.CreatedAt,
		Retired:     info.Retired,
	}

	switch s := source.(type) {
	case *idgen.SequentialSource:
		resp.Sequential = &SequentialConfig{
			Prefix:              s.Prefix,
			Suffix:              s.Suffix,
			FirstIdentifierBase: s.FirstIdentifierBase,
			MinLength:           s.MinLength,
			MaxLength:           s.MaxLength,
			BaseCharacterSet:    s.BaseCharacterSet,
			CheckDigitAlgorithm: s.CheckDigitAlgorithm,
			NextValue:           s.NextValue,
		}
	case *idgen.RemoteSource:
		resp.Remote = &RemoteConfig{
			URL:            s.URL,
			Username:       s.Username,
			TimeoutSeconds: int(s.Timeout / time.Second),
		}
	case *idgen.IdentifierPool:
		cfg := &PoolConfig{
			BatchSize:               s.BatchSize,
			MinPoolSize:             s.MinPoolSize,
			SequentialAllocation:    s.SequentialAllocation,
			RefillWithScheduledTask: s.RefillWithScheduledTask,
		}
		if s.BackingSourceID != nil {
			cfg.BackingSourceID = s.BackingSourceID.String()
		}
		resp.Pool = cfg
	}
	return resp
}

// SourceListResponse wraps a source listing.
type SourceListResponse struct {
	Items []SourceResponse `json:"items"`
	Total int              `json:"total"`
}

// RetireRequest retires a source.
type RetireRequest struct {
	Reason string `json:"reason"`
}

// GenerateRequest asks a source for identifiers.
type GenerateRequest struct {
	BatchSize int    `json:"batchSize"`
	Comment   string `json:"comment"`
}

// GenerateResponse carries issued identifiers.
type GenerateResponse struct {
	Identifiers []string `json:"identifiers"`
}

// SequenceValueRequest overwrites a sequential counter.
type SequenceValueRequest struct {
	Value int64 `json:"value" binding:"required"`
}

// SequenceValueResponse reads a sequential counter.
type SequenceValueResponse struct {
	Value int64 `json:"value"`
}

// PoolUploadRequest adds identifiers to a pool, or draws batchSize from
// the backing source when no identifiers are given.
type PoolUploadRequest struct {
	Identifiers []string `json:"identifiers"`
	BatchSize   int      `json:"batchSize"`
}

// PoolReserveRequest reserves available identifiers from a pool.
type PoolReserveRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// PooledIdentifierResponse is one reserved pool entry.
type PooledIdentifierResponse struct {
	Identifier string     `json:"identifier"`
	AddedAt    time.Time  `json:"addedAt"`
	UsedAt     *time.Time `json:"usedAt,omitempty"`
	UsedBy     string     `json:"usedBy,omitempty"`
}

// QuantityResponse reports a pool size.
type QuantityResponse struct {
	Quantity int `json:"quantity"`
}

// AutoGenerationOptionRequest creates or updates an option.
type AutoGenerationOptionRequest struct {
	IdentifierType             string `json:"identifierType" binding:"required"`
	SourceID                   string `json:"sourceId" binding:"required"`
	AutomaticGenerationEnabled bool   `json:"automaticGenerationEnabled"`
	ManualEntryEnabled         bool   `json:"manualEntryEnabled"`
	Version                    int    `json:"version"`
}

// ToOption builds the domain option. A zero optionID means create.
func (r *AutoGenerationOptionRequest) ToOption(optionID id.ID) (*idgen.AutoGenerationOption, error) {
	sourceID, err := id.Parse(r.SourceID)
	if err != nil {
		return nil, apperror.NewValidation("invalid source id").
			WithDetail("value", r.SourceID)
	}
	option := idgen.NewAutoGenerationOption(r.IdentifierType, sourceID)
	option.AutomaticGenerationEnabled = r.AutomaticGenerationEnabled
	option.ManualEntryEnabled = r.ManualEntryEnabled
	if !id.IsNil(optionID) {
		option.ID = optionID
		option.Version = r.Version
	}
	return option, nil
}

// AutoGenerationOptionResponse is the wire shape of an option.
type AutoGenerationOptionResponse struct {
	ID                         string `json:"id"`
	IdentifierType             string `json:"identifierType"`
	SourceID                   string `json:"sourceId"`
	AutomaticGenerationEnabled bool   `json:"automaticGenerationEnabled"`
	ManualEntryEnabled         bool   `json:"manualEntryEnabled"`
	Version                    int    `json:"version"`
}

// FromOption converts a domain option to its wire shape.
func FromOption(o *idgen.AutoGenerationOption) AutoGenerationOptionResponse {
	return AutoGenerationOptionResponse{
		ID:                         o.ID.String(),
		IdentifierType:             o.IdentifierType,
		SourceID:                   o.SourceID.String(),
		AutomaticGenerationEnabled: o.AutomaticGenerationEnabled,
		ManualEntryEnabled:         o.ManualEntryEnabled,
		Version:                    o.Version,
	}
}

// LogEntryResponse is one issuance ledger record.
type LogEntryResponse struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"sourceId"`
	Identifier  string    `json:"identifier"`
	GeneratedAt time.Time `json:"generatedAt"`
	GeneratedBy string    `json:"generatedBy"`
	Comment     string    `json:"comment,omitempty"`
}

// FromLogEntry converts a ledger record to its wire shape.
func FromLogEntry(e *idgen.LogEntry) LogEntryResponse {
	return LogEntryResponse{
		ID:          e.ID.String(),
		SourceID:    e.SourceID.String(),
		Identifier:  e.Identifier,
		GeneratedAt: e.GeneratedAt,
		GeneratedBy: e.GeneratedBy,
		Comment:     e.Comment,
	}
}
