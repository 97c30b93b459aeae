// Package idgen provides the identifier generation engine: identifier
// sources, generation processors, the identifier pool, and the issuance
// ledger.
package idgen

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/core/checkdigit"
	"github.com/thenano/openmrs-module-idgen/internal/core/entity"
	"github.com/thenano/openmrs-module-idgen/internal/core/id"
)

// SourceType tags the concrete variant of an identifier source.
// Processors are registered against these tags.
type SourceType string

const (
	SourceTypeSequential SourceType = "sequential"
	SourceTypeRemote     SourceType = "remote"
	SourceTypePool       SourceType = "pool"
)

// SourceTypes returns all source types the engine supports out of the box.
func SourceTypes() []SourceType {
	return []SourceType{SourceTypeSequential, SourceTypeRemote, SourceTypePool}
}

// DefaultBaseCharacterSet is used by sequential sources that don't
// configure their own alphabet.
const DefaultBaseCharacterSet = "0123456789"

// IdentifierSource is a configured strategy capable of producing unique
// identifier strings. Variants carry strategy-specific configuration.
type IdentifierSource interface {
	entity.Validatable

	// Info returns the common identity and retire metadata.
	Info() *SourceInfo

	// Type returns the variant tag used for processor dispatch.
	Type() SourceType
}

// SourceInfo holds identity, audit and retire metadata common to all
// source variants.
type SourceInfo struct {
	entity.BaseEntity
	entity.Retireable

	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
}

// NewSourceInfo creates source metadata with a generated id.
func NewSourceInfo(name string) SourceInfo {
	return SourceInfo{
		BaseEntity: entity.NewBaseEntity(),
		Name:       name,
	}
}

// Validate checks common source invariants.
func (s *SourceInfo) Validate(ctx context.Context) error {
	if strings.TrimSpace(s.Name) == "" {
		return apperror.NewValidation("source name is required").
			WithDetail("field", "name")
	}
	return nil
}

// --- Sequential source ---

// SequentialSource issues identifiers from a monotonic counter rendered in
// a configurable character set, with optional prefix, suffix and check digit.
//
// The stored counter value always equals the last value handed out; a
// reservation of N values advances it by N in a single atomic statement.
type SequentialSource struct {
	SourceInfo

	// Prefix and Suffix wrap the rendered counter value.
	Prefix string `db:"seq_prefix" json:"prefix,omitempty"`
	Suffix string `db:"seq_suffix" json:"suffix,omitempty"`

	// FirstIdentifierBase seeds the counter on first use, expressed in the
	// base character set (kept as a string to preserve leading zeros).
	// The first issued value is base+1.
	FirstIdentifierBase string `db:"seq_first_base" json:"firstIdentifierBase,omitempty"`

	// MinLength pads the rendered value with the zero character of the
	// character set. MaxLength of 0 means unbounded.
	MinLength int `db:"seq_min_length" json:"minLength,omitempty"`
	MaxLength int `db:"seq_max_length" json:"maxLength,omitempty"`

	// BaseCharacterSet is the ordered alphabet the counter is rendered in.
	BaseCharacterSet string `db:"seq_base_charset" json:"baseCharacterSet"`

	// CheckDigitAlgorithm optionally names a registered check-digit
	// algorithm appended to every identifier.
	CheckDigitAlgorithm string `db:"seq_check_digit" json:"checkDigitAlgorithm,omitempty"`

	// NextValue is the persisted counter (last reserved value). Owned by
	// the sequence store; mutated only through atomic reservation.
	NextValue int64 `db:"seq_next_value" json:"nextValue"`
}

// NewSequentialSource creates a sequential source with the default
// decimal character set.
func NewSequentialSource(name string) *SequentialSource {
	return &SequentialSource{
		SourceInfo:       NewSourceInfo(name),
		BaseCharacterSet: DefaultBaseCharacterSet,
	}
}

func (s *SequentialSource) Info() *SourceInfo { return &s.SourceInfo }
func (s *SequentialSource) Type() SourceType  { return SourceTypeSequential }

// Validate implements entity.Validatable.
func (s *SequentialSource) Validate(ctx context.Context) error {
	if err := s.SourceInfo.Validate(ctx); err != nil {
		return err
	}
	if s.BaseCharacterSet == "" {
		return apperror.NewValidation("base character set is required").
			WithDetail("field", "baseCharacterSet")
	}
	seen := make(map[rune]bool, len(s.BaseCharacterSet))
	for _, c := range s.BaseCharacterSet {
		if seen[c] {
			return apperror.NewValidation("base character set must not repeat characters").
				WithDetail("character", string(c))
		}
		seen[c] = true
	}
	if s.FirstIdentifierBase != "" {
		if _, err := decodeInBase(s.FirstIdentifierBase, s.BaseCharacterSet); err != nil {
			return apperror.NewValidation("first identifier base is not expressible in the base character set").
				WithDetail("field", "firstIdentifierBase").
				WithDetail("value", s.FirstIdentifierBase)
		}
	}
	if s.MinLength < 0 {
		return apperror.NewValidation("min length must not be negative").
			WithDetail("field", "minLength")
	}
	if s.MaxLength != 0 && s.MaxLength < s.MinLength {
		return apperror.NewValidation("max length must not be smaller than min length").
			WithDetail("field", "maxLength")
	}
	return nil
}

// InitialValue returns the counter seed decoded from FirstIdentifierBase,
// or 0 when no base is configured.
func (s *SequentialSource) InitialValue() (int64, error) {
	if s.FirstIdentifierBase == "" {
		return 0, nil
	}
	return decodeInBase(s.FirstIdentifierBase, s.BaseCharacterSet)
}

// Format renders a raw counter value as an external identifier string.
// Formatting is deterministic: the same value and configuration always
// yield the same identifier. A value that cannot fit MaxLength is a fatal
// configuration error, not retried.
func (s *SequentialSource) Format(value int64, alg checkdigit.Algorithm) (string, error) {
	rendered := encodeInBase(value, s.BaseCharacterSet, s.MinLength)
	if s.MaxLength != 0 && utf8.RuneCountInString(rendered) > s.MaxLength {
		return "", apperror.NewGenerationFailure("identifier exceeds configured max length").
			WithDetail("source", s.Name).
			WithDetail("value", value).
			WithDetail("max_length", s.MaxLength)
	}
	identifier := s.Prefix + rendered + s.Suffix
	if alg != nil {
		decorated, err := alg.Append(identifier)
		if err != nil {
			return "", apperror.NewGenerationFailure("check digit computation failed").
				WithDetail("source", s.Name).
				WithCause(err)
		}
		identifier = decorated
	}
	return identifier, nil
}

// encodeInBase renders n in the given ordered alphabet, left-padded with
// the alphabet's zero character to minLength. The alphabet is treated as
// a sequence of runes so multi-byte characters count as one digit.
func encodeInBase(n int64, charset string, minLength int) string {
	digits := []rune(charset)
	base := int64(len(digits))
	var out []rune
	for n > 0 {
		out = append(out, digits[n%base])
		n /= base
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if len(out) == 0 {
		out = append(out, digits[0])
	}
	for len(out) < minLength {
		out = append([]rune{digits[0]}, out...)
	}
	return string(out)
}

// decodeInBase parses a string expressed in the given ordered alphabet.
func decodeInBase(s, charset string) (int64, error) {
	digits := []rune(charset)
	base := int64(len(digits))
	var n int64
	for _, c := range s {
		idx := -1
		for i, d := range digits {
			if d == c {
				idx = i
				break
			}
		}
		if idx < 0 {
			return 0, fmt.Errorf("character %q not in base character set", c)
		}
		n = n*base + int64(idx)
	}
	return n, nil
}

// --- Remote source ---

// DefaultRemoteTimeout bounds remote generation calls when the source does
// not configure its own timeout.
const DefaultRemoteTimeout = 30 * time.Second

// RemoteSource delegates identifier generation to an external system.
// Uniqueness is the remote side's responsibility; the local side still
// serializes its own requests per source so an ambiguous failure is never
// blindly retried.
type RemoteSource struct {
	SourceInfo

	URL      string `db:"remote_url" json:"url"`
	Username string `db:"remote_username" json:"username,omitempty"`
	Password string `db:"remote_password" json:"-"`

	// Timeout bounds each remote call. Zero means DefaultRemoteTimeout.
	Timeout time.Duration `db:"remote_timeout" json:"timeout,omitempty"`
}

// NewRemoteSource creates a remote source.
func NewRemoteSource(name, rawURL string) *RemoteSource {
	return &RemoteSource{
		SourceInfo: NewSourceInfo(name),
		URL:        rawURL,
	}
}

func (s *RemoteSource) Info() *SourceInfo { return &s.SourceInfo }
func (s *RemoteSource) Type() SourceType  { return SourceTypeRemote }

// Validate implements entity.Validatable.
func (s *RemoteSource) Validate(ctx context.Context) error {
	if err := s.SourceInfo.Validate(ctx); err != nil {
		return err
	}
	if s.URL == "" {
		return apperror.NewValidation("remote source url is required").
			WithDetail("field", "url")
	}
	if _, err := url.ParseRequestURI(s.URL); err != nil {
		return apperror.NewValidation("remote source url is malformed").
			WithDetail("field", "url").
			WithDetail("value", s.URL)
	}
	if s.Timeout < 0 {
		return apperror.NewValidation("remote timeout must not be negative").
			WithDetail("field", "timeout")
	}
	return nil
}

// EffectiveTimeout returns the configured timeout or the default.
func (s *RemoteSource) EffectiveTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultRemoteTimeout
}

// --- Identifier pool ---

// IdentifierPool is a buffer of pre-generated identifiers with
// available/used tracking, refillable from a backing source.
type IdentifierPool struct {
	SourceInfo

	// BackingSourceID references the source used to refill the pool.
	// Nil for pools filled exclusively by uploads.
	BackingSourceID *id.ID `db:"pool_source_id" json:"backingSourceId,omitempty"`

	// BatchSize is how many identifiers a refill draws from the backing
	// source.
	BatchSize int `db:"pool_batch_size" json:"batchSize,omitempty"`

	// MinPoolSize is the low watermark that triggers a scheduled refill.
	MinPoolSize int `db:"pool_min_size" json:"minPoolSize,omitempty"`

	// SequentialAllocation controls consumption order: insertion order when
	// true, random otherwise.
	SequentialAllocation bool `db:"pool_sequential" json:"sequentialAllocation"`

	// RefillWithScheduledTask opts the pool into the background refill
	// scan. Refill is never performed inline during a read.
	RefillWithScheduledTask bool `db:"pool_refill_scheduled" json:"refillWithScheduledTask"`
}

// NewIdentifierPool creates a pool source.
func NewIdentifierPool(name string) *IdentifierPool {
	return &IdentifierPool{SourceInfo: NewSourceInfo(name)}
}

func (p *IdentifierPool) Info() *SourceInfo { return &p.SourceInfo }
func (p *IdentifierPool) Type() SourceType  { return SourceTypePool }

// Validate implements entity.Validatable.
func (p *IdentifierPool) Validate(ctx context.Context) error {
	if err := p.SourceInfo.Validate(ctx); err != nil {
		return err
	}
	if p.BatchSize < 0 || p.MinPoolSize < 0 {
		return apperror.NewValidation("pool sizes must not be negative")
	}
	if p.RefillWithScheduledTask && p.BackingSourceID == nil {
		return apperror.NewValidation("scheduled refill requires a backing source").
			WithDetail("field", "backingSourceId")
	}
	if p.BackingSourceID != nil && *p.BackingSourceID == p.ID {
		return apperror.NewValidation("pool cannot be its own backing source").
			WithDetail("field", "backingSourceId")
	}
	return nil
}
