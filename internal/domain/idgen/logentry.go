package idgen

import (
	"strings"
	"time"

	"github.com/thenano/openmrs-module-idgen/internal/core/id"
)

// LogEntry is an immutable audit record of one identifier issuance.
// Entries are append-only: the ledger supports no update or delete.
type LogEntry struct {
	ID          id.ID     `db:"id" json:"id"`
	SourceID    id.ID     `db:"source_id" json:"sourceId"`
	Identifier  string    `db:"identifier" json:"identifier"`
	GeneratedAt time.Time `db:"generated_at" json:"generatedAt"`
	GeneratedBy string    `db:"generated_by" json:"generatedBy"`
	Comment     string    `db:"comment" json:"comment,omitempty"`
}

// NewLogEntry records an issuance at the current instant.
func NewLogEntry(sourceID id.ID, identifier, generatedBy, comment string) *LogEntry {
	return &LogEntry{
		ID:          id.New(),
		SourceID:    sourceID,
		Identifier:  identifier,
		GeneratedAt: time.Now().UTC(),
		GeneratedBy: generatedBy,
		Comment:     comment,
	}
}

// LogFilter narrows ledger queries. All criteria are optional and
// conjunctive. Date bounds compare by calendar date only.
type LogFilter struct {
	SourceID    *id.ID
	FromDate    *time.Time
	ToDate      *time.Time
	Identifier  string // substring match
	GeneratedBy string // exact match
	Comment     string // substring match
}

// Matches reports whether an entry satisfies every set criterion.
// Shared by the in-memory store used in tests and kept here so the
// filtering semantics live next to the type they describe.
func (f LogFilter) Matches(e *LogEntry) bool {
	if f.SourceID != nil && e.SourceID != *f.SourceID {
		return false
	}
	if f.FromDate != nil && dateOnly(e.GeneratedAt).Before(dateOnly(*f.FromDate)) {
		return false
	}
	if f.ToDate != nil && dateOnly(e.GeneratedAt).After(dateOnly(*f.ToDate)) {
		return false
	}
	if f.Identifier != "" && !strings.Contains(e.Identifier, f.Identifier) {
		return false
	}
	if f.GeneratedBy != "" && e.GeneratedBy != f.GeneratedBy {
		return false
	}
	if f.Comment != "" && !strings.Contains(e.Comment, f.Comment) {
		return false
	}
	return true
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
