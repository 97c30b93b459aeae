package idgen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/core/id"
)

// fakeState is the shared in-memory database behind the repository
// fakes. One mutex guards everything, mirroring the serialization the
// real store gets from row locks.
type fakeState struct {
	mu      sync.Mutex
	sources map[id.ID]IdentifierSource
	pooled  map[id.ID][]*PooledIdentifier
	logs    []*LogEntry
	options map[id.ID]*AutoGenerationOption
}

func newFakeState() *fakeState {
	return &fakeState{
		sources: make(map[id.ID]IdentifierSource),
		pooled:  make(map[id.ID][]*PooledIdentifier),
		options: make(map[id.ID]*AutoGenerationOption),
	}
}

// newTestService wires a Service onto fresh fakes.
func newTestService() (*Service, *fakeState) {
	st := newFakeState()
	svc := NewService(ServiceConfig{
		Sources:   &fakeSources{st: st},
		Sequences: &fakeSequences{st: st},
		Pools:     &fakePools{st: st},
		Logs:      &fakeLogs{st: st},
		Options:   &fakeOptions{st: st},
	})
	return svc, st
}

// --- sources ---

type fakeSources struct{ st *fakeState }

func (f *fakeSources) Create(ctx context.Context, source IdentifierSource) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if _, ok := f.st.sources[source.Info().ID]; ok {
		return apperror.NewConflict("source already exists")
	}
	f.st.sources[source.Info().ID] = source
	return nil
}

func (f *fakeSources) Update(ctx context.Context, source IdentifierSource) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	existing, ok := f.st.sources[source.Info().ID]
	if !ok {
		return apperror.NewNotFound("identifier source", source.Info().ID.String())
	}
	// The counter column is owned by the sequence store; an update must
	// not clobber it.
	if seq, ok := source.(*SequentialSource); ok {
		if old, ok := existing.(*SequentialSource); ok {
			seq.NextValue = old.NextValue
		}
	}
	source.Info().Version++
	f.st.sources[source.Info().ID] = source
	return nil
}

func (f *fakeSources) GetByID(ctx context.Context, sourceID id.ID) (IdentifierSource, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	source, ok := f.st.sources[sourceID]
	if !ok {
		return nil, apperror.NewNotFound("identifier source", sourceID.String())
	}
	return source, nil
}

func (f *fakeSources) List(ctx context.Context, includeRetired bool) ([]IdentifierSource, error) {
	return f.list(includeRetired, ""), nil
}

func (f *fakeSources) ListByType(ctx context.Context, sourceType SourceType, includeRetired bool) ([]IdentifierSource, error) {
	return f.list(includeRetired, sourceType), nil
}

func (f *fakeSources) list(includeRetired bool, sourceType SourceType) []IdentifierSource {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var out []IdentifierSource
	for _, s := range f.st.sources {
		if !includeRetired && s.Info().Retired {
			continue
		}
		if sourceType != "" && s.Type() != sourceType {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (f *fakeSources) Purge(ctx context.Context, sourceID id.ID) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if _, ok := f.st.sources[sourceID]; !ok {
		return apperror.NewNotFound("identifier source", sourceID.String())
	}
	delete(f.st.sources, sourceID)
	delete(f.st.pooled, sourceID)
	return nil
}

// --- sequences ---

type fakeSequences struct{ st *fakeState }

func (f *fakeSequences) ReserveRange(ctx context.Context, sourceID id.ID, count int) (int64, int64, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	seq, err := f.sequential(sourceID)
	if err != nil {
		return 0, 0, err
	}
	seq.NextValue += int64(count)
	return seq.NextValue - int64(count) + 1, seq.NextValue, nil
}

func (f *fakeSequences) CurrentValue(ctx context.Context, sourceID id.ID) (int64, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	seq, err := f.sequential(sourceID)
	if err != nil {
		return 0, err
	}
	return seq.NextValue, nil
}

func (f *fakeSequences) SetValue(ctx context.Context, sourceID id.ID, value int64) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	seq, err := f.sequential(sourceID)
	if err != nil {
		return err
	}
	if value < seq.NextValue {
		return apperror.NewConflict("counter cannot move backwards")
	}
	seq.NextValue = value
	return nil
}

func (f *fakeSequences) sequential(sourceID id.ID) (*SequentialSource, error) {
	source, ok := f.st.sources[sourceID]
	if !ok {
		return nil, apperror.NewNotFound("sequential source", sourceID.String())
	}
	seq, ok := source.(*SequentialSource)
	if !ok {
		return nil, apperror.NewNotFound("sequential source", sourceID.String())
	}
	return seq, nil
}

// --- pools ---

type fakePools struct{ st *fakeState }

func (f *fakePools) Reserve(ctx context.Context, pool *IdentifierPool, count int, usedBy string) ([]*PooledIdentifier, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var reserved []*PooledIdentifier
	now := time.Now().UTC()
	for _, entry := range f.st.pooled[pool.ID] {
		if len(reserved) == count {
			break
		}
		if entry.Status != PooledAvailable {
			continue
		}
		entry.Status = PooledUsed
		entry.UsedAt = &now
		by := usedBy
		entry.UsedBy = &by
		reserved = append(reserved, entry)
	}
	return reserved, nil
}

func (f *fakePools) Count(ctx context.Context, poolID id.ID, availableOnly, usedOnly bool) (int, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if availableOnly && usedOnly {
		return 0, nil
	}
	n := 0
	for _, entry := range f.st.pooled[poolID] {
		switch {
		case availableOnly && entry.Status != PooledAvailable:
		case usedOnly && entry.Status != PooledUsed:
		default:
			n++
		}
	}
	return n, nil
}

func (f *fakePools) Add(ctx context.Context, poolID id.ID, identifiers []string) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	existing := make(map[string]bool)
	for _, entry := range f.st.pooled[poolID] {
		existing[entry.Identifier] = true
	}
	for _, identifier := range identifiers {
		if existing[identifier] {
			return apperror.NewConflict(fmt.Sprintf("identifier %q already in pool", identifier))
		}
		existing[identifier] = true
	}
	for _, identifier := range identifiers {
		f.st.pooled[poolID] = append(f.st.pooled[poolID], NewPooledIdentifier(poolID, identifier))
	}
	return nil
}

// --- logs ---

type fakeLogs struct{ st *fakeState }

func (f *fakeLogs) Append(ctx context.Context, entries []*LogEntry) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	f.st.logs = append(f.st.logs, entries...)
	return nil
}

func (f *fakeLogs) List(ctx context.Context, filter LogFilter) ([]*LogEntry, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var out []*LogEntry
	for _, e := range f.st.logs {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- auto-generation options ---

type fakeOptions struct{ st *fakeState }

func (f *fakeOptions) Create(ctx context.Context, option *AutoGenerationOption) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	for _, o := range f.st.options {
		if o.IdentifierType == option.IdentifierType {
			return apperror.NewConflict("identifier type already covered")
		}
	}
	f.st.options[option.ID] = option
	return nil
}

func (f *fakeOptions) Update(ctx context.Context, option *AutoGenerationOption) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if _, ok := f.st.options[option.ID]; !ok {
		return apperror.NewConflict("option does not exist")
	}
	option.Version++
	f.st.options[option.ID] = option
	return nil
}

func (f *fakeOptions) GetByType(ctx context.Context, identifierType string) (*AutoGenerationOption, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	for _, o := range f.st.options {
		if o.IdentifierType == identifierType {
			return o, nil
		}
	}
	return nil, apperror.NewNotFound("auto-generation option", identifierType)
}

func (f *fakeOptions) List(ctx context.Context) ([]*AutoGenerationOption, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	out := make([]*AutoGenerationOption, 0, len(f.st.options))
	for _, o := range f.st.options {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOptions) Purge(ctx context.Context, optionID id.ID) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if _, ok := f.st.options[optionID]; !ok {
		return apperror.NewNotFound("auto-generation option", optionID.String())
	}
	delete(f.st.options, optionID)
	return nil
}

// customSource is an unregistered variant used to exercise processor
// dispatch failures.
type customSource struct {
	SourceInfo
}

func (c *customSource) Info() *SourceInfo                  { return &c.SourceInfo }
func (c *customSource) Type() SourceType                   { return SourceType("custom") }
func (c *customSource) Validate(ctx context.Context) error { return c.SourceInfo.Validate(ctx) }
