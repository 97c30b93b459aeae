package idgen

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/core/checkdigit"
	appctx "github.com/thenano/openmrs-module-idgen/internal/core/context"
	"github.com/thenano/openmrs-module-idgen/internal/core/id"
)

func saveSequential(t *testing.T, svc *Service, name, base string) *SequentialSource {
	t.Helper()
	source := NewSequentialSource(name)
	source.FirstIdentifierBase = base
	saved, err := svc.SaveSource(context.Background(), source)
	require.NoError(t, err)
	return saved.(*SequentialSource)
}

func savePool(t *testing.T, svc *Service, name string, backing *id.ID) *IdentifierPool {
	t.Helper()
	pool := NewIdentifierPool(name)
	pool.BackingSourceID = backing
	pool.BatchSize = 3
	saved, err := svc.SaveSource(context.Background(), pool)
	require.NoError(t, err)
	return saved.(*IdentifierPool)
}

func TestGenerate_FirstIssuedIsBasePlusOne(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	source := saveSequential(t, svc, "mrn", "1000")

	batch, err := svc.GenerateIdentifiers(ctx, source.ID, 3, "initial batch")
	require.NoError(t, err)
	assert.Equal(t, []string{"1001", "1002", "1003"}, batch)

	next, err := svc.GenerateIdentifier(ctx, source.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "1004", next)
}

func TestGenerate_BatchSizeMustBePositive(t *testing.T) {
	svc, _ := newTestService()
	source := saveSequential(t, svc, "mrn", "")

	_, err := svc.GenerateIdentifiers(context.Background(), source.ID, 0, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = svc.GenerateIdentifiers(context.Background(), source.ID, -5, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestGenerate_RetiredSourceRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	source := saveSequential(t, svc, "mrn", "")

	_, err := svc.RetireSource(ctx, source.ID, "replaced by new scheme")
	require.NoError(t, err)

	_, err = svc.GenerateIdentifiers(ctx, source.ID, 1, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestGenerate_UnknownSource(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.GenerateIdentifier(context.Background(), id.New(), "")
	assert.True(t, apperror.IsNotFound(err))
}

func TestGenerate_UnsupportedSourceType(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	source := &customSource{SourceInfo: NewSourceInfo("exotic")}
	st.sources[source.ID] = source

	_, err := svc.GenerateIdentifier(ctx, source.ID, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeUnsupportedSource))
}

func TestGenerate_EveryIssuanceRecorded(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	source := saveSequential(t, svc, "mrn", "100")

	batch, err := svc.GenerateIdentifiers(ctx, source.ID, 5, "admission batch")
	require.NoError(t, err)

	entries, err := svc.LogEntries(ctx, LogFilter{SourceID: &source.ID})
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, batch[i], e.Identifier)
		assert.Equal(t, "admission batch", e.Comment)
		assert.Equal(t, "system", e.GeneratedBy)
	}
}

func TestGenerate_AttributedToActor(t *testing.T) {
	svc, _ := newTestService()
	source := saveSequential(t, svc, "mrn", "")

	ctx := appctx.WithActor(context.Background(), &appctx.ActorContext{
		UserID:   id.New().String(),
		Username: "registrar",
	})

	_, err := svc.GenerateIdentifier(ctx, source.ID, "")
	require.NoError(t, err)

	entries, err := svc.LogEntries(ctx, LogFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "registrar", entries[0].GeneratedBy)
}

func TestGenerate_ConcurrentBatchesAreUniqueAndComplete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	source := saveSequential(t, svc, "mrn", "5000")

	const workers = 10
	const perBatch = 10

	var wg sync.WaitGroup
	results := make([][]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GenerateIdentifiers(ctx, source.ID, perBatch, "")
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	seen := make(map[string]bool)
	for _, batch := range results {
		require.Len(t, batch, perBatch)
		for _, identifier := range batch {
			assert.False(t, seen[identifier], "identifier %s issued twice", identifier)
			seen[identifier] = true
		}
	}
	assert.Len(t, seen, workers*perBatch)

	value, err := svc.SequenceValue(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000+workers*perBatch), value)
}

func TestSaveSource_UpdateKeepsCounter(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	source := saveSequential(t, svc, "mrn", "1000")

	_, err := svc.GenerateIdentifier(ctx, source.ID, "")
	require.NoError(t, err)

	source.Description = "medical record numbers"
	_, err = svc.SaveSource(ctx, source)
	require.NoError(t, err)

	value, err := svc.SequenceValue(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), value)
}

func TestSetSequenceValue(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	source := saveSequential(t, svc, "mrn", "1000")

	require.NoError(t, svc.SetSequenceValue(ctx, source.ID, 2000))

	next, err := svc.GenerateIdentifier(ctx, source.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "2001", next)

	err = svc.SetSequenceValue(ctx, source.ID, 100)
	assert.True(t, apperror.IsConflict(err), "lowering the counter must be rejected")
}

func TestSetSequenceValue_NotSequential(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	pool := savePool(t, svc, "pool", nil)

	err := svc.SetSequenceValue(ctx, pool.ID, 10)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestRegisterProcessor_OverrideWins(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	source := saveSequential(t, svc, "mrn", "")

	svc.RegisterProcessor(SourceTypeSequential, processorFunc(func(ctx context.Context, s IdentifierSource, n int) ([]string, error) {
		out := make([]string, n)
		for i := range out {
			out[i] = "X"
		}
		return out, nil
	}))

	batch, err := svc.GenerateIdentifiers(ctx, source.ID, 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "X"}, batch)
}

type processorFunc func(ctx context.Context, source IdentifierSource, batchSize int) ([]string, error)

func (f processorFunc) Reserve(ctx context.Context, source IdentifierSource, batchSize int) ([]string, error) {
	return f(ctx, source, batchSize)
}

// --- pools ---

func TestAvailableIdentifiers_ReturnsUpToQuantity(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	pool := savePool(t, svc, "pool", nil)
	require.NoError(t, svc.AddIdentifiersToPool(ctx, pool.ID, []string{"AAA-1", "AAA-2"}))

	entries, err := svc.AvailableIdentifiers(ctx, pool.ID, 5)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	available, err := svc.QuantityInPool(ctx, pool.ID, true, false)
	require.NoError(t, err)
	assert.Equal(t, 0, available)

	used, err := svc.QuantityInPool(ctx, pool.ID, false, true)
	require.NoError(t, err)
	assert.Equal(t, 2, used)
}

func TestAvailableIdentifiers_SingleDelivery(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	pool := savePool(t, svc, "pool", nil)

	identifiers := make([]string, 40)
	for i := range identifiers {
		identifiers[i] = "ID-" + idgenTestPad(i)
	}
	require.NoError(t, svc.AddIdentifiersToPool(ctx, pool.ID, identifiers))

	var wg sync.WaitGroup
	results := make([][]*PooledIdentifier, 4)
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.AvailableIdentifiers(ctx, pool.ID, 10)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}

	seen := make(map[string]bool)
	for _, entries := range results {
		for _, e := range entries {
			assert.False(t, seen[e.Identifier], "entry %s delivered twice", e.Identifier)
			seen[e.Identifier] = true
		}
	}
	assert.Len(t, seen, 40)
}

func TestGenerateFromPool_InsufficientConsumesNothing(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	pool := savePool(t, svc, "pool", nil)
	require.NoError(t, svc.AddIdentifiersToPool(ctx, pool.ID, []string{"ONLY-1", "ONLY-2"}))

	_, err := svc.GenerateIdentifiers(ctx, pool.ID, 3, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeGenerationFailure))

	available, err := svc.QuantityInPool(ctx, pool.ID, true, false)
	require.NoError(t, err)
	assert.Equal(t, 2, available, "a failed batch must not consume entries")
}

func TestGenerateFromPool_DeliversInBatch(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	pool := savePool(t, svc, "pool", nil)
	require.NoError(t, svc.AddIdentifiersToPool(ctx, pool.ID, []string{"P-1", "P-2", "P-3"}))

	batch, err := svc.GenerateIdentifiers(ctx, pool.ID, 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"P-1", "P-2"}, batch)
}

func TestAddIdentifiersToPool_TrimsAndRejectsEmpty(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	pool := savePool(t, svc, "pool", nil)

	require.NoError(t, svc.AddIdentifiersToPool(ctx, pool.ID, []string{"  A-1  ", "", "A-2"}))

	n, err := svc.QuantityInPool(ctx, pool.ID, false, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	err = svc.AddIdentifiersToPool(ctx, pool.ID, []string{"   ", ""})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestAddIdentifiersToPool_DuplicateFailsWholeUpload(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	pool := savePool(t, svc, "pool", nil)
	require.NoError(t, svc.AddIdentifiersToPool(ctx, pool.ID, []string{"DUP-1"}))

	// The duplicate is already USED; it still blocks re-upload.
	_, err := svc.AvailableIdentifiers(ctx, pool.ID, 1)
	require.NoError(t, err)

	err = svc.AddIdentifiersToPool(ctx, pool.ID, []string{"NEW-1", "DUP-1"})
	assert.True(t, apperror.IsConflict(err))
}

func TestQuantityInPool_ContradictoryFlags(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	pool := savePool(t, svc, "pool", nil)
	require.NoError(t, svc.AddIdentifiersToPool(ctx, pool.ID, []string{"Q-1"}))

	n, err := svc.QuantityInPool(ctx, pool.ID, true, true)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFillPoolFromSource(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	backing := saveSequential(t, svc, "backing", "9000")
	pool := savePool(t, svc, "pool", &backing.ID)

	require.NoError(t, svc.FillPoolFromSource(ctx, pool.ID, 0))

	available, err := svc.QuantityInPool(ctx, pool.ID, true, false)
	require.NoError(t, err)
	assert.Equal(t, pool.BatchSize, available)

	entries, err := svc.LogEntries(ctx, LogFilter{Comment: "filling pool"})
	require.NoError(t, err)
	assert.Len(t, entries, pool.BatchSize)
}

func TestFillPoolFromSource_NoBackingSource(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	pool := savePool(t, svc, "pool", nil)

	err := svc.FillPoolFromSource(ctx, pool.ID, 5)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

// --- auto-generation options ---

func TestSaveAutoGenerationOption_OnePerIdentifierType(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	source := saveSequential(t, svc, "mrn", "")

	first, err := svc.SaveAutoGenerationOption(ctx, NewAutoGenerationOption("patient-id", source.ID))
	require.NoError(t, err)

	_, err = svc.SaveAutoGenerationOption(ctx, NewAutoGenerationOption("patient-id", source.ID))
	assert.True(t, apperror.IsConflict(err))

	// Updating the covering option by id is allowed.
	first.ManualEntryEnabled = true
	updated, err := svc.SaveAutoGenerationOption(ctx, first)
	require.NoError(t, err)
	assert.True(t, updated.ManualEntryEnabled)
}

func TestSaveAutoGenerationOption_SourceMustExist(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.SaveAutoGenerationOption(context.Background(), NewAutoGenerationOption("patient-id", id.New()))
	assert.True(t, apperror.IsNotFound(err))
}

func TestPurgeAutoGenerationOption(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	source := saveSequential(t, svc, "mrn", "")

	option, err := svc.SaveAutoGenerationOption(ctx, NewAutoGenerationOption("patient-id", source.ID))
	require.NoError(t, err)
	require.NoError(t, svc.PurgeAutoGenerationOption(ctx, option.ID))

	_, err = svc.AutoGenerationOption(ctx, "patient-id")
	assert.True(t, apperror.IsNotFound(err))
}

// --- ledger filtering ---

func TestLogEntries_Filtering(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	a := saveSequential(t, svc, "a", "10")
	b := saveSequential(t, svc, "b", "20")

	_, err := svc.GenerateIdentifiers(ctx, a.ID, 2, "ward one")
	require.NoError(t, err)
	_, err = svc.GenerateIdentifiers(ctx, b.ID, 3, "ward two")
	require.NoError(t, err)

	bySource, err := svc.LogEntries(ctx, LogFilter{SourceID: &a.ID})
	require.NoError(t, err)
	assert.Len(t, bySource, 2)

	byComment, err := svc.LogEntries(ctx, LogFilter{Comment: "two"})
	require.NoError(t, err)
	assert.Len(t, byComment, 3)

	byIdentifier, err := svc.LogEntries(ctx, LogFilter{Identifier: "11"})
	require.NoError(t, err)
	assert.Len(t, byIdentifier, 1)

	tomorrow := time.Now().UTC().Add(24 * time.Hour)
	future, err := svc.LogEntries(ctx, LogFilter{FromDate: &tomorrow})
	require.NoError(t, err)
	assert.Empty(t, future)

	today := time.Now().UTC()
	all, err := svc.LogEntries(ctx, LogFilter{FromDate: &today, ToDate: &today})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

// --- management ---

func TestSourceLifecycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	source := saveSequential(t, svc, "mrn", "")
	pool := savePool(t, svc, "pool", nil)

	all, err := svc.AllSources(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	retired, err := svc.RetireSource(ctx, source.ID, "scheme change")
	require.NoError(t, err)
	assert.True(t, retired.Info().Retired)
	assert.NotNil(t, retired.Info().RetiredAt)

	active, err := svc.AllSources(ctx, false)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	withRetired, err := svc.AllSources(ctx, true)
	require.NoError(t, err)
	assert.Len(t, withRetired, 2)

	pools, err := svc.SourcesByType(ctx, SourceTypePool, false)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, pool.ID, pools[0].Info().ID)

	require.NoError(t, svc.PurgeSource(ctx, pool.ID))
	_, err = svc.GetSource(ctx, pool.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestSaveSource_ValidationFailures(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	nameless := NewSequentialSource("")
	_, err := svc.SaveSource(ctx, nameless)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	badBase := NewSequentialSource("bad")
	badBase.FirstIdentifierBase = "XYZ" // not expressible in 0-9
	_, err = svc.SaveSource(ctx, badBase)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	selfPool := NewIdentifierPool("self")
	selfPool.BackingSourceID = &selfPool.ID
	_, err = svc.SaveSource(ctx, selfPool)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestSourceTypes_ReflectRegistry(t *testing.T) {
	svc, _ := newTestService()

	types := svc.SourceTypes()
	assert.ElementsMatch(t, []SourceType{SourceTypeSequential, SourceTypeRemote, SourceTypePool}, types)

	svc.RegisterProcessor(SourceType("custom"), processorFunc(func(ctx context.Context, s IdentifierSource, n int) ([]string, error) {
		return nil, nil
	}))
	assert.Contains(t, svc.SourceTypes(), SourceType("custom"))
}

func TestGenerate_CheckDigitAppended(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	source := NewSequentialSource("checked")
	source.FirstIdentifierBase = "100"
	source.CheckDigitAlgorithm = checkdigit.AlgorithmLuhnMod10
	_, err := svc.SaveSource(ctx, source)
	require.NoError(t, err)

	identifier, err := svc.GenerateIdentifier(ctx, source.ID, "")
	require.NoError(t, err)

	alg := checkdigit.NewLuhnMod10()
	valid, err := alg.Verify(identifier)
	require.NoError(t, err)
	assert.True(t, valid)

	expected, err := alg.Append("101")
	require.NoError(t, err)
	assert.Equal(t, expected, identifier)
}

func idgenTestPad(i int) string {
	const digits = "0123456789"
	return string([]byte{digits[i/10%10], digits[i%10]})
}
