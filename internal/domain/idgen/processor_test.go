package idgen

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetUnknownType(t *testing.T) {
	registry := NewRegistry()

	_, ok := registry.Get(&customSource{SourceInfo: NewSourceInfo("exotic")})
	assert.False(t, ok)
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	registry := NewRegistry()
	first := processorFunc(func(ctx context.Context, s IdentifierSource, n int) ([]string, error) {
		return []string{"first"}, nil
	})
	second := processorFunc(func(ctx context.Context, s IdentifierSource, n int) ([]string, error) {
		return []string{"second"}, nil
	})

	registry.Register(SourceTypeSequential, first)
	registry.Register(SourceTypeSequential, second)

	p, ok := registry.Get(NewSequentialSource("mrn"))
	require.True(t, ok)
	batch, err := p.Reserve(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, batch)
}

func TestRegistry_Types(t *testing.T) {
	registry := NewRegistry()
	registry.Register(SourceTypeSequential, processorFunc(nil))
	registry.Register(SourceTypeRemote, processorFunc(nil))

	assert.ElementsMatch(t, []SourceType{SourceTypeSequential, SourceTypeRemote}, registry.Types())
}

func TestSourceLocks_SerializesSameKey(t *testing.T) {
	locks := newSourceLocks()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.acquire("same")
			defer unlock()
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
}

func TestSourceLocks_IndependentKeys(t *testing.T) {
	locks := newSourceLocks()

	unlockA := locks.acquire("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locks.acquire("b")
		unlockB()
		close(done)
	}()
	<-done
}
