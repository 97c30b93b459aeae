package checkdigit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLuhnMod10_KnownValue(t *testing.T) {
	alg := NewLuhnMod10()

	digit, err := alg.CheckDigit("7992739871")
	require.NoError(t, err)
	assert.Equal(t, "3", digit)

	decorated, err := alg.Append("7992739871")
	require.NoError(t, err)
	assert.Equal(t, "79927398713", decorated)

	valid, err := alg.Verify("79927398713")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = alg.Verify("79927398714")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestLuhnMod10_AppendVerifyRoundTrip(t *testing.T) {
	alg := NewLuhnMod10()
	for _, identifier := range []string{"0", "1", "1001", "123456789", "000042"} {
		decorated, err := alg.Append(identifier)
		require.NoError(t, err)
		require.Len(t, decorated, len(identifier)+1)

		valid, err := alg.Verify(decorated)
		require.NoError(t, err)
		assert.True(t, valid, "identifier %s", decorated)
	}
}

func TestLuhnMod30_AppendVerifyRoundTrip(t *testing.T) {
	alg := NewLuhnMod30()
	for _, identifier := range []string{"A", "HELL0", "MRN1001", "Y0X9"} {
		decorated, err := alg.Append(identifier)
		require.NoError(t, err)

		valid, err := alg.Verify(decorated)
		require.NoError(t, err)
		assert.True(t, valid, "identifier %s", decorated)
	}
}

func TestLuhnMod30_LowercaseNormalized(t *testing.T) {
	alg := NewLuhnMod30()

	upper, err := alg.CheckDigit("HELD")
	require.NoError(t, err)
	lower, err := alg.CheckDigit("held")
	require.NoError(t, err)
	assert.Equal(t, upper, lower)
}

func TestLuhn_InvalidCharacter(t *testing.T) {
	_, err := NewLuhnMod10().CheckDigit("12A4")
	assert.Error(t, err)

	// B is excluded from the mod-30 alphabet.
	_, err = NewLuhnMod30().CheckDigit("AB")
	assert.Error(t, err)
}

func TestLuhn_EmptyIdentifier(t *testing.T) {
	_, err := NewLuhnMod10().CheckDigit("")
	assert.Error(t, err)

	_, err = NewLuhnMod10().Verify("")
	assert.Error(t, err)
}

func TestRegistry_BuiltinsRegistered(t *testing.T) {
	registry := NewRegistry()

	for _, name := range []string{AlgorithmLuhnMod10, AlgorithmLuhnMod30} {
		alg, err := registry.Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, alg.Name())
	}
	assert.ElementsMatch(t, []string{AlgorithmLuhnMod10, AlgorithmLuhnMod30}, registry.Names())

	_, err := registry.Get("verhoeff")
	assert.Error(t, err)
}
