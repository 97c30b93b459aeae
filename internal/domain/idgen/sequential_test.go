package idgen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/core/checkdigit"
)

func TestFormat_Padding(t *testing.T) {
	source := NewSequentialSource("mrn")
	source.MinLength = 6

	identifier, err := source.Format(42, nil)
	require.NoError(t, err)
	assert.Equal(t, "000042", identifier)
}

func TestFormat_PrefixSuffix(t *testing.T) {
	source := NewSequentialSource("mrn")
	source.Prefix = "MRN-"
	source.Suffix = "-X"

	identifier, err := source.Format(7, nil)
	require.NoError(t, err)
	assert.Equal(t, "MRN-7-X", identifier)
}

func TestFormat_MaxLengthOverflow(t *testing.T) {
	source := NewSequentialSource("mrn")
	source.MaxLength = 3

	_, err := source.Format(1234, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeGenerationFailure))
}

func TestFormat_CustomCharacterSet(t *testing.T) {
	source := NewSequentialSource("hex")
	source.BaseCharacterSet = "0123456789ABCDEF"

	identifier, err := source.Format(255, nil)
	require.NoError(t, err)
	assert.Equal(t, "FF", identifier)
}

func TestFormat_AppendsCheckDigit(t *testing.T) {
	source := NewSequentialSource("mrn")
	alg := checkdigit.NewLuhnMod10()

	identifier, err := source.Format(101, alg)
	require.NoError(t, err)

	expected, err := alg.Append("101")
	require.NoError(t, err)
	assert.Equal(t, expected, identifier)
}

func TestFormat_MultiByteCharacterSet(t *testing.T) {
	source := NewSequentialSource("accented")
	source.BaseCharacterSet = "ÀÁ"

	// Distinct counter values must render distinct identifiers even when
	// the alphabet characters are longer than one byte.
	a, err := source.Format(8, nil)
	require.NoError(t, err)
	b, err := source.Format(10, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "ÁÀÀÀ", a)
	assert.Equal(t, "ÁÀÁÀ", b)

	source.MaxLength = 4
	_, err = source.Format(10, nil)
	assert.NoError(t, err, "max length counts characters, not bytes")
}

func TestEncodeDecodeRoundTrip_MultiByteCharset(t *testing.T) {
	const charset = "ÀÁÂÃ"
	for _, n := range []int64{0, 1, 3, 4, 255} {
		encoded := encodeInBase(n, charset, 0)
		decoded, err := decodeInBase(encoded, charset)
		require.NoError(t, err)
		assert.Equal(t, n, decoded)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	const charset = "0123456789ACDEFGHJKLMNPRTUVWXY"
	for _, n := range []int64{0, 1, 29, 30, 12345, 1 << 40} {
		encoded := encodeInBase(n, charset, 0)
		decoded, err := decodeInBase(encoded, charset)
		require.NoError(t, err)
		assert.Equal(t, n, decoded)
	}
}

func TestDecodeInBase_InvalidCharacter(t *testing.T) {
	_, err := decodeInBase("1B2", "0123456789")
	assert.Error(t, err)
}

func TestEncodeInBase_ZeroRendersZeroCharacter(t *testing.T) {
	assert.Equal(t, "0", encodeInBase(0, "0123456789", 0))
	assert.Equal(t, "A", encodeInBase(0, "ABC", 0))
}

func TestSequentialProcessor_ContiguousRun(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	source := NewSequentialSource("mrn")
	source.FirstIdentifierBase = "0500"
	source.MinLength = 4
	_, err := svc.SaveSource(ctx, source)
	require.NoError(t, err)

	batch, err := svc.GenerateIdentifiers(ctx, source.ID, 4, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"0501", "0502", "0503", "0504"}, batch)
}

func TestSequentialProcessor_UnregisteredCheckDigit(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	source := NewSequentialSource("mrn")
	source.CheckDigitAlgorithm = "verhoeff"
	_, err := svc.SaveSource(ctx, source)
	require.NoError(t, err)

	_, err = svc.GenerateIdentifiers(ctx, source.ID, 1, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeGenerationFailure))
}

func TestSequentialProcessor_FormatFailureLeavesGap(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	source := NewSequentialSource("mrn")
	source.FirstIdentifierBase = "99"
	source.MaxLength = 2
	_, err := svc.SaveSource(ctx, source)
	require.NoError(t, err)

	// 100 does not fit; the range is consumed anyway so the counter
	// keeps moving forward.
	_, err = svc.GenerateIdentifiers(ctx, source.ID, 1, "")
	require.True(t, apperror.HasCode(err, apperror.CodeGenerationFailure))

	value, err := svc.SequenceValue(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), value)
}
