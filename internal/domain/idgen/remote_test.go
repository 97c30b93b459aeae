package idgen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
)

func saveRemote(t *testing.T, svc *Service, url string) *RemoteSource {
	t.Helper()
	source := NewRemoteSource("remote", url)
	saved, err := svc.SaveSource(context.Background(), source)
	require.NoError(t, err)
	return saved.(*RemoteSource)
}

func TestRemote_ParsesWhitespaceSeparatedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "3", r.FormValue("numberToGenerate"))
		_, _ = w.Write([]byte("A1 A2\nA3\n"))
	}))
	defer server.Close()

	svc, _ := newTestService()
	source := saveRemote(t, svc, server.URL)

	batch, err := svc.GenerateIdentifiers(context.Background(), source.ID, 3, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2", "A3"}, batch)
}

func TestRemote_SendsBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "issuer", username)
		assert.Equal(t, "secret", password)
		_, _ = w.Write([]byte("B1"))
	}))
	defer server.Close()

	svc, _ := newTestService()
	source := NewRemoteSource("remote", server.URL)
	source.Username = "issuer"
	source.Password = "secret"
	_, err := svc.SaveSource(context.Background(), source)
	require.NoError(t, err)

	batch, err := svc.GenerateIdentifiers(context.Background(), source.ID, 1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"B1"}, batch)
}

func TestRemote_ErrorStatusIsCleanRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of identifiers", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc, _ := newTestService()
	source := saveRemote(t, svc, server.URL)

	_, err := svc.GenerateIdentifiers(context.Background(), source.ID, 1, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeGenerationFailure))
	assert.False(t, apperror.IsIndeterminate(err))
}

func TestRemote_ShortResponseFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ONLY-1"))
	}))
	defer server.Close()

	svc, _ := newTestService()
	source := saveRemote(t, svc, server.URL)

	_, err := svc.GenerateIdentifiers(context.Background(), source.ID, 2, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeGenerationFailure))
}

func TestRemote_SurplusResponseFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("C1 C2 C3"))
	}))
	defer server.Close()

	svc, _ := newTestService()
	source := saveRemote(t, svc, server.URL)

	// Accepting a subset would leave remotely-issued identifiers with no
	// local record, so the whole batch is rejected.
	_, err := svc.GenerateIdentifiers(context.Background(), source.ID, 2, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeGenerationFailure))

	entries, err := svc.LogEntries(context.Background(), LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemote_TimeoutIsIndeterminate(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	svc, _ := newTestService()
	source := NewRemoteSource("remote", server.URL)
	source.Timeout = 50 * time.Millisecond
	_, err := svc.SaveSource(context.Background(), source)
	require.NoError(t, err)

	_, err = svc.GenerateIdentifiers(context.Background(), source.ID, 1, "")
	assert.True(t, apperror.IsIndeterminate(err))
}

func TestRemote_ConnectionRefusedIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	svc, _ := newTestService()
	source := saveRemote(t, svc, url)

	_, err := svc.GenerateIdentifiers(context.Background(), source.ID, 1, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeGenerationFailure))
	assert.False(t, apperror.IsIndeterminate(err))
}

func TestRemote_ValidateRejectsBadConfig(t *testing.T) {
	noURL := NewRemoteSource("remote", "")
	assert.True(t, apperror.HasCode(noURL.Validate(context.Background()), apperror.CodeValidation))

	malformed := NewRemoteSource("remote", "not a url")
	assert.True(t, apperror.HasCode(malformed.Validate(context.Background()), apperror.CodeValidation))

	negative := NewRemoteSource("remote", "http://idgen.example.org/generate")
	negative.Timeout = -time.Second
	assert.True(t, apperror.HasCode(negative.Validate(context.Background()), apperror.CodeValidation))
}

func TestRemote_EffectiveTimeout(t *testing.T) {
	source := NewRemoteSource("remote", "http://idgen.example.org/generate")
	assert.Equal(t, DefaultRemoteTimeout, source.EffectiveTimeout())

	source.Timeout = 3 * time.Second
	assert.Equal(t, 3*time.Second, source.EffectiveTimeout())
}
