package idgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
)

// RemoteProcessor delegates generation to an external system over HTTP.
//
// Failure policy: a response with an error status is a clean rejection
// (the remote issued nothing, the caller may retry); a timeout or a
// transport error after the request may have been sent is indeterminate
// and is never retried here, because the remote may already have
// committed the batch.
type RemoteProcessor struct {
	client *http.Client
}

// NewRemoteProcessor creates the remote generation strategy. The per-call
// timeout comes from each source's configuration, not from the client.
func NewRemoteProcessor() *RemoteProcessor {
	return &RemoteProcessor{client: &http.Client{}}
}

var _ Processor = (*RemoteProcessor)(nil)

// Reserve implements Processor.
func (p *RemoteProcessor) Reserve(ctx context.Context, source IdentifierSource, batchSize int) ([]string, error) {
	remote, ok := source.(*RemoteSource)
	if !ok {
		return nil, apperror.NewInternal(fmt.Errorf("remote processor received %T", source))
	}

	ctx, cancel := context.WithTimeout(ctx, remote.EffectiveTimeout())
	defer cancel()

	form := url.Values{}
	form.Set("numberToGenerate", strconv.Itoa(batchSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, remote.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("build remote request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if remote.Username != "" {
		req.SetBasicAuth(remote.Username, remote.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(remote, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The remote answered: it rejected the request and issued nothing.
		return nil, generationFailuref(remote, "remote source rejected the request with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		// The remote committed a 2xx but we lost the payload mid-flight.
		return nil, indeterminatef(remote, "reading remote response: %v", err)
	}

	identifiers := strings.Fields(string(body))
	if len(identifiers) != batchSize {
		// A surplus is as bad as a shortfall: the remote committed
		// identifiers this side would never record or hand out.
		return nil, generationFailuref(remote, "remote source returned %d of %d identifiers", len(identifiers), batchSize)
	}
	return identifiers, nil
}

// classifyTransportError maps a transport failure to the error taxonomy.
func classifyTransportError(remote *RemoteSource, err error) error {
	// Connection refused: the request never reached the remote, so
	// nothing was issued and the caller may retry.
	if errors.Is(err, syscall.ECONNREFUSED) {
		return generationFailuref(remote, "remote source unreachable: %v", err)
	}
	// Timeouts and mid-flight resets leave the outcome unknown.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return indeterminatef(remote, "remote call timed out after %s", remote.EffectiveTimeout())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return indeterminatef(remote, "remote call timed out after %s", remote.EffectiveTimeout())
	}
	return indeterminatef(remote, "remote call failed: %v", err)
}

func generationFailuref(remote *RemoteSource, format string, args ...any) error {
	return apperror.NewGenerationFailure(fmt.Sprintf(format, args...)).
		WithDetail("source", remote.Name).
		WithDetail("url", remote.URL)
}

func indeterminatef(remote *RemoteSource, format string, args ...any) error {
	return apperror.NewIndeterminateRemote(fmt.Sprintf(format, args...)).
		WithDetail("source", remote.Name).
		WithDetail("url", remote.URL)
}
