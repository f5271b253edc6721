package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/joshsymonds/warlens/internal/enrichment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instantRetry(d Driver, maxRetries int) *retryDriver {
	r := WithRetry(d, maxRetries).(*retryDriver)
	r.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return r
}

func TestWithRetry_RecoversFromTransportFailures(t *testing.T) {
	attempts := 0
	mock := &MockDriver{GenerateFunc: func(context.Context, string) (string, error) {
		attempts++
		if attempts < 3 {
			return "", enrichment.Transport(errors.New("connection reset"))
		}
		return "finally", nil
	}}

	out, err := instantRetry(mock, 2).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "finally", out)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_GivesUp(t *testing.T) {
	mock := &MockDriver{GenerateFunc: func(context.Context, string) (string, error) {
		return "", enrichment.Transport(errors.New("down"))
	}}

	_, err := instantRetry(mock, 2).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, enrichment.FailureTransport, enrichment.ClassOf(err))
	assert.Equal(t, 3, mock.Calls())
}

func TestWithRetry_DoesNotRetryPayloadFailures(t *testing.T) {
	mock := &MockDriver{GenerateFunc: func(context.Context, string) (string, error) {
		return "", enrichment.Unparsable("garbage", nil)
	}}

	_, err := instantRetry(mock, 5).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, enrichment.FailureUnparsable, enrichment.ClassOf(err))
	assert.Equal(t, 1, mock.Calls())
}

func TestWithRetry_ZeroRetriesReturnsDriver(t *testing.T) {
	mock := NewMockDriver("x")
	assert.Same(t, Driver(mock), WithRetry(mock, 0))
}
