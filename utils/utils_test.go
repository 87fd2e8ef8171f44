package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(8)
	require.NoError(t, err)
	assert.Len(t, code, 16) // hex doubles the byte count

	other, err := GenerateCode(8)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}

func TestCircuitBreaker_PassesThroughResults(t *testing.T) {
	cb := NewCircuitBreaker("test")

	result, err := cb.Execute(context.Background(), func() (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, StateClosed, cb.State())

	wantErr := errors.New("upstream down")
	_, err = cb.Execute(context.Background(), func() (any, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_TripsAfterSustainedFailures(t *testing.T) {
	cb := NewCircuitBreaker("test")

	failing := func() (any, error) { return nil, errors.New("upstream down") }
	for i := 0; i < 100; i++ {
		_, _ = cb.Execute(context.Background(), failing)
	}
	assert.Equal(t, StateOpen, cb.State())

	// Tripped breaker rejects without invoking the request.
	invoked := false
	_, err := cb.Execute(context.Background(), func() (any, error) {
		invoked = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, invoked)
}

func TestRedisHealthCheck(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectPing().SetVal("PONG")

	assert.NoError(t, RedisHealthCheck(client))

	mock.ExpectPing().SetErr(errors.New("connection refused"))
	assert.Error(t, RedisHealthCheck(client))
}
