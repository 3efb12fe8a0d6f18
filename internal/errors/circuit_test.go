package errors

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker("graph")

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("vector", WithMaxFailures(3))

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("keyword", WithMaxFailures(3))

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker("graph",
		WithMaxFailures(1),
		WithResetTimeout(10*time.Millisecond))

	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)

	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_ExecuteBlocksWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker("vector", WithMaxFailures(1))
	cb.RecordFailure()

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_ExecuteRecordsOutcomes(t *testing.T) {
	cb := NewCircuitBreaker("keyword", WithMaxFailures(2))

	cause := stderrors.New("store unreachable")
	err := cb.Execute(func() error { return cause })
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, cb.Failures())

	err = cb.Execute(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_HalfOpenSuccessCloses(t *testing.T) {
	cb := NewCircuitBreaker("graph",
		WithMaxFailures(1),
		WithResetTimeout(5*time.Millisecond))

	cb.RecordFailure()
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	err := cb.Execute(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("vector",
		WithMaxFailures(1),
		WithResetTimeout(5*time.Millisecond))

	cb.RecordFailure()
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	err := cb.Execute(func() error { return stderrors.New("still down") })
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())
}
