package engine

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer_WithinLimit(t *testing.T) {
	q := NewQuotaEnforcer(10)
	for i := 0; i < 10; i++ {
		err := q.Check("oneapi:optimize", "p")
		assert.NoError(t, err, "step %d should be allowed", i+1)
	}
	assert.Equal(t, 10, q.Current())
	assert.Equal(t, 10, q.MaxSteps())
}

func TestQuotaEnforcer_ExceedsLimit(t *testing.T) {
	q := NewQuotaEnforcer(5)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Check("f", "p"))
	}

	err := q.Check("f", "loop")
	require.Error(t, err)

	var stepsErr *StepsExceededError
	require.ErrorAs(t, err, &stepsErr)
	assert.Equal(t, "f", stepsErr.Flow)
	assert.Equal(t, "loop", stepsErr.Pass)
	assert.Equal(t, 6, stepsErr.Steps)
	assert.Equal(t, 5, stepsErr.Limit)
}

func TestQuotaEnforcer_Reset(t *testing.T) {
	q := NewQuotaEnforcer(5)
	for i := 0; i < 5; i++ {
		_ = q.Check("f", "p")
	}
	assert.Equal(t, 5, q.Current())

	q.Reset()
	assert.Equal(t, 0, q.Current())
	for i := 0; i < 5; i++ {
		assert.NoError(t, q.Check("f", "p"))
	}
}

func TestStepsExceededError_Error(t *testing.T) {
	err := &StepsExceededError{Flow: "oneapi:optimize", Pass: "spin", Steps: 1001, Limit: 1000}
	msg := err.Error()
	assert.Contains(t, msg, "oneapi:optimize")
	assert.Contains(t, msg, "1001")
	assert.Contains(t, msg, "1000")
	assert.Contains(t, msg, "spin")
}

func TestIsStepsExceededError(t *testing.T) {
	stepsErr := &StepsExceededError{Flow: "f", Steps: 10, Limit: 5}

	assert.True(t, IsStepsExceededError(stepsErr))
	assert.True(t, IsStepsExceededError(errors.Wrap(stepsErr, "apply")))
	assert.False(t, IsStepsExceededError(nil))
	assert.False(t, IsStepsExceededError(assert.AnError))
}
