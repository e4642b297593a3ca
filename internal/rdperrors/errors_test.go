package rdperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIs_MatchesWrappedKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Transient("capture", errors.New("socket reset")))
	assert.True(t, Is(err, KindTransient))
	assert.False(t, Is(err, KindFatal))
}

func TestIs_PlainErrorMatchesNoKind(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), KindTransient))
}

func TestError_UnwrapReturnsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Protocol("framer", cause)
	require.ErrorIs(t, err, cause)
}

func TestEscalator_EscalatesAfterThreshold(t *testing.T) {
	e := NewEscalator(3)
	assert.False(t, e.Observe(Transient("h264", errors.New("x"))))
	assert.False(t, e.Observe(Transient("h264", errors.New("x"))))
	assert.True(t, e.Observe(Transient("h264", errors.New("x"))))
	assert.Equal(t, 3, e.Count())
}

func TestEscalator_ResetsOnSuccess(t *testing.T) {
	e := NewEscalator(2)
	assert.False(t, e.Observe(Transient("h264", errors.New("x"))))
	assert.False(t, e.Observe(nil))
	assert.Equal(t, 0, e.Count())
}

func TestEscalator_IgnoresNonTransientKinds(t *testing.T) {
	e := NewEscalator(1)
	assert.False(t, e.Observe(Fatal("orchestrator", errors.New("x"))))
	assert.Equal(t, 0, e.Count())
}

func TestNewEscalator_DefaultsNonPositiveThreshold(t *testing.T) {
	e := NewEscalator(0)
	for i := 0; i < 15; i++ {
		require.False(t, e.Observe(Transient("h264", errors.New("x"))))
	}
	assert.True(t, e.Observe(Transient("h264", errors.New("x"))))
}
