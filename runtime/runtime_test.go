package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRuntime struct{}

func (stubRuntime) KernelMaxWorkGroupSize(Kernel) uint32 { return 64 }
func (stubRuntime) CommandQueue() CommandQueue            { return nil }

func TestGlobalWithoutFactory(t *testing.T) {
	SetFactory(nil)
	defer SetFactory(nil)

	_, err := Global()
	require.ErrorIs(t, err, ErrNoRuntime)
}

func TestGlobalBuildsOnce(t *testing.T) {
	calls := 0
	SetFactory(func() (Runtime, error) {
		calls++
		return stubRuntime{}, nil
	})
	defer SetFactory(nil)

	for i := 0; i < 3; i++ {
		rt, err := Global()
		require.NoError(t, err)
		assert.Equal(t, uint32(64), rt.KernelMaxWorkGroupSize(nil))
	}
	assert.Equal(t, 1, calls)

	Reset()
	_, err := Global()
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGlobalFactoryError(t *testing.T) {
	boom := errors.New("no adapter")
	SetFactory(func() (Runtime, error) { return nil, boom })
	defer SetFactory(nil)

	_, err := Global()
	require.ErrorIs(t, err, boom)
}

func TestSubmissionError(t *testing.T) {
	err := error(&SubmissionError{Code: InvalidWorkGroupSize, Kernel: "conv"})
	require.ErrorIs(t, err, ErrSubmission)
	assert.Contains(t, err.Error(), "-54")
	assert.Contains(t, err.Error(), "CL_INVALID_WORK_GROUP_SIZE")

	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, InvalidWorkGroupSize, se.Code)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "CL_SUCCESS", Success.String())
	assert.Equal(t, "status(-9999)", Status(-9999).String())
}

func TestCallStatsElapsed(t *testing.T) {
	s := CallStats{StartNanos: 1_000, EndNanos: 3_500}
	assert.InDelta(t, 2.5, s.ElapsedMicros(), 1e-9)
	assert.Zero(t, CallStats{StartNanos: 5, EndNanos: 1}.ElapsedMicros())
}
