package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfluke/kdispatch/runtime"
	"github.com/openfluke/kdispatch/simdevice"
)

// scenarioDevice takes 6 ms for the full 4x4x1024 range and 100 ns per item
// otherwise.
func scenarioDevice() *simdevice.Device {
	d := simdevice.New(256)
	perItem := simdevice.PerItem(100 * time.Nanosecond)
	d.Cost = func(offset, global, local []uint32) time.Duration {
		if global[2] == 1024 {
			return 6 * time.Millisecond
		}
		return perItem(offset, global, local)
	}
	return d
}

func TestLaunchMeasuresAndSplits(t *testing.T) {
	dev := scenarioDevice()
	k := &simdevice.Kernel{KernelName: "conv"}
	l := NewLauncher(dev, k, []uint32{4, 4, 1024}, 1000)
	timer := l.Timer()

	p := Partition{4, 4, 16, 1}
	require.NoError(t, l.Launch(p, timer))
	assert.Equal(t, uint32(7), p.Splits())

	ls := dev.Launches()
	require.Len(t, ls, 9)
	assert.Equal(t, []uint32{0, 0, 0}, ls[0].Offset)
	assert.Equal(t, []uint32{4, 4, 1024}, ls[0].Global)

	var covered uint32
	for i, sub := range ls[1:] {
		assert.Equal(t, []uint32{4, 4, 16}, sub.Local)
		assert.Equal(t, []uint32{0, 0, covered}, sub.Offset)
		want := uint32(146)
		if i == 7 {
			want = 2
		}
		assert.Equal(t, []uint32{4, 4, want}, sub.Global)
		covered += sub.Global[2]
	}
	assert.Equal(t, uint32(1024), covered)

	// only the split launches are accumulated: 1024 rows * 16 items * 100 ns
	assert.InDelta(t, 1638.4, timer.AccumulatedMicros(), 1e-6)

	last, err := l.Event().Stats()
	require.NoError(t, err)
	assert.Equal(t, ls[8].Stats, last)
}

func TestLaunchReplayMatchesMeasurement(t *testing.T) {
	dev := scenarioDevice()
	k := &simdevice.Kernel{KernelName: "conv"}

	measured := Partition{4, 4, 16, 1}
	lm := NewLauncher(dev, k, []uint32{4, 4, 1024}, 1000)
	require.NoError(t, lm.Launch(measured, lm.Timer()))
	require.Equal(t, uint32(7), measured.Splits())
	split := dev.Launches()[1:]

	dev.Reset()
	replay := Partition{4, 4, 16, 7}
	l := NewLauncher(dev, k, []uint32{4, 4, 1024}, 1000)
	require.NoError(t, l.Launch(replay, nil))

	ls := dev.Launches()
	require.Len(t, ls, 8)
	require.Len(t, split, 8)
	for i := range ls {
		assert.Equal(t, split[i].Offset, ls[i].Offset)
		assert.Equal(t, split[i].Global, ls[i].Global)
		assert.Equal(t, split[i].Local, ls[i].Local)
	}
	assert.Equal(t, uint32(7), replay.Splits())
}

func TestLaunchUnderBoundIsSingle(t *testing.T) {
	dev := simdevice.New(64)
	dev.Cost = simdevice.PerItem(time.Nanosecond)
	k := &simdevice.Kernel{KernelName: "relu"}
	l := NewLauncher(dev, k, []uint32{8, 8}, 0)

	p := Partition{8, 8, 1}
	require.NoError(t, l.Launch(p, l.Timer()))
	assert.Equal(t, uint32(1), p.Splits())
	ls := dev.Launches()
	require.Len(t, ls, 2)
	assert.Equal(t, ls[0].Global, ls[1].Global)
}

func TestLaunchOuterOneNeverSplits(t *testing.T) {
	dev := simdevice.New(64)
	dev.Cost = simdevice.PerItem(time.Second)
	k := &simdevice.Kernel{KernelName: "slow"}
	l := NewLauncher(dev, k, []uint32{64, 1}, 1000)

	p := Partition{64, 1, 1}
	require.NoError(t, l.Launch(p, l.Timer()))
	assert.Equal(t, uint32(1), p.Splits())
}

func TestLaunchSubmissionErrorAborts(t *testing.T) {
	dev := scenarioDevice()
	dev.Fail = func(n int, _, _ []uint32) runtime.Status {
		if n == 3 {
			return runtime.OutOfResources
		}
		return runtime.Success
	}
	k := &simdevice.Kernel{KernelName: "conv"}
	l := NewLauncher(dev, k, []uint32{4, 4, 1024}, 1000)

	err := l.Launch(Partition{4, 4, 16, 1}, l.Timer())
	require.ErrorIs(t, err, runtime.ErrSubmission)
	var se *runtime.SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, runtime.OutOfResources, se.Code)
	assert.Equal(t, []uint32{0, 0, 292}, se.Offset)
	assert.Len(t, dev.Launches(), 3)
}

func TestLaunchBadPartition(t *testing.T) {
	dev := simdevice.New(64)
	l := NewLauncher(dev, &simdevice.Kernel{KernelName: "k"}, []uint32{8, 8}, 0)
	require.ErrorIs(t, l.Launch(Partition{8, 8, 8, 1}, nil), ErrBadRange)
}

func TestProfilingTimerWithoutEvent(t *testing.T) {
	timer := newProfilingTimer(&eventSlot{})
	timer.StartTiming()
	timer.StopTiming()
	timer.AccumulateTiming()
	assert.Zero(t, timer.ElapsedMicros())
	assert.Zero(t, timer.AccumulatedMicros())
}
