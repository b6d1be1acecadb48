package tuner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimer accumulates whatever the executor charges it.
type fakeTimer struct {
	elapsed, acc float64
}

func (f *fakeTimer) StartTiming()               {}
func (f *fakeTimer) StopTiming()                {}
func (f *fakeTimer) AccumulateTiming()          { f.acc += f.elapsed }
func (f *fakeTimer) ClearTiming()               { f.elapsed, f.acc = 0, 0 }
func (f *fakeTimer) ElapsedMicros() float64     { return f.elapsed }
func (f *fakeTimer) AccumulatedMicros() float64 { return f.acc }

type recorder struct {
	cost  map[uint32]float64
	calls [][]uint32
	timed []bool
}

func (r *recorder) execute(params []uint32, timer Timer) error {
	r.calls = append(r.calls, append([]uint32(nil), params...))
	r.timed = append(r.timed, timer != nil)
	if timer != nil {
		ft := timer.(*fakeTimer)
		ft.elapsed = r.cost[params[0]]
		ft.AccumulateTiming()
		params[len(params)-1] = params[0] + 100
	}
	return nil
}

func candidates() [][]uint32 {
	return [][]uint32{{1, 1, 1}, {2, 2, 1}, {3, 3, 1}, {4, 4, 1}}
}

func newMemTuner(t *testing.T, cfg Config) *Tuner {
	t.Helper()
	tu, err := New(cfg)
	require.NoError(t, err)
	return tu
}

func TestTuneOrRunSweepsOnMiss(t *testing.T) {
	tu := newMemTuner(t, DefaultConfig())
	rec := &recorder{cost: map[uint32]float64{1: 40, 2: 10, 3: 25, 4: 10}}
	lws := make([]uint32, 3)

	err := tu.TuneOrRun("conv/1x7x7x3", lws, candidates, rec.execute, &fakeTimer{})
	require.NoError(t, err)

	assert.Len(t, rec.calls, 4)
	assert.Equal(t, []bool{true, true, true, true}, rec.timed)
	// the tie between 2 and 4 keeps the earlier candidate, with the split
	// count the executor wrote
	assert.Equal(t, []uint32{2, 2, 102}, lws)

	stored, ok := tu.Params("conv/1x7x7x3")
	require.True(t, ok)
	assert.Equal(t, []uint32{2, 2, 102}, stored)
}

func TestTuneOrRunReplaysStoredEntry(t *testing.T) {
	tu := newMemTuner(t, DefaultConfig())
	tu.Set("k", []uint32{8, 4, 7})
	rec := &recorder{}
	lws := []uint32{1, 1, 1}

	require.NoError(t, tu.TuneOrRun("k", lws, candidates, rec.execute, &fakeTimer{}))
	assert.Equal(t, []uint32{8, 4, 7}, lws)
	require.Len(t, rec.calls, 1)
	assert.False(t, rec.timed[0])
	assert.Equal(t, []uint32{8, 4, 7}, rec.calls[0])
}

func TestTuneThenReplayKeepsSplitCount(t *testing.T) {
	tu := newMemTuner(t, DefaultConfig())
	rec := &recorder{cost: map[uint32]float64{1: 1, 2: 5, 3: 5, 4: 5}}
	lws := make([]uint32, 3)
	require.NoError(t, tu.TuneOrRun("k", lws, candidates, rec.execute, &fakeTimer{}))
	assert.Equal(t, uint32(101), lws[2])

	replay := make([]uint32, 3)
	rec.calls = nil
	require.NoError(t, tu.TuneOrRun("k", replay, candidates, rec.execute, &fakeTimer{}))
	assert.Equal(t, lws, replay)
	assert.Equal(t, [][]uint32{{1, 1, 101}}, rec.calls)
}

func TestTuneIsDeterministic(t *testing.T) {
	cost := map[uint32]float64{1: 9, 2: 3, 3: 7, 4: 5}
	var picks [][]uint32
	for i := 0; i < 2; i++ {
		tu := newMemTuner(t, DefaultConfig())
		lws := make([]uint32, 3)
		require.NoError(t, tu.TuneOrRun("k", lws, candidates, (&recorder{cost: cost}).execute, &fakeTimer{}))
		picks = append(picks, lws)
	}
	assert.Equal(t, picks[0], picks[1])
}

func TestTuneRunsAndWarmup(t *testing.T) {
	tu := newMemTuner(t, Config{Runs: 3, Warmup: 2})
	rec := &recorder{cost: map[uint32]float64{1: 1, 2: 1, 3: 1, 4: 1}}
	lws := make([]uint32, 3)
	require.NoError(t, tu.TuneOrRun("k", lws, candidates, rec.execute, &fakeTimer{}))
	assert.Len(t, rec.calls, 4*5)
}

func TestTuneAbortsOnError(t *testing.T) {
	tu := newMemTuner(t, DefaultConfig())
	boom := errors.New("enqueue failed")
	calls := 0
	exec := func(params []uint32, timer Timer) error {
		calls++
		if params[0] == 2 {
			return boom
		}
		return nil
	}
	err := tu.TuneOrRun("k", make([]uint32, 3), candidates, exec, &fakeTimer{})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
	_, ok := tu.Params("k")
	assert.False(t, ok)
}

func TestReadOnlyMissRunsDefault(t *testing.T) {
	tu := newMemTuner(t, Config{ReadOnly: true})
	rec := &recorder{}
	lws := []uint32{16, 4, 1}
	require.NoError(t, tu.TuneOrRun("k", lws, candidates, rec.execute, &fakeTimer{}))
	assert.Equal(t, [][]uint32{{16, 4, 1}}, rec.calls)
	assert.Equal(t, 0, tu.Len())
}

func TestMismatchedEntryIsRetuned(t *testing.T) {
	tu := newMemTuner(t, DefaultConfig())
	tu.Set("k", []uint32{8, 8})
	rec := &recorder{cost: map[uint32]float64{1: 1, 2: 2, 3: 3, 4: 4}}
	lws := make([]uint32, 3)
	require.NoError(t, tu.TuneOrRun("k", lws, candidates, rec.execute, &fakeTimer{}))
	assert.Len(t, rec.calls, 4)
	assert.Equal(t, []uint32{1, 1, 101}, lws)
}

func TestCandidateLengthMismatch(t *testing.T) {
	tu := newMemTuner(t, DefaultConfig())
	gen := func() [][]uint32 { return [][]uint32{{1, 1}} }
	err := tu.TuneOrRun("k", make([]uint32, 3), gen, (&recorder{}).execute, &fakeTimer{})
	require.Error(t, err)
}

func TestPersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tuned.json")
	tu := newMemTuner(t, Config{Path: path})
	require.NoError(t, tu.Close())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "clean tuner should not write")

	tu.Set("b", []uint32{4, 4, 1})
	tu.Set("a", []uint32{8, 2, 3})
	require.NoError(t, tu.Close())

	again := newMemTuner(t, Config{Path: path})
	assert.Equal(t, []string{"a", "b"}, again.Keys())
	p, ok := again.Params("a")
	require.True(t, ok)
	assert.Equal(t, []uint32{8, 2, 3}, p)

	again.Forget("a")
	require.NoError(t, again.Flush())
	third := newMemTuner(t, Config{Path: path})
	assert.Equal(t, []string{"b"}, third.Keys())
}

func TestLoadCorruptTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuned.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := New(Config{Path: path})
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"version":9,"entries":{}}`), 0o644))
	_, err = New(Config{Path: path})
	require.Error(t, err)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(EnvPath, "/tmp/kd.json")
	t.Setenv(EnvTuning, "0")
	t.Setenv(EnvRuns, "5")
	t.Setenv(EnvWarmup, "2")

	cfg := LoadConfig()
	assert.Equal(t, Config{Path: "/tmp/kd.json", ReadOnly: true, Runs: 5, Warmup: 2}, cfg)
	assert.Len(t, Env(), 4)

	t.Setenv(EnvRuns, "zero")
	t.Setenv(EnvTuning, "1")
	cfg = LoadConfig()
	assert.Equal(t, 1, cfg.Runs)
	assert.False(t, cfg.ReadOnly)
}
