// Package tuner picks and remembers kernel launch parameters.
//
// TuneOrRun either replays the parameters stored under a tuning key or, on a
// miss, times every generated candidate and keeps the fastest one. The table
// of winners can be persisted as JSON and is reloaded by the next process.
package tuner

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// ErrBadEntry marks a stored entry that does not fit the caller's slot.
var ErrBadEntry = errors.New("stored tuning entry does not match")

var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Generator produces the candidate parameter sets in sweep order.
type Generator func() [][]uint32

// Executor runs the kernel once with params. With a nil timer it must not
// touch timing state. It may rewrite params, and the rewritten slice is what
// gets stored.
type Executor func(params []uint32, timer Timer) error

// Tuner holds the key → parameters table.
type Tuner struct {
	mu    sync.Mutex
	cfg   Config
	table map[string][]uint32
	dirty bool
}

// New builds a tuner and loads cfg.Path when it exists.
func New(cfg Config) (*Tuner, error) {
	if cfg.Runs < 1 {
		cfg.Runs = 1
	}
	if cfg.Warmup < 0 {
		cfg.Warmup = 0
	}
	t := &Tuner{cfg: cfg, table: map[string][]uint32{}}
	if cfg.Path != "" {
		table, err := loadTable(cfg.Path)
		if err != nil {
			return t, err
		}
		t.table = table
		logger.Debug("tuning table loaded", "path", cfg.Path, "entries", len(table))
	}
	return t, nil
}

var (
	globalOnce  sync.Once
	globalTuner *Tuner
)

// Get returns the process-wide tuner, built from LoadConfig on first use.
// A table that fails to load is logged and replaced by an empty one.
func Get() *Tuner {
	globalOnce.Do(func() {
		cfg := LoadConfig()
		t, err := New(cfg)
		if err != nil {
			logger.Warn("tuning table not loaded, starting empty", "path", cfg.Path, "error", err)
			t.table = map[string][]uint32{}
		}
		globalTuner = t
	})
	return globalTuner
}

// Config returns the settings t was built with.
func (t *Tuner) Config() Config { return t.cfg }

// Params returns a copy of the stored parameters for key.
func (t *Tuner) Params(key string) ([]uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.table[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(p), true
}

// Keys returns the stored keys in sorted order.
func (t *Tuner) Keys() []string {
	t.mu.Lock()
	keys := lo.Keys(t.table)
	t.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Len is the number of stored entries.
func (t *Tuner) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.table)
}

// Set stores params under key.
func (t *Tuner) Set(key string, params []uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.table[key] = slices.Clone(params)
	t.dirty = true
}

// Forget drops key so the next TuneOrRun sweeps again.
func (t *Tuner) Forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.table[key]; ok {
		delete(t.table, key)
		t.dirty = true
	}
}

func (t *Tuner) lookup(key string, n int) ([]uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.table[key]
	if !ok {
		return nil, false
	}
	if len(p) != n {
		logger.Warn("ignoring tuning entry", "key", key, "stored", p, "want_len", n,
			"error", ErrBadEntry)
		return nil, false
	}
	return slices.Clone(p), true
}

// TuneOrRun replays the entry stored under key, or sweeps the generated
// candidates and stores the fastest. Either way lws ends up holding the
// chosen parameters and the kernel has been enqueued at least once.
func (t *Tuner) TuneOrRun(key string, lws []uint32, generate Generator, execute Executor, timer Timer) error {
	if p, ok := t.lookup(key, len(lws)); ok {
		copy(lws, p)
		logger.Debug("replaying tuned parameters", "key", key, "params", p)
		return execute(lws, nil)
	}
	if t.cfg.ReadOnly || generate == nil || timer == nil {
		return execute(lws, nil)
	}

	best, bestTime, err := t.tune(key, len(lws), generate, execute, timer)
	if err != nil {
		return err
	}
	copy(lws, best)
	t.Set(key, best)
	logger.Info("tuned parameters", "key", key, "params", best, "micros", bestTime)
	return nil
}

func (t *Tuner) tune(key string, n int, generate Generator, execute Executor, timer Timer) ([]uint32, float64, error) {
	var (
		best     []uint32
		bestTime = math.MaxFloat64
	)
	for _, cand := range generate() {
		if len(cand) != n {
			return nil, 0, fmt.Errorf("tuning %s: candidate %v has %d entries, want %d", key, cand, len(cand), n)
		}
		params := slices.Clone(cand)
		for i := 0; i < t.cfg.Warmup; i++ {
			timer.ClearTiming()
			if err := execute(params, timer); err != nil {
				return nil, 0, fmt.Errorf("tuning %s with %v: %w", key, params, err)
			}
		}
		var total float64
		for i := 0; i < t.cfg.Runs; i++ {
			timer.ClearTiming()
			if err := execute(params, timer); err != nil {
				return nil, 0, fmt.Errorf("tuning %s with %v: %w", key, params, err)
			}
			total += timer.AccumulatedMicros()
		}
		avg := total / float64(t.cfg.Runs)
		logger.Debug("candidate timed", "key", key, "params", params, "micros", avg)
		if avg < bestTime {
			best, bestTime = params, avg
		}
	}
	if best == nil {
		return nil, 0, fmt.Errorf("tuning %s: no candidates", key)
	}
	return best, bestTime, nil
}

// Flush writes the table to Config.Path. It is a no-op without a path.
func (t *Tuner) Flush() error {
	if t.cfg.Path == "" {
		return nil
	}
	t.mu.Lock()
	snapshot := make(map[string][]uint32, len(t.table))
	for k, v := range t.table {
		snapshot[k] = slices.Clone(v)
	}
	t.mu.Unlock()

	if err := saveTable(t.cfg.Path, snapshot); err != nil {
		return err
	}
	t.mu.Lock()
	t.dirty = false
	t.mu.Unlock()
	logger.Debug("tuning table saved", "path", t.cfg.Path, "entries", len(snapshot))
	return nil
}

// Close flushes unsaved entries.
func (t *Tuner) Close() error {
	t.mu.Lock()
	dirty := t.dirty
	t.mu.Unlock()
	if !dirty {
		return nil
	}
	return t.Flush()
}
