package tuner

import (
	"os"
	"strconv"
	"strings"
)

// Environment knobs read by LoadConfig.
const (
	EnvPath   = "KDISPATCH_TUNING_PATH"
	EnvTuning = "KDISPATCH_TUNING"
	EnvRuns   = "KDISPATCH_TUNING_RUNS"
	EnvWarmup = "KDISPATCH_TUNING_WARMUP"
)

// Config controls how the tuner sweeps and where it keeps its table.
type Config struct {
	// Path of the JSON parameter table. Empty keeps the table in memory.
	Path string
	// ReadOnly replays stored entries and never sweeps; a miss runs the
	// caller's default partition.
	ReadOnly bool
	// Runs is the number of timed executions per candidate.
	Runs int
	// Warmup is the number of untimed executions before Runs.
	Warmup int
}

// DefaultConfig keeps the table in memory and times each candidate once.
func DefaultConfig() Config {
	return Config{Runs: 1}
}

// LoadConfig builds a Config from the environment on top of DefaultConfig.
func LoadConfig() Config {
	cfg := DefaultConfig()
	cfg.Path = strings.TrimSpace(os.Getenv(EnvPath))
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvTuning))) {
	case "0", "false", "off", "no":
		cfg.ReadOnly = true
	}
	if v := os.Getenv(EnvRuns); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Runs = n
		}
	}
	if v := os.Getenv(EnvWarmup); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Warmup = n
		}
	}
	return cfg
}

// Env returns the knobs that are set, for reports.
func Env() map[string]string {
	out := map[string]string{}
	for _, k := range []string{EnvPath, EnvTuning, EnvRuns, EnvWarmup} {
		if v := os.Getenv(k); v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
