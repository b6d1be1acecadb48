package tuner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const tableVersion = 1

type tableFile struct {
	Version int                 `json:"version"`
	Entries map[string][]uint32 `json:"entries"`
}

func loadTable(path string) (map[string][]uint32, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]uint32{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tuning table: %w", err)
	}
	var f tableFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode tuning table %s: %w", path, err)
	}
	if f.Version != tableVersion {
		return nil, fmt.Errorf("tuning table %s: version %d, want %d", path, f.Version, tableVersion)
	}
	if f.Entries == nil {
		f.Entries = map[string][]uint32{}
	}
	return f.Entries, nil
}

// saveTable writes through a temp file in the same directory and renames it
// over path.
func saveTable(path string, entries map[string][]uint32) error {
	b, err := json.MarshalIndent(tableFile{Version: tableVersion, Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tuning table: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create tuning dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create tuning table: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write tuning table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write tuning table: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install tuning table: %w", err)
	}
	return nil
}
