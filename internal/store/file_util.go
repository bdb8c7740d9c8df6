package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// errEmptyFile marks a store file that exists but holds no document,
// typically a crash between create and first write. Callers treat it
// like a missing file.
var errEmptyFile = errors.New("empty json file")

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errEmptyFile
	}
	return json.Unmarshal(data, v)
}

// writeJSONAtomic writes through a temp file and rename so a crash
// mid-write never leaves a truncated store on disk.
func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	file, err := os.CreateTemp(dir, ".tmp-*.json")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(file.Name())
	}()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(file.Name(), path)
}
