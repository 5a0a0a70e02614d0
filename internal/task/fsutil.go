package task

import (
	"errors"
	"os"
	"strings"
)

// dirEntries returns the base names of the .json files directly under
// dir, in arbitrary order (List sorts the resulting tasks afterward).
func dirEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
