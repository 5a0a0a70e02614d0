package swarm

import (
	"errors"
	"os"
)

func readDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func isNotExistErr(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
