package config

import (
	"errors"
	"os"
)

// EnsureFile writes the default configuration to path unless a file is
// already there. It reports whether it created one.
func EnsureFile(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := SaveAtomic(path, Default()); err != nil {
		return false, err
	}
	return true, nil
}
