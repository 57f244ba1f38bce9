package util

import (
	"fmt"
	"os"
)

func CheckDirectory(path string) (exists bool, isDir bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, info.IsDir(), nil
}

// EnsureDirectory creates path when missing and fails if it is a file.
func EnsureDirectory(path string) error {
	exists, isDir, err := CheckDirectory(path)
	if err != nil {
		return err
	}
	if exists && !isDir {
		return fmt.Errorf("%s exists and is not a directory", path)
	}
	if !exists {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	}
	return nil
}
