package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

const maxSuffixAttempts = 10000

// MoveFile relocates src into dir, keeping the base name. On a name collision
// a numeric suffix is appended instead of overwriting. Cross-device renames
// fall back to a verified copy followed by source removal. The final path is
// returned.
func MoveFile(src, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure directory %s: %w", dir, err)
	}

	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	target, err := nextAvailablePath(dir, stem, ext)
	if err != nil {
		return "", err
	}

	renameErr := os.Rename(src, target)
	if renameErr == nil {
		return target, nil
	}

	if errors.Is(renameErr, os.ErrExist) {
		// Raced with another writer; allocate a fresh slot once more.
		target, err = nextAvailablePath(dir, stem, ext)
		if err != nil {
			return "", err
		}
		if renameErr = os.Rename(src, target); renameErr == nil {
			return target, nil
		}
	}

	var linkErr *os.LinkError
	if errors.As(renameErr, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		if err := CopyFileVerified(src, target); err != nil {
			return "", fmt.Errorf("copy across filesystems: %w", err)
		}
		if err := os.Remove(src); err != nil {
			return target, fmt.Errorf("remove source after copy: %w", err)
		}
		return target, nil
	}

	return "", fmt.Errorf("move %s: %w", base, renameErr)
}

func nextAvailablePath(dir, stem, ext string) (string, error) {
	if strings.TrimSpace(stem) == "" {
		stem = "unnamed"
	}

	candidate := filepath.Join(dir, stem+ext)
	if _, err := os.Stat(candidate); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		return "", err
	}

	for attempt := 1; attempt <= maxSuffixAttempts; attempt++ {
		name := fmt.Sprintf("%s-%d%s", stem, attempt, ext)
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return candidate, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted filename slots for %s in %s", stem, dir)
}
