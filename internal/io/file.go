// Package ioutils provides file system utilities for quicksong.
//
// This package contains functions for:
//   - Directory validation
//   - Filename sanitization
//   - Moving downloads to their final name
//   - Atomic file writes
package ioutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrNotDir is returned by CheckDir when the path exists but is not a directory.
var ErrNotDir = errors.New("not a directory")

// ErrBadFileName is returned by SafeJoin when a name cannot be used as a
// file name inside the target directory.
var ErrBadFileName = errors.New("invalid file name")

// disallowed matches every character outside the set kept in archive names:
// Unicode letters, marks, digits and connector punctuation, plus '.', '(',
// ')', space and '-'.
var disallowed = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\p{Pc}.)( -]`)

// SanitizeFileName removes every character that is not a word character
// in any script, '.', '_', '(', ')', space or '-', then trims surrounding
// spaces.
//
// Path separators never survive, so the result is always a single path
// element. The result may be empty; SafeJoin rejects that case.
//
// Example:
//
//	SanitizeFileName(`123456 Song: "Live"/Artist.osz`) // "123456 Song LiveArtist.osz"
func SanitizeFileName(name string) string {
	name = disallowed.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// SafeJoin joins dir and a sanitized name, refusing names that would not
// resolve to a file directly inside dir.
func SafeJoin(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrBadFileName, name)
	}
	path := filepath.Join(dir, name)
	if filepath.Dir(path) != filepath.Clean(dir) {
		return "", fmt.Errorf("%w: %q escapes %s", ErrBadFileName, name, dir)
	}
	return path, nil
}

// CheckDir resolves path to an absolute path and verifies it is an
// existing directory.
func CheckDir(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", abs, ErrNotDir)
	}
	return abs, nil
}

// MoveFile renames src to dst, replacing dst if it exists.
//
// Both paths are expected to be on the same file system, which makes the
// rename atomic.
func MoveFile(src, dst string) error {
	if src == dst {
		return nil
	}
	return os.Rename(src, dst)
}

// RemoveIfExists removes path, ignoring a missing file.
func RemoveIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// WriteFile writes data next to path and renames it into place, so a
// crash never leaves a truncated file behind.
//
// The parent directory is created if needed.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
