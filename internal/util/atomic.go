// Package util provides small filesystem helpers shared across muxcmd.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// AtomicWriteFile writes data to path via a temp file and rename, so
// readers never observe a partial write. Used for the result mirror,
// which other processes may read at any moment.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmpFile, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := atomicRename(tmpPath, path); err != nil {
		return err
	}
	tmpPath = ""
	return nil
}

// atomicRename renames src to dst. Windows can hold transient locks on
// the destination, so it retries there; POSIX rename either works or
// fails definitively.
func atomicRename(src, dst string) error {
	const maxRetries = 5
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := os.Rename(src, dst); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if runtime.GOOS != "windows" {
			break
		}
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	return fmt.Errorf("rename %s to %s: %w", src, dst, lastErr)
}
