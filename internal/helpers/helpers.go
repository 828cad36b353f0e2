package helpers

import (
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"lukechampine.com/blake3"
)

// TempSuffix marks files that are still being written. Leftovers are removed by `clean`.
const TempSuffix = ".tmp"

// HashBytes returns the upper-case hex BLAKE3-256 digest of data.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// HashFile returns the BLAKE3 digest of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

// FileExists reports whether path exists. Stat errors other than
// "not exist" are logged and treated as existing so callers never overwrite blindly.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	log.WithError(err).Warnf("Error stating file %s", path)
	return true
}

// WriteFileAtomic streams write into a temporary file next to path and renames it
// into place once write succeeds. Readers never observe a partially written file.
func WriteFileAtomic(path string, perm os.FileMode, write func(w io.Writer) error) (int64, error) {
	dir := filepath.Dir(path)
	if !CheckAndMakeDir(dir) {
		return 0, fmt.Errorf("failed to create directory %s", dir)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*"+TempSuffix)
	if err != nil {
		return 0, fmt.Errorf("creating temporary file for %s: %w", path, err)
	}
	shouldCleanupTemp := true
	defer func() {
		if shouldCleanupTemp {
			_ = tempFile.Close()
			if removeErr := os.Remove(tempFile.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
				log.WithError(removeErr).Warnf("Failed to remove temporary file %s", tempFile.Name())
			}
		}
	}()

	counter := &CounterWriter{Writer: tempFile}
	if err := write(counter); err != nil {
		return 0, err
	}
	if err := tempFile.Sync(); err != nil {
		return 0, fmt.Errorf("syncing %s: %w", tempFile.Name(), err)
	}
	if err := tempFile.Close(); err != nil {
		return 0, fmt.Errorf("closing %s: %w", tempFile.Name(), err)
	}
	if err := os.Chmod(tempFile.Name(), perm); err != nil {
		return 0, fmt.Errorf("chmod %s: %w", tempFile.Name(), err)
	}
	if err := os.Rename(tempFile.Name(), path); err != nil {
		return 0, fmt.Errorf("renaming %s to %s: %w", tempFile.Name(), path, err)
	}
	shouldCleanupTemp = false
	return int64(counter.Total), nil
}

// CounterWriter tracks the number of bytes written to the underlying writer.
type CounterWriter struct {
	Total  uint64
	Writer io.Writer
}

// Write implements the io.Writer interface for CounterWriter.
func (cw *CounterWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.Total += uint64(n)
	return n, err
}

// BytesToSize converts a byte count into a human-readable string (KB, MB, GB, etc.).
func BytesToSize(bytes uint64) string {
	sizes := []string{"B", "KB", "MB", "GB", "TB"}
	if bytes == 0 {
		return "0B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1 // Handle very large sizes
	}
	return fmt.Sprintf("%.2f%s", float64(bytes)/math.Pow(1024, float64(i)), sizes[i])
}

// CheckAndMakeDir ensures a directory exists, creating it if necessary.
func CheckAndMakeDir(dir string) bool {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		log.WithError(err).Errorf("Error creating directory %s", dir)
		return false
	}
	return true
}

// Plural returns "N word" or "N words".
func Plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
