package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gallery-tools/internal/helpers"
	"gallery-tools/internal/models"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
)

// lockRetryDelay is how often a blocked registration re-checks the lock.
const lockRetryDelay = 100 * time.Millisecond

// Store is a persistent registry of gallery records.
type Store interface {
	// Path is the registry file on disk.
	Path() string
	// Records returns the records in display order (newest first).
	Records() ([]models.GalleryRecord, error)
	// Add assigns rec a fresh ID, places it at the head of the list together
	// with the import for asset, and persists the result. It returns the stored record.
	Add(ctx context.Context, rec models.GalleryRecord, asset models.ImageAsset) (models.GalleryRecord, error)
}

// NextID returns one more than the highest id among records, or 1 when there are none.
func NextID(records []models.GalleryRecord) int {
	highest := 0
	for _, r := range records {
		if r.ID > highest {
			highest = r.ID
		}
	}
	return highest + 1
}

// fileUpdater serializes read-modify-write cycles on one registry file.
type fileUpdater struct {
	path     string
	lockPath string
	// allowMissing treats a missing registry file as empty input.
	allowMissing bool
}

// update locks the registry, hands its current bytes to edit and atomically
// replaces the file with the result. The write is abandoned if the file changed
// on disk while edit was running.
func (u fileUpdater) update(ctx context.Context, edit func(current []byte) ([]byte, error)) error {
	lockPath := u.lockPath
	if lockPath == "" {
		lockPath = u.path + ".lock"
	}
	if !helpers.CheckAndMakeDir(filepath.Dir(lockPath)) {
		return fmt.Errorf("cannot create lock directory for %s", lockPath)
	}

	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("%w: waiting for lock %s: %v", ErrConcurrentModification, lockPath, err)
	}
	if !locked {
		return fmt.Errorf("%w: lock %s is held by another process", ErrConcurrentModification, lockPath)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			log.WithError(err).Warnf("Failed to release registry lock %s", lockPath)
		}
	}()

	current, mode, err := u.read()
	if err != nil {
		return err
	}
	expectedHash := helpers.HashBytes(current)

	updated, err := edit(current)
	if err != nil {
		return err
	}

	// Another editor that ignores the lock file (a text editor, a second checkout) may
	// have written in the meantime.
	now, _, err := u.read()
	if err != nil {
		return err
	}
	if helpers.HashBytes(now) != expectedHash {
		return fmt.Errorf("%w: %s changed while the new record was being prepared; re-run the command", ErrConcurrentModification, u.path)
	}

	if _, err := helpers.WriteFileAtomic(u.path, mode, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(updated))
		return err
	}); err != nil {
		return fmt.Errorf("writing registry %s: %w", u.path, err)
	}
	log.WithField("registry", u.path).Debugf("Registry written (%s)", helpers.BytesToSize(uint64(len(updated))))
	return nil
}

func (u fileUpdater) read() ([]byte, os.FileMode, error) {
	info, err := os.Stat(u.path)
	if err != nil {
		if os.IsNotExist(err) && u.allowMissing {
			return nil, 0644, nil
		}
		return nil, 0, fmt.Errorf("reading registry %s: %w", u.path, err)
	}
	data, err := os.ReadFile(u.path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading registry %s: %w", u.path, err)
	}
	return data, info.Mode().Perm(), nil
}
