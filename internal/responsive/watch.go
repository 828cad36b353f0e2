package responsive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// WatchDebounce is how long a source must stay quiet before it is regenerated.
var WatchDebounce = 500 * time.Millisecond

// RemoveDerivatives deletes every existing output of one source image and
// returns how many files were removed.
func (g *Generator) RemoveDerivatives(image string) (int, error) {
	safeBase := SafeBaseName(image, g.SpecialCases)
	removed := 0
	for _, c := range g.Categories {
		if !containsString(c.Images, image) {
			continue
		}
		for _, width := range c.Widths {
			for _, enc := range g.Encoders {
				out := OutputPath(g.OutputDir, safeBase, width, enc.Encoding())
				err := os.Remove(out)
				if err == nil {
					removed++
					continue
				}
				if !os.IsNotExist(err) {
					return removed, fmt.Errorf("removing stale derivative %s: %w", out, err)
				}
			}
		}
	}
	return removed, nil
}

// Watch regenerates derivatives whenever a manifest source in the asset dir is
// created or rewritten. Stale outputs of a changed source are removed first so
// skip-if-exists does not keep them. onRun is called after each batch. Watch
// blocks until ctx is done.
func (g *Generator) Watch(ctx context.Context, onRun func(changed []string, s Summary)) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(g.AssetDir); err != nil {
		return fmt.Errorf("failed to watch folder %s: %w", g.AssetDir, err)
	}
	log.Infof("Watching %s for source image changes", g.AssetDir)

	sources := make(map[string]bool)
	for _, s := range g.Sources() {
		sources[s] = true
	}

	changed := make(map[string]bool)
	timer := time.NewTimer(WatchDebounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !sources[name] {
				continue
			}
			log.WithField("op", event.Op.String()).Debugf("Source changed: %s", name)
			changed[name] = true
			timer.Reset(WatchDebounce)

		case <-timer.C:
			batch := make([]string, 0, len(changed))
			for name := range changed {
				batch = append(batch, name)
			}
			sort.Strings(batch)
			changed = make(map[string]bool)
			if len(batch) == 0 {
				continue
			}

			for _, name := range batch {
				if n, err := g.RemoveDerivatives(name); err != nil {
					log.WithError(err).Warnf("Could not clear derivatives of %s", name)
				} else if n > 0 {
					log.Debugf("Removed %d stale derivatives of %s", n, name)
				}
			}
			summary, err := g.RunImages(ctx, batch)
			if err != nil {
				return err
			}
			if onRun != nil {
				onRun(batch, summary)
			}

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Watcher error")
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
