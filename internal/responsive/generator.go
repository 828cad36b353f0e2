package responsive

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"gallery-tools/internal/helpers"
	"gallery-tools/internal/models"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrSourceNotFound marks a manifest image that is missing from the asset dir. Not fatal.
	ErrSourceNotFound = errors.New("source image not found")
	// ErrEncodeFailure marks one (image, width, encoding) that could not be produced. Not fatal.
	ErrEncodeFailure = errors.New("encode failed")
)

// Ledger records derivatives after they are written.
type Ledger interface {
	PutDerivative(d models.Derivative) error
}

// Summary holds the counters of one run.
type Summary struct {
	Generated int64
	Skipped   int64
	Failed    int64
	Missing   int64
}

func (s Summary) String() string {
	return fmt.Sprintf("Generated %d, skipped %d, failed %d, missing sources %d",
		s.Generated, s.Skipped, s.Failed, s.Missing)
}

// Generator materializes the responsive derivatives of a manifest.
type Generator struct {
	AssetDir     string
	OutputDir    string
	Categories   []models.Category
	SpecialCases map[string]string
	Encoders     []Encoder
	// Concurrency is the number of images processed at once. 1 keeps manifest order.
	Concurrency int
	// Ledger is optional.
	Ledger Ledger
	// Progress receives one human readable line per finished step. Optional.
	Progress io.Writer

	progressMu sync.Mutex
}

// imageJob is one source image with the widths its category asks for.
type imageJob struct {
	Category string
	Image    string
	Widths   []int
}

type counters struct {
	generated, skipped, failed, missing int64
}

// Run processes every category, image and width. Per-item problems are logged and
// counted; the returned error is only non-nil when the output dir cannot be created.
// Cancelling ctx stops queuing new images; images already started are finished.
func (g *Generator) Run(ctx context.Context) (Summary, error) {
	if !helpers.CheckAndMakeDir(g.OutputDir) {
		return Summary{}, fmt.Errorf("cannot create output directory %s", g.OutputDir)
	}
	return g.run(ctx, g.jobs(nil)), nil
}

// RunImages is Run restricted to the named source files.
func (g *Generator) RunImages(ctx context.Context, images []string) (Summary, error) {
	if !helpers.CheckAndMakeDir(g.OutputDir) {
		return Summary{}, fmt.Errorf("cannot create output directory %s", g.OutputDir)
	}
	want := make(map[string]bool, len(images))
	for _, img := range images {
		want[img] = true
	}
	return g.run(ctx, g.jobs(want)), nil
}

// Sources lists every image the manifest references.
func (g *Generator) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range g.Categories {
		for _, img := range c.Images {
			if !seen[img] {
				seen[img] = true
				out = append(out, img)
			}
		}
	}
	return out
}

func (g *Generator) jobs(only map[string]bool) []imageJob {
	var jobs []imageJob
	for _, c := range g.Categories {
		for _, img := range c.Images {
			if only != nil && !only[img] {
				continue
			}
			jobs = append(jobs, imageJob{Category: c.Name, Image: img, Widths: c.Widths})
		}
	}
	return jobs
}

func (g *Generator) run(ctx context.Context, jobList []imageJob) Summary {
	numWorkers := g.Concurrency
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	var c counters
	jobs := make(chan imageJob, len(jobList))

	log.Debugf("Starting %d responsive image workers for %d images", numWorkers, len(jobList))
	for w := 1; w <= numWorkers; w++ {
		wg.Add(1)
		go g.worker(w, jobs, &wg, &c)
	}

queue:
	for _, job := range jobList {
		select {
		case <-ctx.Done():
			log.WithError(ctx.Err()).Warn("Generation cancelled, not queuing remaining images")
			break queue
		case jobs <- job:
		}
	}
	close(jobs)
	wg.Wait()

	return Summary{
		Generated: atomic.LoadInt64(&c.generated),
		Skipped:   atomic.LoadInt64(&c.skipped),
		Failed:    atomic.LoadInt64(&c.failed),
		Missing:   atomic.LoadInt64(&c.missing),
	}
}

func (g *Generator) worker(id int, jobs <-chan imageJob, wg *sync.WaitGroup, c *counters) {
	defer wg.Done()
	for job := range jobs {
		g.processImage(id, job, c)
	}
	log.Debugf("Responsive worker %d finished", id)
}

// pending lists the encoders still missing for one width.
type pending struct {
	width    int
	encoders []Encoder
}

func (g *Generator) processImage(workerID int, job imageJob, c *counters) {
	logger := log.WithFields(log.Fields{"worker": workerID, "category": job.Category, "image": job.Image})
	sourcePath := filepath.Join(g.AssetDir, job.Image)

	if !helpers.FileExists(sourcePath) {
		logger.WithError(ErrSourceNotFound).Warnf("Skipping %s", sourcePath)
		g.progressf("  - Skipping %s (file not found)", job.Image)
		atomic.AddInt64(&c.missing, 1)
		return
	}

	safeBase := SafeBaseName(job.Image, g.SpecialCases)

	var todo []pending
	for _, width := range job.Widths {
		p := pending{width: width}
		for _, enc := range g.Encoders {
			out := OutputPath(g.OutputDir, safeBase, width, enc.Encoding())
			if helpers.FileExists(out) {
				atomic.AddInt64(&c.skipped, 1)
				continue
			}
			p.encoders = append(p.encoders, enc)
		}
		if len(p.encoders) > 0 {
			todo = append(todo, p)
		}
	}
	if len(todo) == 0 {
		logger.Debug("All derivatives exist")
		return
	}

	src, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		for _, p := range todo {
			logger.WithError(err).WithField("width", p.width).Errorf("%v: cannot decode %s", ErrEncodeFailure, job.Image)
			g.progressf("  - Error processing %s @ %dpx: %v", job.Image, p.width, err)
			atomic.AddInt64(&c.failed, int64(len(p.encoders)))
		}
		return
	}

	var sourceHash string
	if g.Ledger != nil {
		if sourceHash, err = helpers.HashFile(sourcePath); err != nil {
			logger.WithError(err).Warn("Could not hash source for the ledger")
		}
	}

	srcWidth := src.Bounds().Dx()
	for _, p := range todo {
		resized := resizeNoUpscale(src, p.width, srcWidth)
		ok := true
		for _, enc := range p.encoders {
			out := OutputPath(g.OutputDir, safeBase, p.width, enc.Encoding())
			start := time.Now()
			n, err := helpers.WriteFileAtomic(out, 0644, func(w io.Writer) error {
				return enc.Encode(w, resized)
			})
			if err != nil {
				ok = false
				logger.WithError(err).WithFields(log.Fields{"width": p.width, "encoding": enc.Encoding()}).
					Errorf("%v: %s @ %dpx", ErrEncodeFailure, job.Image, p.width)
				g.progressf("  - Error processing %s @ %dpx (%s): %v", job.Image, p.width, enc.Encoding(), err)
				atomic.AddInt64(&c.failed, 1)
				continue
			}
			atomic.AddInt64(&c.generated, 1)
			logger.WithFields(log.Fields{"output": out, "bytes": n}).Debugf("Wrote derivative in %v", time.Since(start).Round(time.Millisecond))

			if g.Ledger != nil {
				d := models.Derivative{
					OutputPath:  out,
					Source:      job.Image,
					SourceHash:  sourceHash,
					Category:    job.Category,
					Width:       p.width,
					Encoding:    enc.Encoding(),
					Bytes:       n,
					GeneratedAt: time.Now().UTC(),
				}
				if err := g.Ledger.PutDerivative(d); err != nil {
					logger.WithError(err).Warnf("Failed to record %s in the ledger", out)
				}
			}
		}
		if ok {
			g.progressf("  - %s @ %dpx", job.Image, p.width)
		}
	}
}

// resizeNoUpscale scales img to width, keeping the aspect ratio. Images already
// at or below width are returned unchanged.
func resizeNoUpscale(img image.Image, width, srcWidth int) image.Image {
	if width >= srcWidth {
		return img
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

func (g *Generator) progressf(format string, args ...interface{}) {
	if g.Progress == nil {
		return
	}
	g.progressMu.Lock()
	defer g.progressMu.Unlock()
	fmt.Fprintf(g.Progress, format+"\n", args...)
}
