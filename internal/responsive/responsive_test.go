package responsive

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gallery-tools/internal/helpers"
	"gallery-tools/internal/models"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultSpecialCases = map[string]string{"P&D": "pandd", "J&A": "janda"}

// fakeEncoder writes a marker payload and fails for one width.
type fakeEncoder struct {
	enc       models.Encoding
	failWidth int
}

func (f fakeEncoder) Encoding() models.Encoding { return f.enc }

func (f fakeEncoder) Encode(w io.Writer, img image.Image) error {
	if img.Bounds().Dx() == f.failWidth {
		// Write something first so a torn temp file would be visible if it leaked.
		_, _ = w.Write([]byte("partial"))
		return errors.New("simulated encoder crash")
	}
	_, err := w.Write([]byte("fake " + string(f.enc)))
	return err
}

type memoryLedger struct {
	mu      sync.Mutex
	entries []models.Derivative
}

func (l *memoryLedger) PutDerivative(d models.Derivative) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, d)
	return nil
}

// writeSource saves a w×h test photo into dir.
func writeSource(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	for x := 0; x < w; x += 7 {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: 20, G: 40, B: uint8(x % 255), A: 255})
		}
	}
	require.NoError(t, imaging.Save(img, filepath.Join(dir, name)))
}

func newGenerator(t *testing.T, encoders []Encoder, categories ...models.Category) *Generator {
	t.Helper()
	assets := t.TempDir()
	return &Generator{
		AssetDir:     assets,
		OutputDir:    filepath.Join(assets, "responsive"),
		Categories:   categories,
		SpecialCases: defaultSpecialCases,
		Encoders:     encoders,
		Concurrency:  1,
	}
}

func TestSafeBaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Marianna and Paul.jpg", "marianna-and-paul"},
		{"Marianna and Paul 120.jpg", "marianna-and-paul-120"},
		{"Marianna and Paul-273.jpg", "marianna-and-paul-273"},
		{"Laura & Trevor.jpg", "laura-and-trevor"},
		{"P&D 829.jpg", "pandd-829"},
		{"J&A 367.jpg", "janda-367"},
		{"Novachuk  Photographer.JPG", "novachuk-photographer"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeBaseName(tt.in, defaultSpecialCases))
		})
	}

	assert.Equal(t, "pandd-829", SafeBaseName("P&D 829.jpg", map[string]string{"P&D": "pandd", "P&": "x"}),
		"longer special cases win over their prefixes")
	assert.Equal(t, "pandd-829", SafeBaseName("P&D 829.jpg", nil), "generic & rule without special cases")
}

func TestDefaultCategories(t *testing.T) {
	cats := DefaultCategories()
	require.Len(t, cats, 3)
	assert.Equal(t, "hero", cats[0].Name)
	assert.Equal(t, []int{300, 500, 700, 1000}, cats[1].Widths)
	assert.Contains(t, cats[1].Images, "Marianna and Paul-273.jpg")
	assert.Equal(t, []string{"Novachuk Photographer.jpg"}, cats[2].Images)
	assert.NoError(t, ValidateCategories(cats))

	assert.Error(t, ValidateCategories([]models.Category{{Name: "x", Widths: []int{0}}}))
	assert.Error(t, ValidateCategories([]models.Category{{Widths: []int{10}}}))
}

func TestGenerator_IdempotentRerun(t *testing.T) {
	g := newGenerator(t, DefaultEncoders(85, 82), models.Category{
		Name:   "portfolio",
		Widths: []int{300, 800},
		Images: []string{"Laura & Trevor.jpg", "Ghost.jpg"},
	})
	writeSource(t, g.AssetDir, "Laura & Trevor.jpg", 600, 400)

	first, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Generated: 4, Missing: 1}, first)

	small, err := imaging.Open(OutputPath(g.OutputDir, "laura-and-trevor", 300, models.EncodingJPEG))
	require.NoError(t, err)
	assert.Equal(t, 300, small.Bounds().Dx())
	assert.Equal(t, 200, small.Bounds().Dy())

	// 800 is wider than the source: no upscaling.
	large, err := imaging.Open(OutputPath(g.OutputDir, "laura-and-trevor", 800, models.EncodingJPEG))
	require.NoError(t, err)
	assert.Equal(t, 600, large.Bounds().Dx())
	assert.FileExists(t, OutputPath(g.OutputDir, "laura-and-trevor", 800, models.EncodingWebP))

	hashes := map[string]string{}
	entries, err := os.ReadDir(g.OutputDir)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for _, e := range entries {
		h, err := helpers.HashFile(filepath.Join(g.OutputDir, e.Name()))
		require.NoError(t, err)
		hashes[e.Name()] = h
	}

	second, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 4, Missing: 1}, second)
	assert.Equal(t, "Generated 0, skipped 4, failed 0, missing sources 1", second.String())

	for name, want := range hashes {
		got, err := helpers.HashFile(filepath.Join(g.OutputDir, name))
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestGenerator_FailureIsolation(t *testing.T) {
	encoders := []Encoder{
		fakeEncoder{enc: models.EncodingWebP, failWidth: 300},
		fakeEncoder{enc: models.EncodingJPEG},
	}
	g := newGenerator(t, encoders,
		models.Category{Name: "portfolio", Widths: []int{300, 500}, Images: []string{"P&D 829.jpg", "J&A 367.jpg"}},
		models.Category{Name: "about", Widths: []int{300}, Images: []string{"Novachuk Photographer.jpg"}},
	)
	for _, name := range []string{"P&D 829.jpg", "J&A 367.jpg", "Novachuk Photographer.jpg"} {
		writeSource(t, g.AssetDir, name, 900, 600)
	}

	summary, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Failed, "webp@300 fails for every image")
	assert.Equal(t, int64(7), summary.Generated)

	for _, base := range []string{"pandd-829", "janda-367"} {
		assert.NoFileExists(t, OutputPath(g.OutputDir, base, 300, models.EncodingWebP))
		assert.FileExists(t, OutputPath(g.OutputDir, base, 300, models.EncodingJPEG))
		assert.FileExists(t, OutputPath(g.OutputDir, base, 500, models.EncodingWebP))
		assert.FileExists(t, OutputPath(g.OutputDir, base, 500, models.EncodingJPEG))
	}
	assert.FileExists(t, OutputPath(g.OutputDir, "novachuk-photographer", 300, models.EncodingJPEG))

	entries, err := os.ReadDir(g.OutputDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), helpers.TempSuffix), "leftover temp file %s", e.Name())
	}
}

func TestGenerator_OneOfPairExists(t *testing.T) {
	encoders := []Encoder{fakeEncoder{enc: models.EncodingWebP}, fakeEncoder{enc: models.EncodingJPEG}}
	g := newGenerator(t, encoders, models.Category{Name: "hero", Widths: []int{400}, Images: []string{"Marianna and Paul.jpg"}})
	writeSource(t, g.AssetDir, "Marianna and Paul.jpg", 500, 300)

	require.NoError(t, os.MkdirAll(g.OutputDir, 0755))
	existing := OutputPath(g.OutputDir, "marianna-and-paul", 400, models.EncodingWebP)
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0644))

	summary, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Generated: 1, Skipped: 1}, summary)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
	assert.FileExists(t, OutputPath(g.OutputDir, "marianna-and-paul", 400, models.EncodingJPEG))
}

func TestGenerator_UndecodableSourceCountsFailures(t *testing.T) {
	encoders := []Encoder{fakeEncoder{enc: models.EncodingWebP}, fakeEncoder{enc: models.EncodingJPEG}}
	g := newGenerator(t, encoders, models.Category{Name: "hero", Widths: []int{400, 600}, Images: []string{"Broken.jpg"}})
	require.NoError(t, os.WriteFile(filepath.Join(g.AssetDir, "Broken.jpg"), []byte("not a jpeg"), 0644))

	summary, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Failed: 4}, summary)
}

func TestGenerator_ConcurrentWorkersAndLedger(t *testing.T) {
	encoders := []Encoder{fakeEncoder{enc: models.EncodingWebP}, fakeEncoder{enc: models.EncodingJPEG}}
	names := []string{"A one.jpg", "B two.jpg", "C three.jpg", "D four.jpg"}
	g := newGenerator(t, encoders, models.Category{Name: "portfolio", Widths: []int{100, 200}, Images: names})
	for _, n := range names {
		writeSource(t, g.AssetDir, n, 250, 250)
	}
	ledger := &memoryLedger{}
	g.Ledger = ledger
	g.Concurrency = 3
	var progress strings.Builder
	g.Progress = &progress

	summary, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Generated: 16}, summary)

	require.Len(t, ledger.entries, 16)
	for _, d := range ledger.entries {
		assert.NotEmpty(t, d.SourceHash)
		assert.Equal(t, "portfolio", d.Category)
		assert.FileExists(t, d.OutputPath)
		assert.Positive(t, d.Bytes)
	}
	assert.Contains(t, progress.String(), "C three.jpg @ 200px")
}

func TestGenerator_CancelledContext(t *testing.T) {
	encoders := []Encoder{fakeEncoder{enc: models.EncodingJPEG}}
	g := newGenerator(t, encoders, models.Category{Name: "hero", Widths: []int{100}, Images: []string{"A.jpg"}})
	writeSource(t, g.AssetDir, "A.jpg", 200, 200)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := g.Run(ctx)
	require.NoError(t, err)
	// Either nothing was queued, or the single job slipped in before the check.
	assert.LessOrEqual(t, summary.Generated, int64(1))
}

func TestGenerator_RemoveDerivatives(t *testing.T) {
	encoders := []Encoder{fakeEncoder{enc: models.EncodingWebP}, fakeEncoder{enc: models.EncodingJPEG}}
	g := newGenerator(t, encoders, models.Category{Name: "hero", Widths: []int{100, 150}, Images: []string{"A b.jpg", "C.jpg"}})
	writeSource(t, g.AssetDir, "A b.jpg", 200, 200)
	writeSource(t, g.AssetDir, "C.jpg", 200, 200)

	_, err := g.Run(context.Background())
	require.NoError(t, err)

	n, err := g.RemoveDerivatives("A b.jpg")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoFileExists(t, OutputPath(g.OutputDir, "a-b", 100, models.EncodingJPEG))
	assert.FileExists(t, OutputPath(g.OutputDir, "c", 100, models.EncodingJPEG))

	n, err = g.RemoveDerivatives("A b.jpg")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGenerator_WatchRegeneratesChangedSource(t *testing.T) {
	old := WatchDebounce
	WatchDebounce = 50 * time.Millisecond
	defer func() { WatchDebounce = old }()

	encoders := []Encoder{fakeEncoder{enc: models.EncodingJPEG}}
	g := newGenerator(t, encoders, models.Category{Name: "hero", Widths: []int{100}, Images: []string{"New shoot.jpg"}})
	require.NoError(t, os.MkdirAll(g.OutputDir, 0755))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- g.Watch(ctx, func(changed []string, s Summary) {
			runs <- changed
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(200 * time.Millisecond)
	writeSource(t, g.AssetDir, "New shoot.jpg", 200, 100)
	require.NoError(t, os.WriteFile(filepath.Join(g.AssetDir, "unrelated.txt"), []byte("x"), 0644))

	select {
	case changed := <-runs:
		assert.Equal(t, []string{"New shoot.jpg"}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not regenerate the new source")
	}
	assert.FileExists(t, OutputPath(g.OutputDir, "new-shoot", 100, models.EncodingJPEG))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
