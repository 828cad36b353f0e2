package database

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gallery-tools/internal/helpers"
	"gallery-tools/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDB_PutGetDelete(t *testing.T) {
	db := openTestDB(t)
	key := []byte("k")
	value := []byte(strings.Repeat("compressible ", 50))

	require.NoError(t, db.Put(key, value))
	assert.True(t, db.Has(key))

	got, err := db.Get(key)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	require.NoError(t, db.Delete(key))
	assert.False(t, db.Has(key))

	_, err = db.Get(key)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(db.Delete(key), ErrNotFound))
}

func TestDecompressIfGzipped_PlainValue(t *testing.T) {
	got, err := decompressIfGzipped([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), got)

	packed, err := compressGzip([]byte("packed"), 9)
	require.NoError(t, err)
	got, err = decompressIfGzipped(packed)
	require.NoError(t, err)
	assert.Equal(t, []byte("packed"), got)
}

func TestLedger_Derivatives(t *testing.T) {
	db := openTestDB(t)
	long := filepath.Join("src", "assets", "responsive", strings.Repeat("very-long-gallery-name-", 6)+"1000.webp")
	entries := []models.Derivative{
		{OutputPath: "out/b-300.jpg", Source: "B.jpg", Width: 300, Encoding: models.EncodingJPEG, Bytes: 10, GeneratedAt: time.Unix(100, 0).UTC()},
		{OutputPath: "out/a-300.webp", Source: "A.jpg", Width: 300, Encoding: models.EncodingWebP, Bytes: 20},
		{OutputPath: long, Source: "Long.jpg", Width: 1000, Encoding: models.EncodingWebP},
	}
	for _, e := range entries {
		require.NoError(t, db.PutDerivative(e))
	}
	require.NoError(t, db.Put([]byte("unrelated"), []byte("x")))
	assert.Error(t, db.PutDerivative(models.Derivative{}))

	got, err := db.GetDerivative("out/b-300.jpg")
	require.NoError(t, err)
	assert.Equal(t, entries[0], got)

	all, err := db.Derivatives()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "out/a-300.webp", all[0].OutputPath)
	assert.Equal(t, "out/b-300.jpg", all[1].OutputPath)

	require.NoError(t, db.DeleteDerivative("out/a-300.webp"))
	_, err = db.GetDerivative("out/a-300.webp")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLedger_Verify(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()

	writeFile := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}
	writeFile("Fresh.jpg", "fresh source")
	writeFile("Edited.jpg", "original")
	freshHash, err := helpers.HashFile(filepath.Join(dir, "Fresh.jpg"))
	require.NoError(t, err)
	editedHash, err := helpers.HashFile(filepath.Join(dir, "Edited.jpg"))
	require.NoError(t, err)
	writeFile("Edited.jpg", "retouched")

	okOut := writeFile("fresh-300.jpg", "x")
	staleOut := writeFile("edited-300.jpg", "x")
	orphanOut := writeFile("gone-300.jpg", "x")

	require.NoError(t, db.PutDerivative(models.Derivative{OutputPath: okOut, Source: "Fresh.jpg", SourceHash: freshHash}))
	require.NoError(t, db.PutDerivative(models.Derivative{OutputPath: staleOut, Source: "Edited.jpg", SourceHash: editedHash}))
	require.NoError(t, db.PutDerivative(models.Derivative{OutputPath: orphanOut, Source: "Gone.jpg", SourceHash: "ABC"}))
	require.NoError(t, db.PutDerivative(models.Derivative{OutputPath: filepath.Join(dir, "deleted-300.jpg"), Source: "Fresh.jpg", SourceHash: freshHash}))

	results, err := db.Verify(func(source string) string { return filepath.Join(dir, source) })
	require.NoError(t, err)

	byPath := map[string]VerifyStatus{}
	for _, r := range results {
		byPath[filepath.Base(r.Entry.OutputPath)] = r.Status
	}
	assert.Equal(t, map[string]VerifyStatus{
		"fresh-300.jpg":   StatusOK,
		"edited-300.jpg":  StatusStale,
		"gone-300.jpg":    StatusSourceMissing,
		"deleted-300.jpg": StatusOutputMissing,
	}, byPath)
}
