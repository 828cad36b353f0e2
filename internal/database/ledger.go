package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gallery-tools/internal/helpers"
	"gallery-tools/internal/models"
)

const derivativePrefix = "derivative:"

func derivativeKey(outputPath string) []byte {
	return []byte(derivativePrefix + outputPath)
}

// PutDerivative records (or replaces) the ledger entry for d.OutputPath.
func (d *DB) PutDerivative(entry models.Derivative) error {
	if entry.OutputPath == "" {
		return errors.New("cannot record derivative without an output path")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("error marshalling derivative %s: %w", entry.OutputPath, err)
	}
	return d.Put(derivativeKey(entry.OutputPath), data)
}

// GetDerivative returns the entry for outputPath or ErrNotFound.
func (d *DB) GetDerivative(outputPath string) (models.Derivative, error) {
	var entry models.Derivative
	data, err := d.Get(derivativeKey(outputPath))
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, fmt.Errorf("error unmarshalling derivative %s: %w", outputPath, err)
	}
	return entry, nil
}

// DeleteDerivative drops the entry for outputPath.
func (d *DB) DeleteDerivative(outputPath string) error {
	return d.Delete(derivativeKey(outputPath))
}

// Derivatives returns every ledger entry sorted by output path.
func (d *DB) Derivatives() ([]models.Derivative, error) {
	var entries []models.Derivative
	err := d.Fold(func(key []byte, value []byte) error {
		if !strings.HasPrefix(string(key), derivativePrefix) {
			return nil
		}
		var entry models.Derivative
		if err := json.Unmarshal(value, &entry); err != nil {
			return fmt.Errorf("error unmarshalling ledger entry %s: %w", string(key), err)
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].OutputPath < entries[j].OutputPath })
	return entries, nil
}

// VerifyStatus is the outcome of checking one ledger entry against disk.
type VerifyStatus string

const (
	StatusOK            VerifyStatus = "ok"
	StatusOutputMissing VerifyStatus = "output missing"
	StatusSourceMissing VerifyStatus = "source missing"
	StatusStale         VerifyStatus = "stale"
)

// VerifyResult pairs an entry with its status.
type VerifyResult struct {
	Entry  models.Derivative
	Status VerifyStatus
}

// Verify checks each entry: does the output still exist, and does the source
// hash still match? resolveSource maps an entry's source name to a path on disk.
func (d *DB) Verify(resolveSource func(source string) string) ([]VerifyResult, error) {
	entries, err := d.Derivatives()
	if err != nil {
		return nil, err
	}

	hashes := make(map[string]string)
	results := make([]VerifyResult, 0, len(entries))
	for _, e := range entries {
		res := VerifyResult{Entry: e, Status: StatusOK}
		switch {
		case !helpers.FileExists(e.OutputPath):
			res.Status = StatusOutputMissing
		case e.SourceHash != "":
			hash, seen := hashes[e.Source]
			if !seen {
				hash, err = helpers.HashFile(resolveSource(e.Source))
				if err != nil {
					hash = ""
				}
				hashes[e.Source] = hash
			}
			if hash == "" {
				res.Status = StatusSourceMissing
			} else if hash != e.SourceHash {
				res.Status = StatusStale
			}
		}
		results = append(results, res)
	}
	return results, nil
}
