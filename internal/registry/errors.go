package registry

import "errors"

// Registrar errors. All of them are fatal to one registration; the registry
// is only written after every check and both in-memory edits succeed.
var (
	ErrMissingArgument        = errors.New("missing required arguments")
	ErrAmbiguousSource        = errors.New("provide either --embed or both --embedId and --slug")
	ErrUnparseableEmbed       = errors.New("could not parse embed code")
	ErrAssetNotFound          = errors.New("image file not found")
	ErrRegistryFormat         = errors.New("registry format mismatch")
	ErrConcurrentModification = errors.New("registry modified concurrently")
)
