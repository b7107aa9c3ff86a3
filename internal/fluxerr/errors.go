// Package fluxerr defines the closed set of error kinds the core surfaces
// or recovers from internally, per the error handling design.
package fluxerr

import "errors"

// Sentinel kinds. Wrap with fmt.Errorf("...: %w", kind) at the call site
// rather than constructing new error types — matches the rest of the repo.
var (
	// InvalidInput covers empty text, malformed embeddings, and
	// out-of-range positions. Surfaces to the caller.
	InvalidInput = errors.New("invalid input")

	// Degraded marks a non-fatal fallback (e.g. default ELP when no
	// embedding could be produced). The call still returns a value.
	Degraded = errors.New("degraded result")

	// ProviderUnavailable marks a consensus provider that failed or
	// timed out; recovered locally by dropping that provider.
	ProviderUnavailable = errors.New("provider unavailable")

	// LakeUnavailable marks a failed Lake write. Inference never fails
	// because of it; the orchestrator just marks the result unpersisted.
	LakeUnavailable = errors.New("lake unavailable")

	// CorruptRecord is surfaced only from lake range iteration.
	CorruptRecord = errors.New("corrupt lake record")

	// Cancelled marks a request aborted by caller or deadline. No
	// output, no side effects.
	Cancelled = errors.New("request cancelled")

	// InvalidPosition is a more specific InvalidInput: an insert or
	// anchor lookup named a position outside 0..9 (anchor: 3,6,9).
	InvalidPosition = errors.New("invalid flux position")

	// InvalidKey marks a Lake open/decrypt call with a key that does
	// not match the header's derivation salt (AEAD tag mismatch).
	InvalidKey = errors.New("invalid lake key")

	// OutOfSpace marks a Lake write for which the file could not be
	// grown and memory-mapped again.
	OutOfSpace = errors.New("lake out of space")
)
