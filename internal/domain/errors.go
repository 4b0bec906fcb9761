package domain

import "errors"

var (
	// ErrBackendUnavailable signals a connection or timeout failure of the
	// lexical or vector backend. Retrieval stages recover it locally as an
	// empty result set; it never crosses a stage boundary.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrMalformedClassifierResponse signals that the secondary keyword
	// classifier returned unparsable output.
	ErrMalformedClassifierResponse = errors.New("malformed classifier response")

	// ErrMissingText signals a passage whose text could not be recovered
	// from either backend.
	ErrMissingText = errors.New("passage text missing")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")

	// ErrDictionaryNotLoaded signals that the keyword dictionary file was
	// missing or unreadable at startup.
	ErrDictionaryNotLoaded = errors.New("keyword dictionary not loaded")
)
