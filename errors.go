package crickrag

import "errors"

var (
	// ErrStatsDBUnavailable is returned when the statistics database cannot
	// be reached. The workflow treats it as a routing signal, not a failure.
	ErrStatsDBUnavailable = errors.New("crickrag: statistics database unavailable")

	// ErrQueryFailed is returned when executing a synthesized query fails.
	ErrQueryFailed = errors.New("crickrag: query execution failed")

	// ErrSearchFailed is returned when the web search call fails.
	ErrSearchFailed = errors.New("crickrag: web search failed")

	// ErrLLMRequestFailed is returned when answer generation fails.
	ErrLLMRequestFailed = errors.New("crickrag: LLM request failed")

	// ErrUnsupportedFormat is returned for unrecognized document formats.
	ErrUnsupportedFormat = errors.New("crickrag: unsupported document format")

	// ErrDocumentNotFound is returned when a document ID does not exist.
	ErrDocumentNotFound = errors.New("crickrag: document not found")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("crickrag: embedding generation failed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("crickrag: invalid configuration")
)
