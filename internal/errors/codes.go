// Package errors defines the structured error type used across the
// retrieval pipeline. Codes follow ERR_NNN_NAME, with the leading digit
// of NNN placing the error in a category block.
package errors

// Category groups errors by where the fault lies.
type Category string

const (
	CategoryConfig  Category = "CONFIG"
	CategoryStorage Category = "STORAGE"
	// CategoryCollaborator covers external services the engine leans on:
	// embedding providers, remote vector indexes, rerankers.
	CategoryCollaborator Category = "COLLABORATOR"
	CategoryValidation   Category = "VALIDATION"
	CategoryInternal     Category = "INTERNAL"
)

// Severity tells callers how to react: fatal aborts the operation,
// error fails the request, warning means the pipeline degraded and kept
// going.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// 1XX configuration.
const (
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
)

// 2XX metadata store and index files.
const (
	ErrCodeStoreOpen    = "ERR_201_STORE_OPEN"
	ErrCodeStoreQuery   = "ERR_202_STORE_QUERY"
	ErrCodeStoreWrite   = "ERR_203_STORE_WRITE"
	ErrCodeCorruptIndex = "ERR_204_CORRUPT_INDEX"
)

// 3XX collaborators.
const (
	ErrCodeEmbeddingFailed    = "ERR_301_EMBEDDING_FAILED"
	ErrCodeVectorSearchFailed = "ERR_302_VECTOR_SEARCH_FAILED"
	ErrCodeVectorTimeout      = "ERR_303_VECTOR_TIMEOUT"
	ErrCodeRerankerFailed     = "ERR_304_RERANKER_FAILED"
)

// 4XX request validation.
const (
	ErrCodeQueryEmpty        = "ERR_401_QUERY_EMPTY"
	ErrCodeInvalidWeights    = "ERR_402_INVALID_WEIGHTS"
	ErrCodeInvalidFilter     = "ERR_403_INVALID_FILTER"
	ErrCodeInvalidLimit      = "ERR_404_INVALID_LIMIT"
	ErrCodeDimensionMismatch = "ERR_405_DIMENSION_MISMATCH"
)

// 5XX internal.
const (
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeRetrieveFailed  = "ERR_502_RETRIEVE_FAILED"
	ErrCodeIndexingFailed  = "ERR_503_INDEXING_FAILED"
	ErrCodeSnapshotMissing = "ERR_504_SNAPSHOT_MISSING"
)

// categoryFromCode reads the block digit out of "ERR_NNN_...". Anything
// malformed lands in INTERNAL.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryCollaborator
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeSnapshotMissing:
		return SeverityFatal
	}
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// Retryable codes are transient collaborator failures. The engine
// already degrades on these; callers retrying is also safe.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeVectorSearchFailed, ErrCodeVectorTimeout, ErrCodeRerankerFailed:
		return true
	}
	return false
}
