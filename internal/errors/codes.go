// Package errors provides structured error handling for skysift.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Model artifact errors (vocabulary, rules, embeddings)
//   - 3XX: Network / collaborator errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryArtifact indicates model artifact load/validation errors.
	CategoryArtifact Category = "ARTIFACT"
	// CategoryNetwork indicates network and collaborator errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Artifact errors (200-299). These are load-time fatal: the engine
	// refuses to start rather than serve degraded results silently.
	ErrCodeVocabCorrupt     = "ERR_201_VOCAB_CORRUPT"
	ErrCodeRulesCorrupt     = "ERR_202_RULES_CORRUPT"
	ErrCodeEmbeddingCorrupt = "ERR_203_EMBEDDING_CORRUPT"
	ErrCodeVocabMismatch    = "ERR_204_VOCAB_EMBEDDING_MISMATCH"
	ErrCodeArtifactNotFound = "ERR_205_ARTIFACT_NOT_FOUND"

	// Network / collaborator errors (300-399)
	ErrCodeSourceTimeout     = "ERR_301_SOURCE_TIMEOUT"
	ErrCodeSourceFailed      = "ERR_302_SOURCE_FAILED"
	ErrCodeUnauthenticated   = "ERR_303_UNAUTHENTICATED"
	ErrCodeSearchUnavailable = "ERR_304_SEARCH_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeQueryTooLong = "ERR_402_QUERY_TOO_LONG"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryArtifact
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from error code.
// Artifact and config errors abort startup; everything else is recoverable.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryConfig, CategoryArtifact:
		return SeverityFatal
	case CategoryNetwork:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code may be retried.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeSourceTimeout, ErrCodeSourceFailed:
		return true
	default:
		return false
	}
}
