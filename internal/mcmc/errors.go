package mcmc

import (
	"errors"
	"fmt"
)

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeNoLatents indicates a graph without latent vertices.
	ErrCodeNoLatents ConfigErrorCode = "NO_LATENTS"

	// ErrCodeEmptyProposal indicates a selector that chose no vertices.
	ErrCodeEmptyProposal ConfigErrorCode = "EMPTY_PROPOSAL"

	// ErrCodeImpossibleStart indicates a starting state with zero
	// probability (log-probability -Inf or NaN).
	ErrCodeImpossibleStart ConfigErrorCode = "IMPOSSIBLE_START"

	// ErrCodeInvalidSampleCount indicates a non-positive sample count.
	ErrCodeInvalidSampleCount ConfigErrorCode = "INVALID_SAMPLE_COUNT"

	// ErrCodeInvalidDrop indicates a negative drop count or one that
	// discards every sample.
	ErrCodeInvalidDrop ConfigErrorCode = "INVALID_DROP"

	// ErrCodeInvalidDownSample indicates a down-sample interval below one.
	ErrCodeInvalidDownSample ConfigErrorCode = "INVALID_DOWN_SAMPLE"

	// ErrCodeNoRecordedVertices indicates an empty record set.
	ErrCodeNoRecordedVertices ConfigErrorCode = "NO_RECORDED_VERTICES"
)

// ConfigError is raised before sampling starts. Nothing is sampled when a
// ConfigError is returned.
type ConfigError struct {
	Code    ConfigErrorCode
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError reports whether err is a ConfigError.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ConfigCode returns the code of the first ConfigError in err's chain, or "".
func ConfigCode(err error) ConfigErrorCode {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func configError(code ConfigErrorCode, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Message: fmt.Sprintf(format, args...)}
}
