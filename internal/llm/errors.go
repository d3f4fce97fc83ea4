package llm

import (
	"errors"
	"fmt"
)

// UnsupportedModelError reports a model identifier whose provider tag is
// unknown or malformed. It is a client error and is never retried.
type UnsupportedModelError struct {
	ModelID string
	Reason  string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported model %q: %s", e.ModelID, e.Reason)
}

// ProviderInvocationError wraps an upstream provider failure (network,
// rate limit, invalid request). Retrying is a caller policy decision, not
// something this layer does: a blind retry of a paid call risks
// double-billing if usage was already applied.
type ProviderInvocationError struct {
	Provider Provider
	Status   int // upstream HTTP status when known, 0 otherwise
	Message  string
	Err      error
}

func (e *ProviderInvocationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s failed (status %d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("provider %s failed: %s", e.Provider, e.Message)
}

func (e *ProviderInvocationError) Unwrap() error { return e.Err }

// IsUnsupportedModel reports whether err is an UnsupportedModelError.
func IsUnsupportedModel(err error) bool {
	var umErr *UnsupportedModelError
	return errors.As(err, &umErr)
}

// ErrMissingCredential is returned by the factory when a provider's API key
// is absent from configuration. Adapters fail fast instead of sending an
// unauthenticated request upstream.
var ErrMissingCredential = errors.New("provider credential not configured")

// ErrNoValidMessages is returned when a conversation contains nothing but
// blank content after filtering.
var ErrNoValidMessages = errors.New("no valid message content to send")
