package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotImplemented signals an operation the selected backend does not support.
	ErrNotImplemented = errors.New("not implemented")
	// ErrInvalidInput signals a malformed request value.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited signals that the local request budget was exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrDimensionMismatch signals two embeddings of different (or zero) length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrCorpusNotFound signals a search against a corpus the backend does not know.
	ErrCorpusNotFound = errors.New("corpus not found")
	// ErrProviderUnavailable signals a transport or auth failure in the
	// embedding or search backend.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrInvalidWalk signals walk parameters outside their allowed range.
	ErrInvalidWalk = errors.New("invalid walk parameters")

	// ErrEmbeddingProviderError signals an embedding API failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrChatProviderError signals a chat completion API failure.
	ErrChatProviderError = errors.New("chat provider error")
)

// ProviderError marks an upstream API failure as ErrProviderUnavailable while
// keeping the concrete sentinel (embedding or chat) reachable via errors.Is.
type ProviderError struct {
	Kind error
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap exposes the kind, the availability sentinel and the cause.
func (e *ProviderError) Unwrap() []error {
	errs := []error{e.Kind, ErrProviderUnavailable}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewEmbeddingProviderError wraps cause as an embedding API failure.
func NewEmbeddingProviderError(cause error) error {
	return &ProviderError{Kind: ErrEmbeddingProviderError, Err: cause}
}

// NewChatProviderError wraps cause as a chat API failure.
func NewChatProviderError(cause error) error {
	return &ProviderError{Kind: ErrChatProviderError, Err: cause}
}
