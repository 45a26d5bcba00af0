package historymind

import "errors"

var (
	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("historymind: invalid configuration")

	// ErrNoCorpus is returned when neither the store nor the configured
	// corpus files yield any document.
	ErrNoCorpus = errors.New("historymind: no corpus documents")

	// ErrStoreClosed is returned when operating on a closed engine.
	ErrStoreClosed = errors.New("historymind: store is closed")

	// ErrNoResults is recorded in a trace when retrieval found nothing.
	ErrNoResults = errors.New("historymind: no results found")

	// ErrConflict is recorded in a trace when the question contradicts the
	// known lifetime of an entity.
	ErrConflict = errors.New("historymind: conflicting constraints")

	// ErrHardVerification is recorded in a trace when the rendered answer
	// failed verification and was replaced by the conservative answer.
	ErrHardVerification = errors.New("historymind: answer failed verification")
)

var errInternal = errors.New("historymind: internal error")
