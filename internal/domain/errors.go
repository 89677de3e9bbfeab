package domain

import "errors"

// Request-scoped failures. Each is fatal to the single normalization or query
// request that triggered it, never to a batch operation.
var (
	// ErrUnknownModelGrid means the model has no registered grid geometry.
	ErrUnknownModelGrid = errors.New("no grid definition registered for model")

	// ErrEmptyField means a degenerate (zero-sized) field was passed to the
	// normalizer.
	ErrEmptyField = errors.New("empty input field")

	// ErrGridShapeMismatch means the field's shape does not match the grid's
	// declared dimensions.
	ErrGridShapeMismatch = errors.New("field shape does not match grid dimensions")

	// ErrNotIndexed means the requested combination is absent from the index.
	ErrNotIndexed = errors.New("combination not present in index")

	// ErrSourceUnreadable means the file exists in the index but could not be
	// opened or parsed.
	ErrSourceUnreadable = errors.New("source file unreadable")
)
