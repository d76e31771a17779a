package lifecycle

import (
	"errors"
	"fmt"

	"github.com/dharsanguruparan/VaultSign/internal/model"
)

var (
	// ErrValidation marks missing or malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown document id.
	ErrNotFound = model.ErrNotFound
	// ErrIllegalTransition marks a share or sign the document's status forbids.
	ErrIllegalTransition = model.ErrIllegalTransition
	// ErrAlreadySigned is the illegal transition of signing twice.
	ErrAlreadySigned = fmt.Errorf("%w: document already signed", model.ErrIllegalTransition)
	// ErrNotSigned is returned by the signed-document view for unsigned rows.
	ErrNotSigned = errors.New("document not signed")
)

// DependencyError wraps a failing store, blob or email call.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *DependencyError) Unwrap() error { return e.Err }

func dependency(op string, err error) error {
	return &DependencyError{Op: op, Err: err}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
