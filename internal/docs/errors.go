package docs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the entity id does not resolve. Existence is checked
	// before permissions, so a missing row is reported as missing even to
	// actors who could not have touched it.
	ErrNotFound = errors.New("docs: not found")
	// ErrForbidden means the actor's role or ownership does not cover the
	// operation. The client-facing message never says why.
	ErrForbidden = errors.New("docs: forbidden")
	// ErrSelfDelete means an actor tried to delete their own account. Unlike
	// other permission failures this one is named to the user.
	ErrSelfDelete = errors.New("docs: cannot delete yourself")
	// ErrInvalidInput covers malformed or missing request data.
	ErrInvalidInput = errors.New("docs: invalid input")
	// ErrUnsupportedFile means the MIME type is outside the allow-list.
	ErrUnsupportedFile = errors.New("docs: unsupported file type")
	// ErrInvalidCredentials covers a failed email/password check.
	ErrInvalidCredentials = errors.New("docs: invalid credentials")
	// ErrConflict is the class of uniqueness violations; the concrete value
	// is a *ConflictError naming the field.
	ErrConflict = errors.New("docs: conflict")
)

// ConflictError is a uniqueness violation on a named field (email, phone,
// id_number). errors.Is(err, ErrConflict) matches it.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("docs: duplicate %s", e.Field)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
