package services

import (
	"errors"
	"fmt"

	"shuttle-backend/internal/repository"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyReserved     = errors.New("already reserved")
	ErrAlreadyAssigned     = fmt.Errorf("%w: already assigned", ErrConstraintViolation)
	ErrExternalService     = errors.New("external service error")
	ErrLockTimeout         = errors.New("lock timeout")
)

// DomainError names the violated invariant and, for conflicts, the record
// that already holds it.
type DomainError struct {
	Kind       error  `json:"-"`
	Invariant  string `json:"invariant,omitempty"`
	ConflictID string `json:"conflictId,omitempty"`
	Message    string `json:"message"`
}

func (e *DomainError) Error() string {
	if e.ConflictID != "" {
		return fmt.Sprintf("%s: %s (conflicts with %s)", e.Kind, e.Message, e.ConflictID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Kind }

func validationError(format string, args ...interface{}) error {
	return &DomainError{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(entity, id string) error {
	return &DomainError{Kind: ErrNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// ExternalServiceError reports a failure of the routing or push provider.
func ExternalServiceError(provider string, err error) error {
	return &DomainError{Kind: ErrExternalService, Message: fmt.Sprintf("%s: %v", provider, err)}
}

func conflictError(kind error, invariant, conflictID, message string) error {
	return &DomainError{Kind: kind, Invariant: invariant, ConflictID: conflictID, Message: message}
}

// storeError lifts repository sentinels into the domain taxonomy.
func storeError(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFoundError(entity, id)
	case errors.Is(err, repository.ErrDuplicate):
		return &DomainError{Kind: ErrConstraintViolation, Message: fmt.Sprintf("%s %s violates a unique index", entity, id)}
	}
	return err
}

// AsDomainError unwraps err into a *DomainError when it carries one.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
