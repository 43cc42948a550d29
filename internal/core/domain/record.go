package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidKind          = errors.New("invalid kind")
	ErrInvalidData          = errors.New("invalid data")
	ErrUnknownKind          = errors.New("unknown kind")
	ErrNotFound             = errors.New("not found")
	ErrSecondaryUnavailable = errors.New("secondary store unavailable")
	ErrDuplicateKey         = errors.New("duplicate key")
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

// Operation is the kind of primary mutation being mirrored.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// Record is a snapshot of one business entity taken after a successful
// primary mutation. Data is the full field set encoded as a JSON object,
// never a diff. ID is reused verbatim in the secondary store.
type Record struct {
	ID   string
	Data json.RawMessage
}

func (r Record) Validate() error {
	if err := ValidateID(r.ID); err != nil {
		return err
	}
	if len(r.Data) == 0 || !json.Valid(r.Data) {
		return fmt.Errorf("%w: data must be a valid json object", ErrInvalidData)
	}
	return nil
}

func ValidateID(id string) error {
	if id == "" || !idPattern.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}

// ErrShapeViolation is returned when record data does not conform to the
// JSON schema of its shape.
type ErrShapeViolation struct {
	Type   string
	Errors []string
}

func (e *ErrShapeViolation) Error() string {
	return fmt.Sprintf("%s: shape validation failed: %s", e.Type, strings.Join(e.Errors, "; "))
}
