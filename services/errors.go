package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a delete would orphan dependent rows.
	ErrConflict = errors.New("conflict")
)

// ValidationError lists the request fields that failed validation.
type ValidationError struct {
	FieldErrors map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.FieldErrors))
	for k := range e.FieldErrors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.FieldErrors[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{FieldErrors: map[string]string{field: msg}}
}

// FieldPermissionError is returned when an actor tries to set fields their
// role may not change. Nothing is applied.
type FieldPermissionError struct {
	Fields []string
}

func (e *FieldPermissionError) Error() string {
	return "not allowed to update: " + strings.Join(e.Fields, ", ")
}
