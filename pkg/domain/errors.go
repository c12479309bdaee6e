package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing required input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an identifier that does not resolve to any stored
// document.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", singular(e.Kind), e.ID)
}

// DuplicateError reports a creation attempt with an identifier that already
// exists.
type DuplicateError struct {
	Kind Kind
	ID   string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("%s %q already exists", singular(e.Kind), e.ID)
}

// InsufficientQuantityError reports a usage request that would drive a
// sample's quantity negative. The sample is left unchanged.
type InsufficientQuantityError struct {
	SampleID  string
	Requested float64
	Available float64
	Unit      string
}

func (e InsufficientQuantityError) Error() string {
	return fmt.Sprintf("sample %q: requested %g %s but only %g %s available",
		e.SampleID, e.Requested, e.Unit, e.Available, e.Unit)
}

func singular(k Kind) string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindSample:
		return "sample"
	case KindExperiment:
		return "experiment"
	case KindTemplate:
		return "template"
	default:
		return string(k)
	}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// IsDuplicate reports whether err is a DuplicateError.
func IsDuplicate(err error) bool {
	var target DuplicateError
	return errors.As(err, &target)
}

// IsInsufficientQuantity reports whether err is an InsufficientQuantityError.
func IsInsufficientQuantity(err error) bool {
	var target InsufficientQuantityError
	return errors.As(err, &target)
}
