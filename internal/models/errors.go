package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors of the codec taxonomy. Every error returned by a codec wraps exactly one of them.
var (
	ErrMalformedValue          = errors.New("malformed value")
	ErrHeterogeneousCollection = errors.New("heterogeneous collection")
	ErrExpectedEntityFoundSet  = errors.New("expected entity, found entity set")
	ErrUnresolvedReference     = errors.New("unresolved reference")
	ErrUnsupportedGeometry     = errors.New("unsupported geometry")
	ErrIO                      = errors.New("i/o failure")
	ErrMalformedPayload        = errors.New("malformed payload")
	ErrMaxDepth                = errors.New("maximum nesting depth exceeded")
	ErrUnsupportedVersion      = errors.New("unsupported protocol version")
)

// Stage names the codec layer an error surfaced from
type Stage string

// Codec stages
const (
	StageValue      Stage = "value"
	StageGeospatial Stage = "geospatial"
	StageProperty   Stage = "property"
	StageLink       Stage = "link"
	StageEntity     Stage = "entity"
	StageEntitySet  Stage = "entityset"
	StageDelta      Stage = "delta"
	StageODataError Stage = "error"
	StageLinks      Stage = "links"
	StageContextURL Stage = "context-url"
)

// MalformedValueError reports a literal that does not parse under its type
type MalformedValueError struct {
	Text string
	Type string
	Err  error
}

func (e *MalformedValueError) Error() string {
	msg := fmt.Sprintf("malformed value %q for type %s", e.Text, e.Type)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrMalformedValue) hold
func (e *MalformedValueError) Is(target error) bool {
	return target == ErrMalformedValue
}

func (e *MalformedValueError) Unwrap() error {
	return e.Err
}

// NewMalformedValue creates a MalformedValueError
func NewMalformedValue(text, typeName string, err error) error {
	return &MalformedValueError{Text: text, Type: typeName, Err: err}
}

// StageError records which codec stage and payload fragment failed
type StageError struct {
	Stage    Stage
	Fragment string
	Err      error
}

func (e *StageError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Stage, e.Fragment, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// WrapStage annotates err with a stage and fragment; nil stays nil.
// An error already carrying the same stage and fragment is returned as is.
func WrapStage(stage Stage, fragment string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) && se.Stage == stage && se.Fragment == fragment {
		return err
	}
	return &StageError{Stage: stage, Fragment: fragment, Err: err}
}

// StagePath returns the chain of stages from outermost to innermost, e.g. "entityset/entity/property"
func StagePath(err error) string {
	var parts []string
	for err != nil {
		var se *StageError
		if !errors.As(err, &se) {
			break
		}
		parts = append(parts, string(se.Stage))
		err = se.Err
	}
	return strings.Join(parts, "/")
}

// Malformed wraps ErrMalformedPayload with a formatted detail
func Malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}

// IOFailure wraps an underlying stream error with ErrIO
func IOFailure(err error) error {
	if err == nil || errors.Is(err, ErrIO) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrIO, err)
}
