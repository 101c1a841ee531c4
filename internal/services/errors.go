package services

import (
	"errors"
	"fmt"

	"github.com/Lllllllleong/labelcrop/internal/models"
)

// FailureKind classifies why a file produced no output.
type FailureKind string

const (
	KindInvalidInputType FailureKind = "InvalidInputType"
	KindRead             FailureKind = "ReadFailure"
	KindDecode           FailureKind = "DecodeFailure"
	KindTransform        FailureKind = "TransformFailure"
	KindEncode           FailureKind = "EncodeFailure"
	KindEmit             FailureKind = "EmitFailure"
)

var (
	// ErrNoValidFiles is returned when nothing submitted to a batch is a PDF.
	ErrNoValidFiles = errors.New("no valid files")

	ErrInvalidInputType = errors.New("not a PDF document")

	// ErrOutputExists is returned by sinks that refuse to overwrite. The file
	// is reported as skipped, not failed.
	ErrOutputExists = errors.New("output already exists")

	ErrDuplicateOutput = errors.New("another file in the batch has the same output name")
)

// FileError is a failure confined to a single file of a batch.
type FileError struct {
	Name string
	Kind FailureKind
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Name, e.Kind, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Failure converts e into its reportable form.
func (e *FileError) Failure() models.FileFailure {
	return models.FileFailure{Name: e.Name, Kind: string(e.Kind), Error: e.Err.Error()}
}
