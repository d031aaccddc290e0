package vpdiff

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInputSelection is returned when the expected or actual path was not provided.
	ErrInputSelection = errors.New("exactly one expected VP and one actual VP or image must be selected")

	// ErrPayloadNotFound signals that the verification anchors are missing from the document.
	ErrPayloadNotFound = errors.New("verification payload not found")

	// ErrUnsupportedFile is returned for actual files which are neither VP documents nor raster images.
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// ExtractionError reports that no image payload could be extracted from a file.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract image from %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// DecodeError reports malformed image bytes.
type DecodeError struct {
	Label       string
	ContentType string
	Err         error
}

func (e *DecodeError) Error() string {
	if e.ContentType != "" {
		return fmt.Sprintf("could not decode the %s image (%s): %v", e.Label, e.ContentType, e.Err)
	}
	return fmt.Sprintf("could not decode the %s image: %v", e.Label, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ExternalProcessError reports a missing or failing frame merge tool.
// Output holds the diagnostic text written by the tool.
type ExternalProcessError struct {
	Command string
	Output  string
	Err     error
}

func (e *ExternalProcessError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s failed: %v\nOutput: %s", e.Command, e.Err, e.Output)
	}
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

func (e *ExternalProcessError) Unwrap() error { return e.Err }
