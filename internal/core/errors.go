package core

// errors.go defines the import error taxonomy.
//
//   - Format errors (EmptyFileError, MissingColumnsError) stop the import
//     before any row is processed.
//   - ValidationErrors are collected per row. Any of them, from the validator
//     or the duplicate filter, fails the whole import closed as an AbortedError.
//   - Submission errors stay local to one record and only show up in the
//     summary's failed outcomes.

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrCollegeNotFound is returned when the target college does not exist.
	ErrCollegeNotFound = errors.New("college not found")

	// ErrIdentifierTaken is returned by the store when a student with the same
	// identifier already exists in the college.
	ErrIdentifierTaken = errors.New("identifier already exists")

	// ErrImportNotFound is returned for unknown or expired import IDs.
	ErrImportNotFound = errors.New("import not found")

	// ErrFileTooLarge is returned when an upload exceeds the configured size.
	ErrFileTooLarge = errors.New("file too large")
)

// MsgCancelled is the failure reason for records never submitted because the
// import was cancelled.
const MsgCancelled = "importación cancelada"

// DefaultErrorPreview is how many row errors an AbortedError lists by default.
const DefaultErrorPreview = 5

// EmptyFileError reports a file without a header and at least one data row.
type EmptyFileError struct {
	Lines int // non-empty lines found
}

func (e *EmptyFileError) Error() string {
	return "empty file: el archivo debe tener un encabezado y al menos una fila de datos"
}

// MissingColumnsError reports required columns absent from the header.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: faltan columnas obligatorias: %s", strings.Join(e.Missing, ", "))
}

// IsFormatError reports whether err is a fatal file format error.
func IsFormatError(err error) bool {
	var empty *EmptyFileError
	var missing *MissingColumnsError
	return errors.As(err, &empty) || errors.As(err, &missing)
}

// ValidationError is a problem with one line of the file.
type ValidationError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("línea %d: %s", e.Line, e.Message)
}

// AbortedError is returned when any row failed validation or deduplication.
// Nothing was submitted.
type AbortedError struct {
	Errors []ValidationError
}

// Preview returns at most n errors and how many were left out.
func (e *AbortedError) Preview(n int) ([]ValidationError, int) {
	if n <= 0 || n >= len(e.Errors) {
		return e.Errors, 0
	}
	return e.Errors[:n], len(e.Errors) - n
}

func (e *AbortedError) Error() string {
	shown, rest := e.Preview(DefaultErrorPreview)

	var b strings.Builder
	fmt.Fprintf(&b, "importación rechazada: %d errores encontrados", len(e.Errors))
	for _, ve := range shown {
		b.WriteString("\n  - ")
		b.WriteString(ve.Error())
	}
	if rest > 0 {
		fmt.Fprintf(&b, "\n  ... y %d errores más", rest)
	}
	return b.String()
}

// mergeErrors combines row errors from several stages, ordered by line.
func mergeErrors(lists ...[]ValidationError) []ValidationError {
	var all []ValidationError
	for _, l := range lists {
		all = append(all, l...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Line < all[j].Line })
	return all
}

// submissionMessage turns a store error into the reason shown for a record.
func submissionMessage(err error) string {
	switch {
	case errors.Is(err, ErrIdentifierTaken):
		return MsgIdentifierExists
	case errors.Is(err, ErrCollegeNotFound):
		return "el colegio no existe"
	case errors.Is(err, context.Canceled):
		return MsgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return "tiempo de espera agotado"
	}
	if IsUserFacing(err) {
		return MapError(err).Message
	}
	return err.Error()
}
