// Package validation checks user-supplied names and inputs before they reach
// a coverage data file: source paths and context labels used as keys, and
// the size of report files read into memory.
package validation

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Limits on keys and inputs (CWE-400).
const (
	// MaxReportSize is the largest coverage report read into memory (256 MB).
	MaxReportSize = 256 << 20
	// MaxPathLength is the maximum length of a stored source path.
	MaxPathLength = 4096
	// MaxContextLength is the maximum length of a measurement context label.
	MaxContextLength = 1024
	// MaxLineNumber is the largest line number accepted from a report or
	// line spec. Its numbits is 2 MB.
	MaxLineNumber = 1 << 24
)

// Common validation errors.
var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrContextTooLong   = errors.New("context too long")
	ErrInvalidCharacter = errors.New("invalid character")
	ErrInvalidEncoding  = errors.New("invalid UTF-8")
	ErrFileTooLarge     = errors.New("file too large")
	ErrLineTooLarge     = errors.New("line number too large")
)

// ValidateSourcePath checks a source file path used as a data file key.
// The path is not resolved or cleaned; reports name files relative to
// their own roots.
func ValidateSourcePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	return checkText(path)
}

// ValidateContext checks a measurement context label. The empty label is
// allowed and stands for "no context".
func ValidateContext(name string) error {
	if len(name) > MaxContextLength {
		return ErrContextTooLong
	}
	return checkText(name)
}

// CheckFileSize returns ErrFileTooLarge if the file at path exceeds limit
// bytes.
func CheckFileSize(path string, limit int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > limit {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, path, info.Size(), limit)
	}
	return nil
}

// ValidateLineNumber returns ErrLineTooLarge if n exceeds MaxLineNumber.
func ValidateLineNumber(n int) error {
	if n > MaxLineNumber {
		return fmt.Errorf("%w: %d, limit %d", ErrLineTooLarge, n, MaxLineNumber)
	}
	return nil
}

func checkText(s string) error {
	if !utf8.ValidString(s) {
		return ErrInvalidEncoding
	}
	// Check for null bytes
	if strings.Contains(s, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}
