package text

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors surfaced to the CLI as terminal status lines.
var (
	ErrEmptyText     = errors.New("no text to read")
	ErrTextTooLong   = errors.New("text exceeds maximum length")
	ErrNoChunks      = errors.New("no speakable chunks produced")
	ErrTooManyChunks = errors.New("too many chunks")
)

// Validator bounds the size of accepted input.
type Validator struct {
	maxLength int
	maxChunks int
}

// NewValidator returns a Validator with the given limits.
func NewValidator(maxLength, maxChunks int) *Validator {
	return &Validator{maxLength: maxLength, maxChunks: maxChunks}
}

// ValidateText rejects empty and oversized input.
func (v *Validator) ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if len(text) > v.maxLength {
		return fmt.Errorf("%w: %d characters, maximum is %d", ErrTextTooLong, len(text), v.maxLength)
	}
	return nil
}

// ValidateChunks rejects empty and oversized chunk batches.
func (v *Validator) ValidateChunks(chunks []string) error {
	if len(chunks) == 0 {
		return ErrNoChunks
	}
	if len(chunks) > v.maxChunks {
		return fmt.Errorf("%w: %d chunks, maximum is %d", ErrTooManyChunks, len(chunks), v.maxChunks)
	}
	return nil
}
