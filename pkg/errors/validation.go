package errors

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// MaxTaxonLabelLength bounds the length of a taxon label.
const MaxTaxonLabelLength = 256

// ValidateMaxTrees validates the MAXTREES capacity of a search.
func ValidateMaxTrees(n int) error {
	if n <= 0 {
		return New(ErrCodeInvalidConfig, "max trees must be positive, got %d", n)
	}
	return nil
}

// ValidateTaxonLabel validates a leaf label for use in a taxa set.
//
// The validation rules are intentionally conservative:
//   - No empty labels
//   - No control characters
//   - No Newick structural characters outside quotes ( ) , : ;
//   - Maximum length of 256 characters
func ValidateTaxonLabel(label string) error {
	if label == "" {
		return New(ErrCodeInvalidTree, "taxon label cannot be empty")
	}

	if len(label) > MaxTaxonLabelLength {
		return New(ErrCodeInvalidTree, "taxon label too long (max %d characters)", MaxTaxonLabelLength)
	}

	for _, r := range label {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidTree, "taxon label contains invalid control characters")
		}
	}

	if strings.ContainsAny(label, "(),:;") {
		return New(ErrCodeInvalidTree, "taxon label contains Newick delimiters: %q", label)
	}

	return nil
}

// ValidatePath validates an output path given on the command line or in a
// config file.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// ValidateRunID validates a stored run identifier (a UUID).
func ValidateRunID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "run id cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid run id %q", id)
	}
	return nil
}
