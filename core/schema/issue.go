package schema

import "fmt"

// Issue codes produced by validation.
const (
	CodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	CodeUnexpectedField      = "UNEXPECTED_FIELD"
	CodeTypeMismatch         = "TYPE_MISMATCH"
	CodeNullValue            = "NULL_VALUE"
	CodeOptionViolation      = "OPTION_VIOLATION"
	CodeRangeViolation       = "RANGE_VIOLATION"
	CodeDateUnparseable      = "DATE_UNPARSEABLE"
	CodeRichTextInvalid      = "RICHTEXT_INVALID"
	CodeValidatorFailed      = "VALIDATOR_FAILED"
	CodeDanglingReference    = "DANGLING_REFERENCE"
	CodeReferenceCheckFailed = "REFERENCE_CHECK_FAILED"
	CodeUniquenessViolation  = "UNIQUENESS_VIOLATION"
)

// Issue represents a single field-level validation problem.
type Issue struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Path     string `json:"path,omitempty"`
	Severity string `json:"severity,omitempty"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return fmt.Sprintf("%s: %s", i.Code, i.Message)
	}
	return fmt.Sprintf("%s at %s: %s", i.Code, i.Path, i.Message)
}

// ValidationResult is the outcome of validating a document against a schema.
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}
