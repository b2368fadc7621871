package catalog

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrContentNotFound indicates a content record was not found
	ErrContentNotFound = errors.New("content not found")

	// ErrMetadataTypeNotFound indicates a metadata type was not found
	ErrMetadataTypeNotFound = errors.New("metadata type not found")

	// ErrMetadataNotFound indicates a metadata tag was not found
	ErrMetadataNotFound = errors.New("metadata not found")

	// ErrUserNotFound indicates a user was not found
	ErrUserNotFound = errors.New("user not found")

	// ErrProfileNotFound indicates a profile was not found
	ErrProfileNotFound = errors.New("profile not found")

	// ErrObjectNotFound indicates a stored payload was not found
	ErrObjectNotFound = errors.New("object not found")

	// ErrNoFile indicates content has no attached payload
	ErrNoFile = errors.New("content has no file")

	// ErrStorageBackendNotFound indicates a storage backend was not configured
	ErrStorageBackendNotFound = errors.New("storage backend not found")

	ErrDuplicateFileName         = errors.New("content with this file name already exists")
	ErrDuplicateMetadataTypeName = errors.New("metadata type with this name already exists")
	ErrDuplicateUsername         = errors.New("user with this username already exists")
	ErrDuplicateProfile          = errors.New("profile for this user already exists")

	ErrTitleRequired    = errors.New("title is required")
	ErrNameRequired     = errors.New("name is required")
	ErrUsernameRequired = errors.New("username is required")
	ErrInvalidStatus    = errors.New("invalid workflow status")
	ErrInvalidFileName  = errors.New("invalid file name")

	// ErrUploadFailed indicates the payload could not be read or stored
	ErrUploadFailed = errors.New("upload failed")
)

// ContentError represents an error related to content operations
type ContentError struct {
	ContentID uuid.UUID
	Op        string
	Err       error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content operation %s failed for content %s: %v", e.Op, e.ContentID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ValidationError reports a rejected field value. Message is safe to show to
// API clients.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

// IsValidation reports whether err should be reported to clients as invalid
// input.
func IsValidation(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	for _, target := range []error{
		ErrDuplicateFileName, ErrDuplicateMetadataTypeName, ErrDuplicateUsername,
		ErrTitleRequired, ErrNameRequired, ErrUsernameRequired,
		ErrInvalidStatus, ErrInvalidFileName,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err names a missing record.
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrContentNotFound, ErrMetadataTypeNotFound, ErrMetadataNotFound,
		ErrUserNotFound, ErrProfileNotFound, ErrObjectNotFound, ErrNoFile,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// FieldErrors renders err as a field -> messages map for API responses.
func FieldErrors(err error) map[string][]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		field := ve.Field
		if field == "" {
			field = "non_field_errors"
		}
		return map[string][]string{field: {ve.Message}}
	}
	field := "non_field_errors"
	switch {
	case errors.Is(err, ErrDuplicateFileName), errors.Is(err, ErrInvalidFileName):
		field = "file_name"
	case errors.Is(err, ErrDuplicateMetadataTypeName), errors.Is(err, ErrNameRequired):
		field = "name"
	case errors.Is(err, ErrDuplicateUsername), errors.Is(err, ErrUsernameRequired):
		field = "username"
	case errors.Is(err, ErrTitleRequired):
		field = "title"
	case errors.Is(err, ErrInvalidStatus):
		field = "status"
	case errors.Is(err, ErrMetadataNotFound):
		field = "metadata"
	}
	return map[string][]string{field: {rootMessage(err)}}
}

// rootMessage returns the message of the innermost sentinel.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// DuplicateFileNameError is the validation error for a taken file name.
func DuplicateFileNameError() *ValidationError {
	return &ValidationError{
		Field:   "file_name",
		Message: "content with this file name already exists.",
		Err:     ErrDuplicateFileName,
	}
}

// DuplicateMetadataTypeNameError is the validation error for a taken type name.
func DuplicateMetadataTypeNameError() *ValidationError {
	return &ValidationError{
		Field:   "name",
		Message: "metadata type with this name already exists.",
		Err:     ErrDuplicateMetadataTypeName,
	}
}

// DuplicateUsernameError is the validation error for a taken username.
func DuplicateUsernameError() *ValidationError {
	return &ValidationError{
		Field:   "username",
		Message: "a user with that username already exists.",
		Err:     ErrDuplicateUsername,
	}
}
