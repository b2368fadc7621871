package catalog

import (
	"io"

	"github.com/google/uuid"
)

// Upload is a file attached to a create or update call. Reader is consumed
// once.
type Upload struct {
	FileName string
	MimeType string
	Reader   io.Reader
}

// CreateContentRequest contains parameters for creating new content.
// Nil dates and flags take their defaults.
type CreateContentRequest struct {
	Title           string
	Description     string
	CopyrightNotes  string
	RightsStatement string
	AdditionalNotes string
	OriginalSource  string

	MetadataIDs []uuid.UUID
	CreatedBy   *uuid.UUID

	ModifiedBy string
	ModifiedOn *Date
	ReviewedBy string
	ReviewedOn *Date
	Status     WorkflowStatus

	CopyrightApproved *bool
	CopyrightBy       string
	CopyrightOn       *Date
	CopyrightSite     string

	PublishedDate *Date
	Active        *bool

	File *Upload
}

// UpdateContentRequest is a partial update; nil fields are left unchanged.
// MetadataIDs set to a non-nil empty slice clears every tag.
// ClearPublishedDate removes the published date.
type UpdateContentRequest struct {
	ID uuid.UUID

	Title           *string
	Description     *string
	CopyrightNotes  *string
	RightsStatement *string
	AdditionalNotes *string
	OriginalSource  *string

	MetadataIDs *[]uuid.UUID

	ModifiedBy *string
	ModifiedOn *Date
	ReviewedBy *string
	ReviewedOn *Date
	Status     *WorkflowStatus

	CopyrightApproved *bool
	CopyrightBy       *string
	CopyrightOn       *Date
	CopyrightSite     *string

	PublishedDate      *Date
	ClearPublishedDate bool
	Active             *bool

	File *Upload
}

// RegisterUserRequest contains parameters for registering a user
type RegisterUserRequest struct {
	Username string
	Email    string
}

// UpdateUserRequest contains parameters for updating a user
type UpdateUserRequest struct {
	ID       uuid.UUID
	Username *string
	Email    *string
}

// CreateMetadataRequest contains parameters for creating a tag
type CreateMetadataRequest struct {
	TypeID uuid.UUID
	Name   string
}

// ContentFile is an opened stored payload.
type ContentFile struct {
	Reader   io.ReadCloser
	FileName string
	MimeType string
	Size     int64
}
