package catalog

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Upload stores the payload under params.ObjectKey
	Upload(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download opens a stored payload
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete deletes a stored payload
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// DownloadURLProvider is implemented by blob stores that can hand out
// direct download links, such as presigned S3 URLs.
type DownloadURLProvider interface {
	GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error)
}

// Repository defines the interface for catalog persistence.
//
// WithTx runs fn as one unit of work. The Repository passed to fn sees the
// transaction's writes; if fn returns an error none of them are kept.
// Uniqueness of content file names, metadata type names, usernames and
// per-user profiles is enforced at commit time by every implementation.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	// Content operations
	CreateContent(ctx context.Context, content *Content) error
	GetContent(ctx context.Context, id uuid.UUID) (*Content, error)
	GetContentByFileName(ctx context.Context, fileName string) (*Content, error)
	UpdateContent(ctx context.Context, content *Content) error
	ListContent(ctx context.Context, filters ContentFilters) ([]*Content, error)
	CountContent(ctx context.Context, filters ContentFilters) (int64, error)

	// Metadata type operations
	CreateMetadataType(ctx context.Context, mt *MetadataType) error
	GetMetadataType(ctx context.Context, id uuid.UUID) (*MetadataType, error)
	ListMetadataTypes(ctx context.Context) ([]*MetadataType, error)
	UpdateMetadataType(ctx context.Context, mt *MetadataType) error
	// DeleteMetadataType removes the type, its tags and their content links
	DeleteMetadataType(ctx context.Context, id uuid.UUID) error

	// Metadata operations
	CreateMetadata(ctx context.Context, m *Metadata) error
	GetMetadata(ctx context.Context, id uuid.UUID) (*Metadata, error)
	ListMetadata(ctx context.Context, typeID *uuid.UUID) ([]*Metadata, error)
	// DeleteMetadata removes the tag and its content links
	DeleteMetadata(ctx context.Context, id uuid.UUID) error

	// User operations
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	// DeleteUser removes the user and its profile and clears created_by on
	// the user's content
	DeleteUser(ctx context.Context, id uuid.UUID) error

	// Profile operations
	CreateProfile(ctx context.Context, profile *Profile) error
	GetProfileByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
}

// EventSink defines the interface for event handling. Events fire after the
// unit of work commits.
type EventSink interface {
	// ContentCreated is fired when content is created
	ContentCreated(ctx context.Context, content *Content) error

	// ContentUpdated is fired when content is updated
	ContentUpdated(ctx context.Context, content *Content) error

	// ContentRetired is fired when content is deactivated
	ContentRetired(ctx context.Context, content *Content) error

	// UserRegistered is fired when a user and its profile are created
	UserRegistered(ctx context.Context, user *User, profile *Profile) error
}

// FileNameSanitizer turns a proposed upload name into a storable one.
type FileNameSanitizer func(name string) (string, error)

// FileNameValidator checks a sanitized file name before commit. exclude is
// the content being updated, if any.
type FileNameValidator func(ctx context.Context, repo Repository, fileName string, exclude uuid.UUID) error

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
	Size      int64
}
