package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the main interface for the content catalog
type Service interface {
	// Content operations
	CreateContent(ctx context.Context, req CreateContentRequest) (*Content, error)
	GetContent(ctx context.Context, id uuid.UUID) (*Content, error)
	UpdateContent(ctx context.Context, req UpdateContentRequest) (*Content, error)
	// RetireContent marks content inactive; content is never hard-deleted
	RetireContent(ctx context.Context, id uuid.UUID) (*Content, error)
	ListContent(ctx context.Context, filters ContentFilters) ([]*Content, error)
	CountContent(ctx context.Context, filters ContentFilters) (int64, error)
	DescribeMetadata(ctx context.Context, content *Content) ([]MetadataInfo, error)

	// Content file operations
	OpenContentFile(ctx context.Context, id uuid.UUID) (*ContentFile, error)
	// GetContentFileURL returns "" when the backend cannot sign direct links
	GetContentFileURL(ctx context.Context, id uuid.UUID) (string, error)

	// Metadata type operations
	CreateMetadataType(ctx context.Context, name string) (*MetadataType, error)
	GetMetadataType(ctx context.Context, id uuid.UUID) (*MetadataType, error)
	ListMetadataTypes(ctx context.Context) ([]*MetadataType, error)
	RenameMetadataType(ctx context.Context, id uuid.UUID, name string) (*MetadataType, error)
	DeleteMetadataType(ctx context.Context, id uuid.UUID) error

	// Metadata operations
	CreateMetadata(ctx context.Context, req CreateMetadataRequest) (*Metadata, error)
	GetMetadata(ctx context.Context, id uuid.UUID) (*Metadata, error)
	ListMetadata(ctx context.Context, typeID *uuid.UUID) ([]*Metadata, error)
	DeleteMetadata(ctx context.Context, id uuid.UUID) error

	// User operations
	RegisterUser(ctx context.Context, req RegisterUserRequest) (*User, *Profile, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, req UpdateUserRequest) (*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)

	// Storage backend operations
	GetBackend(name string) (BlobStore, error)
}
