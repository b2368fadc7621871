package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/content-catalog/pkg/catalog/objectkey"
)

// service implements the Service interface
type service struct {
	repository       Repository
	blobStores       map[string]BlobStore
	defaultBackend   string
	eventSink        EventSink
	logger           *slog.Logger
	keyGenerator     objectkey.Generator
	validateFileName FileNameValidator
	sanitizeFileName FileNameSanitizer
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore adds a blob storage backend. The first backend added becomes
// the default unless WithDefaultBackend says otherwise.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		if s.blobStores == nil {
			s.blobStores = make(map[string]BlobStore)
		}
		s.blobStores[name] = store
		if s.defaultBackend == "" {
			s.defaultBackend = name
		}
	}
}

// WithDefaultBackend names the backend new payloads are written to
func WithDefaultBackend(name string) Option {
	return func(s *service) {
		s.defaultBackend = name
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithKeyGenerator sets the object key generation strategy
func WithKeyGenerator(generator objectkey.Generator) Option {
	return func(s *service) {
		s.keyGenerator = generator
	}
}

// WithFileNameValidator replaces the default UniqueFileName validator
func WithFileNameValidator(v FileNameValidator) Option {
	return func(s *service) {
		s.validateFileName = v
	}
}

// WithFileNameSanitizer replaces the default SanitizeFileName
func WithFileNameSanitizer(fn FileNameSanitizer) Option {
	return func(s *service) {
		s.sanitizeFileName = fn
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores: make(map[string]BlobStore),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.defaultBackend != "" {
		if _, ok := s.blobStores[s.defaultBackend]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrStorageBackendNotFound, s.defaultBackend)
		}
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.keyGenerator == nil {
		s.keyGenerator = objectkey.NewRecommendedGenerator()
	}
	if s.validateFileName == nil {
		s.validateFileName = UniqueFileName
	}
	if s.sanitizeFileName == nil {
		s.sanitizeFileName = SanitizeFileName
	}

	return s, nil
}

// storedPayload remembers where a payload was written so a failed commit
// can remove it.
type storedPayload struct {
	backend string
	key     string
}

// Content operations

func (s *service) CreateContent(ctx context.Context, req CreateContentRequest) (*Content, error) {
	content := &Content{
		ID:                uuid.New(),
		Title:             strings.TrimSpace(req.Title),
		Description:       req.Description,
		CopyrightNotes:    req.CopyrightNotes,
		RightsStatement:   req.RightsStatement,
		AdditionalNotes:   req.AdditionalNotes,
		OriginalSource:    req.OriginalSource,
		MetadataIDs:       dedupeIDs(req.MetadataIDs),
		CreatedBy:         req.CreatedBy,
		CreatedOn:         Today(),
		ModifiedBy:        req.ModifiedBy,
		ModifiedOn:        dateOrToday(req.ModifiedOn),
		ReviewedBy:        req.ReviewedBy,
		ReviewedOn:        dateOrToday(req.ReviewedOn),
		CopyrightApproved: boolOr(req.CopyrightApproved, true),
		CopyrightBy:       req.CopyrightBy,
		CopyrightOn:       dateOrToday(req.CopyrightOn),
		CopyrightSite:     req.CopyrightSite,
		PublishedDate:     req.PublishedDate,
		Active:            boolOr(req.Active, true),
	}

	if content.Title == "" {
		return nil, newValidationError("title", ErrTitleRequired)
	}
	status, err := ParseWorkflowStatus(string(req.Status))
	if err != nil {
		return nil, err
	}
	content.Status = status

	upload, err := NormalizeUpload(req.File, s.sanitizeFileName)
	if err != nil {
		return nil, &ContentError{ContentID: content.ID, Op: "create", Err: err}
	}

	var stored *storedPayload
	if upload != nil {
		upload.Apply(content)
		stored, err = s.storePayload(ctx, content, upload)
		if err != nil {
			return nil, &ContentError{ContentID: content.ID, Op: "create", Err: err}
		}
	}

	err = s.repository.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if content.CreatedBy != nil {
			if _, err := tx.GetUser(ctx, *content.CreatedBy); err != nil {
				return userReferenceError(err)
			}
		}
		if err := checkMetadata(ctx, tx, content.MetadataIDs); err != nil {
			return err
		}
		if upload != nil {
			if err := s.validateFileName(ctx, tx, content.FileName, content.ID); err != nil {
				return err
			}
		}
		return tx.CreateContent(ctx, content)
	})
	if err != nil {
		s.discardPayload(ctx, stored)
		return nil, &ContentError{ContentID: content.ID, Op: "create", Err: err}
	}

	created := s.reload(ctx, content)
	if err := s.eventSink.ContentCreated(ctx, created); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", "content_created", "content_id", created.ID, "err", err)
	}

	return created, nil
}

func (s *service) GetContent(ctx context.Context, id uuid.UUID) (*Content, error) {
	return s.repository.GetContent(ctx, id)
}

func (s *service) UpdateContent(ctx context.Context, req UpdateContentRequest) (*Content, error) {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, newValidationError("title", ErrTitleRequired)
	}
	if req.Status != nil {
		status, err := ParseWorkflowStatus(string(*req.Status))
		if err != nil {
			return nil, err
		}
		req.Status = &status
	}

	upload, err := NormalizeUpload(req.File, s.sanitizeFileName)
	if err != nil {
		return nil, &ContentError{ContentID: req.ID, Op: "update", Err: err}
	}

	var stored *storedPayload
	if upload != nil {
		probe := &Content{ID: req.ID}
		upload.Apply(probe)
		stored, err = s.storePayload(ctx, probe, upload)
		if err != nil {
			return nil, &ContentError{ContentID: req.ID, Op: "update", Err: err}
		}
	}

	var (
		updated  *Content
		replaced *storedPayload
	)
	err = s.repository.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.GetContent(ctx, req.ID)
		if err != nil {
			return err
		}
		applyContentUpdate(current, req)
		if req.MetadataIDs != nil {
			if err := checkMetadata(ctx, tx, current.MetadataIDs); err != nil {
				return err
			}
		}
		if upload != nil {
			if current.HasFile() {
				replaced = &storedPayload{backend: current.StorageBackend, key: current.ContentFile}
			}
			upload.Apply(current)
			current.ContentFile = stored.key
			current.StorageBackend = stored.backend
			if err := s.validateFileName(ctx, tx, current.FileName, current.ID); err != nil {
				return err
			}
		}
		if err := tx.UpdateContent(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		s.discardPayload(ctx, stored)
		return nil, &ContentError{ContentID: req.ID, Op: "update", Err: err}
	}

	if replaced != nil && (stored == nil || *replaced != *stored) {
		s.discardPayload(ctx, replaced)
	}

	updated = s.reload(ctx, updated)
	if err := s.eventSink.ContentUpdated(ctx, updated); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", "content_updated", "content_id", updated.ID, "err", err)
	}

	return updated, nil
}

func (s *service) RetireContent(ctx context.Context, id uuid.UUID) (*Content, error) {
	var retired *Content
	err := s.repository.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.GetContent(ctx, id)
		if err != nil {
			return err
		}
		current.Active = false
		if err := tx.UpdateContent(ctx, current); err != nil {
			return err
		}
		retired = current
		return nil
	})
	if err != nil {
		return nil, &ContentError{ContentID: id, Op: "retire", Err: err}
	}

	if err := s.eventSink.ContentRetired(ctx, retired); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", "content_retired", "content_id", id, "err", err)
	}
	return retired, nil
}

func (s *service) ListContent(ctx context.Context, filters ContentFilters) ([]*Content, error) {
	return s.repository.ListContent(ctx, filters)
}

func (s *service) CountContent(ctx context.Context, filters ContentFilters) (int64, error) {
	return s.repository.CountContent(ctx, filters)
}

func (s *service) DescribeMetadata(ctx context.Context, content *Content) ([]MetadataInfo, error) {
	infos := make([]MetadataInfo, 0, len(content.MetadataIDs))
	for _, id := range content.MetadataIDs {
		m, err := s.repository.GetMetadata(ctx, id)
		if errors.Is(err, ErrMetadataNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, m.Info())
	}
	return infos, nil
}

// Content file operations

func (s *service) OpenContentFile(ctx context.Context, id uuid.UUID) (*ContentFile, error) {
	content, err := s.repository.GetContent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !content.HasFile() {
		return nil, &ContentError{ContentID: id, Op: "open_file", Err: ErrNoFile}
	}

	backend, err := s.GetBackend(content.StorageBackend)
	if err != nil {
		return nil, &ContentError{ContentID: id, Op: "open_file", Err: err}
	}

	reader, err := backend.Download(ctx, content.ContentFile)
	if err != nil {
		return nil, &StorageError{Backend: content.StorageBackend, Key: content.ContentFile, Op: "download", Err: err}
	}

	file := &ContentFile{
		Reader:   reader,
		FileName: content.FileName,
		MimeType: content.MimeType,
	}
	if content.FileSize != nil {
		file.Size = int64(*content.FileSize)
	}
	if meta, err := backend.GetObjectMeta(ctx, content.ContentFile); err == nil {
		file.Size = meta.Size
		if file.MimeType == "" {
			file.MimeType = meta.ContentType
		}
	}
	return file, nil
}

func (s *service) GetContentFileURL(ctx context.Context, id uuid.UUID) (string, error) {
	content, err := s.repository.GetContent(ctx, id)
	if err != nil {
		return "", err
	}
	if !content.HasFile() {
		return "", &ContentError{ContentID: id, Op: "file_url", Err: ErrNoFile}
	}

	backend, err := s.GetBackend(content.StorageBackend)
	if err != nil {
		return "", &ContentError{ContentID: id, Op: "file_url", Err: err}
	}
	provider, ok := backend.(DownloadURLProvider)
	if !ok {
		return "", nil
	}
	return provider.GetDownloadURL(ctx, content.ContentFile, content.FileName)
}

// Metadata type operations

func (s *service) CreateMetadataType(ctx context.Context, name string) (*MetadataType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newValidationError("name", ErrNameRequired)
	}
	mt := &MetadataType{ID: uuid.New(), Name: name}
	if err := s.repository.CreateMetadataType(ctx, mt); err != nil {
		return nil, err
	}
	return mt, nil
}

func (s *service) GetMetadataType(ctx context.Context, id uuid.UUID) (*MetadataType, error) {
	return s.repository.GetMetadataType(ctx, id)
}

func (s *service) ListMetadataTypes(ctx context.Context) ([]*MetadataType, error) {
	return s.repository.ListMetadataTypes(ctx)
}

func (s *service) RenameMetadataType(ctx context.Context, id uuid.UUID, name string) (*MetadataType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newValidationError("name", ErrNameRequired)
	}
	var renamed *MetadataType
	err := s.repository.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		mt, err := tx.GetMetadataType(ctx, id)
		if err != nil {
			return err
		}
		mt.Name = name
		if err := tx.UpdateMetadataType(ctx, mt); err != nil {
			return err
		}
		renamed = mt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

func (s *service) DeleteMetadataType(ctx context.Context, id uuid.UUID) error {
	return s.repository.DeleteMetadataType(ctx, id)
}

// Metadata operations

func (s *service) CreateMetadata(ctx context.Context, req CreateMetadataRequest) (*Metadata, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, newValidationError("name", ErrNameRequired)
	}

	m := &Metadata{ID: uuid.New(), Name: name, TypeID: req.TypeID}
	err := s.repository.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		mt, err := tx.GetMetadataType(ctx, req.TypeID)
		if errors.Is(err, ErrMetadataTypeNotFound) {
			return &ValidationError{
				Field:   "type",
				Message: fmt.Sprintf("invalid pk %q - object does not exist.", req.TypeID),
				Err:     err,
			}
		}
		if err != nil {
			return err
		}
		m.TypeName = mt.Name
		return tx.CreateMetadata(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *service) GetMetadata(ctx context.Context, id uuid.UUID) (*Metadata, error) {
	return s.repository.GetMetadata(ctx, id)
}

func (s *service) ListMetadata(ctx context.Context, typeID *uuid.UUID) ([]*Metadata, error) {
	return s.repository.ListMetadata(ctx, typeID)
}

func (s *service) DeleteMetadata(ctx context.Context, id uuid.UUID) error {
	return s.repository.DeleteMetadata(ctx, id)
}

// User operations

func (s *service) RegisterUser(ctx context.Context, req RegisterUserRequest) (*User, *Profile, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, nil, newValidationError("username", ErrUsernameRequired)
	}

	now := time.Now().UTC()
	user := &User{
		ID:        uuid.New(),
		Username:  username,
		Email:     strings.TrimSpace(req.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	profile := &Profile{ID: uuid.New(), UserID: user.ID}

	err := s.repository.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.CreateProfile(ctx, profile)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("register user %q: %w", username, err)
	}

	if err := s.eventSink.UserRegistered(ctx, user, profile); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", "user_registered", "user_id", user.ID, "err", err)
	}
	return user, profile, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repository.GetUser(ctx, id)
}

func (s *service) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.repository.GetUserByUsername(ctx, username)
}

func (s *service) UpdateUser(ctx context.Context, req UpdateUserRequest) (*User, error) {
	if req.Username != nil && strings.TrimSpace(*req.Username) == "" {
		return nil, newValidationError("username", ErrUsernameRequired)
	}

	var updated *User
	err := s.repository.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		user, err := tx.GetUser(ctx, req.ID)
		if err != nil {
			return err
		}
		if req.Username != nil {
			user.Username = strings.TrimSpace(*req.Username)
		}
		if req.Email != nil {
			user.Email = strings.TrimSpace(*req.Email)
		}
		user.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.repository.DeleteUser(ctx, id)
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	profile, err := s.repository.GetProfileByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	count, err := s.repository.CountContent(ctx, ContentFilters{CreatedBy: &userID})
	if err != nil {
		return nil, fmt.Errorf("count content for user %s: %w", userID, err)
	}
	profile.ContentCount = count
	return profile, nil
}

// Storage backend operations

func (s *service) GetBackend(name string) (BlobStore, error) {
	backend, exists := s.blobStores[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStorageBackendNotFound, name)
	}
	return backend, nil
}

// Helper methods

func (s *service) storePayload(ctx context.Context, content *Content, upload *NormalizedUpload) (*storedPayload, error) {
	backend, err := s.GetBackend(s.defaultBackend)
	if err != nil {
		return nil, err
	}

	key := s.keyGenerator.GenerateKey(content.ID, uuid.New(), &objectkey.KeyMetadata{
		FileName: upload.FileName,
		Hash:     upload.Hash,
		MimeType: upload.MimeType,
	})
	params := UploadParams{ObjectKey: key, MimeType: upload.MimeType, Size: upload.FileSize}
	if err := backend.Upload(ctx, upload.Reader(), params); err != nil {
		return nil, &StorageError{
			Backend: s.defaultBackend,
			Key:     key,
			Op:      "upload",
			Err:     fmt.Errorf("%w: %v", ErrUploadFailed, err),
		}
	}

	content.ContentFile = key
	content.StorageBackend = s.defaultBackend
	return &storedPayload{backend: s.defaultBackend, key: key}, nil
}

// discardPayload deletes a stored object, logging failures.
func (s *service) discardPayload(ctx context.Context, p *storedPayload) {
	if p == nil {
		return
	}
	backend, err := s.GetBackend(p.backend)
	if err != nil {
		s.logger.WarnContext(ctx, "cannot discard payload", "backend", p.backend, "key", p.key, "err", err)
		return
	}
	if err := backend.Delete(ctx, p.key); err != nil {
		s.logger.WarnContext(ctx, "failed to discard payload", "backend", p.backend, "key", p.key, "err", err)
	}
}

// reload re-reads content so read-only fields such as Creator are filled.
func (s *service) reload(ctx context.Context, content *Content) *Content {
	fresh, err := s.repository.GetContent(ctx, content.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to reload content", "content_id", content.ID, "err", err)
		return content
	}
	return fresh
}

func applyContentUpdate(c *Content, req UpdateContentRequest) {
	setString(&c.Title, trimmed(req.Title))
	setString(&c.Description, req.Description)
	setString(&c.CopyrightNotes, req.CopyrightNotes)
	setString(&c.RightsStatement, req.RightsStatement)
	setString(&c.AdditionalNotes, req.AdditionalNotes)
	setString(&c.OriginalSource, req.OriginalSource)
	setString(&c.ModifiedBy, req.ModifiedBy)
	setString(&c.ReviewedBy, req.ReviewedBy)
	setString(&c.CopyrightBy, req.CopyrightBy)
	setString(&c.CopyrightSite, req.CopyrightSite)

	if req.MetadataIDs != nil {
		c.MetadataIDs = dedupeIDs(*req.MetadataIDs)
	}
	if req.ModifiedOn != nil {
		c.ModifiedOn = req.ModifiedOn
	}
	if req.ReviewedOn != nil {
		c.ReviewedOn = req.ReviewedOn
	}
	if req.Status != nil {
		c.Status = *req.Status
	}
	if req.CopyrightApproved != nil {
		c.CopyrightApproved = *req.CopyrightApproved
	}
	if req.CopyrightOn != nil {
		c.CopyrightOn = req.CopyrightOn
	}
	if req.ClearPublishedDate {
		c.PublishedDate = nil
	} else if req.PublishedDate != nil {
		c.PublishedDate = req.PublishedDate
	}
	if req.Active != nil {
		c.Active = *req.Active
	}
}

func checkMetadata(ctx context.Context, repo Repository, ids []uuid.UUID) error {
	for _, id := range ids {
		_, err := repo.GetMetadata(ctx, id)
		if errors.Is(err, ErrMetadataNotFound) {
			return &ValidationError{
				Field:   "metadata",
				Message: fmt.Sprintf("invalid pk %q - object does not exist.", id),
				Err:     err,
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func userReferenceError(err error) error {
	if errors.Is(err, ErrUserNotFound) {
		return &ValidationError{Field: "created_by", Message: "user does not exist.", Err: err}
	}
	return err
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func dateOrToday(d *Date) *Date {
	if d != nil {
		return d
	}
	return Today()
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
