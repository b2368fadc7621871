package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/content-catalog/pkg/catalog"
)

// Repository implements catalog.Repository using in-memory storage.
//
// Units of work are serialized by txMu. WithTx runs against a copy of the
// state and swaps it in only when fn succeeds.
type Repository struct {
	txMu *sync.Mutex
	mu   sync.RWMutex
	st   *state
	tx   bool
}

type state struct {
	contents           map[uuid.UUID]*catalog.Content
	contentByFileName  map[string]uuid.UUID
	metadataTypes      map[uuid.UUID]*catalog.MetadataType
	metadataTypeByName map[string]uuid.UUID
	metadata           map[uuid.UUID]*catalog.Metadata
	users              map[uuid.UUID]*catalog.User
	userByName         map[string]uuid.UUID
	profiles           map[uuid.UUID]*catalog.Profile // user_id -> profile
}

// New creates a new in-memory repository
func New() catalog.Repository {
	return &Repository{
		txMu: &sync.Mutex{},
		st: &state{
			contents:           make(map[uuid.UUID]*catalog.Content),
			contentByFileName:  make(map[string]uuid.UUID),
			metadataTypes:      make(map[uuid.UUID]*catalog.MetadataType),
			metadataTypeByName: make(map[string]uuid.UUID),
			metadata:           make(map[uuid.UUID]*catalog.Metadata),
			users:              make(map[uuid.UUID]*catalog.User),
			userByName:         make(map[string]uuid.UUID),
			profiles:           make(map[uuid.UUID]*catalog.Profile),
		},
	}
}

// Stored values are never mutated in place, so copying the maps is enough.
func (s *state) clone() *state {
	return &state{
		contents:           cloneMap(s.contents),
		contentByFileName:  cloneMap(s.contentByFileName),
		metadataTypes:      cloneMap(s.metadataTypes),
		metadataTypeByName: cloneMap(s.metadataTypeByName),
		metadata:           cloneMap(s.metadata),
		users:              cloneMap(s.users),
		userByName:         cloneMap(s.userByName),
		profiles:           cloneMap(s.profiles),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx catalog.Repository) error) error {
	if r.tx {
		return fn(ctx, r)
	}

	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	view := &Repository{txMu: r.txMu, st: r.st.clone(), tx: true}
	r.mu.RUnlock()

	if err := fn(ctx, view); err != nil {
		return err
	}

	r.mu.Lock()
	r.st = view.st
	r.mu.Unlock()
	return nil
}

func (r *Repository) read(fn func(st *state) error) error {
	if r.tx {
		return fn(r.st)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(r.st)
}

// write applies fn directly; fn must validate before it mutates.
func (r *Repository) write(fn func(st *state) error) error {
	if r.tx {
		return fn(r.st)
	}
	r.txMu.Lock()
	defer r.txMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.st)
}

// Content operations

func (r *Repository) CreateContent(ctx context.Context, content *catalog.Content) error {
	return r.write(func(st *state) error {
		if content.FileName != "" {
			if _, taken := st.contentByFileName[content.FileName]; taken {
				return catalog.DuplicateFileNameError()
			}
		}
		if content.CreatedBy != nil {
			if _, ok := st.users[*content.CreatedBy]; !ok {
				return catalog.ErrUserNotFound
			}
		}
		if err := st.checkMetadataIDs(content.MetadataIDs); err != nil {
			return err
		}
		st.putContent(copyContent(content))
		return nil
	})
}

func (r *Repository) GetContent(ctx context.Context, id uuid.UUID) (*catalog.Content, error) {
	var out *catalog.Content
	err := r.read(func(st *state) error {
		content, exists := st.contents[id]
		if !exists {
			return catalog.ErrContentNotFound
		}
		out = st.hydrate(content)
		return nil
	})
	return out, err
}

func (r *Repository) GetContentByFileName(ctx context.Context, fileName string) (*catalog.Content, error) {
	var out *catalog.Content
	err := r.read(func(st *state) error {
		id, exists := st.contentByFileName[fileName]
		if !exists {
			return catalog.ErrContentNotFound
		}
		out = st.hydrate(st.contents[id])
		return nil
	})
	return out, err
}

func (r *Repository) UpdateContent(ctx context.Context, content *catalog.Content) error {
	return r.write(func(st *state) error {
		existing, exists := st.contents[content.ID]
		if !exists {
			return catalog.ErrContentNotFound
		}
		if content.FileName != "" {
			if owner, taken := st.contentByFileName[content.FileName]; taken && owner != content.ID {
				return catalog.DuplicateFileNameError()
			}
		}
		if content.CreatedBy != nil {
			if _, ok := st.users[*content.CreatedBy]; !ok {
				return catalog.ErrUserNotFound
			}
		}
		if err := st.checkMetadataIDs(content.MetadataIDs); err != nil {
			return err
		}
		if existing.FileName != "" && existing.FileName != content.FileName {
			delete(st.contentByFileName, existing.FileName)
		}
		st.putContent(copyContent(content))
		return nil
	})
}

func (r *Repository) ListContent(ctx context.Context, filters catalog.ContentFilters) ([]*catalog.Content, error) {
	var result []*catalog.Content
	err := r.read(func(st *state) error {
		for _, content := range st.contents {
			if filters.Matches(content) {
				result = append(result, st.hydrate(content))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		ac, bc := dateKey(a.CreatedOn), dateKey(b.CreatedOn)
		if ac != bc {
			return ac > bc
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID.String() < b.ID.String()
	})

	return paginate(result, filters.Offset, filters.Limit), nil
}

func (r *Repository) CountContent(ctx context.Context, filters catalog.ContentFilters) (int64, error) {
	var count int64
	err := r.read(func(st *state) error {
		for _, content := range st.contents {
			if filters.Matches(content) {
				count++
			}
		}
		return nil
	})
	return count, err
}

// Metadata type operations

func (r *Repository) CreateMetadataType(ctx context.Context, mt *catalog.MetadataType) error {
	return r.write(func(st *state) error {
		if _, taken := st.metadataTypeByName[mt.Name]; taken {
			return catalog.DuplicateMetadataTypeNameError()
		}
		cp := *mt
		st.metadataTypes[mt.ID] = &cp
		st.metadataTypeByName[mt.Name] = mt.ID
		return nil
	})
}

func (r *Repository) GetMetadataType(ctx context.Context, id uuid.UUID) (*catalog.MetadataType, error) {
	var out *catalog.MetadataType
	err := r.read(func(st *state) error {
		mt, exists := st.metadataTypes[id]
		if !exists {
			return catalog.ErrMetadataTypeNotFound
		}
		cp := *mt
		out = &cp
		return nil
	})
	return out, err
}

func (r *Repository) ListMetadataTypes(ctx context.Context) ([]*catalog.MetadataType, error) {
	var result []*catalog.MetadataType
	err := r.read(func(st *state) error {
		for _, mt := range st.metadataTypes {
			cp := *mt
			result = append(result, &cp)
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, err
}

func (r *Repository) UpdateMetadataType(ctx context.Context, mt *catalog.MetadataType) error {
	return r.write(func(st *state) error {
		existing, exists := st.metadataTypes[mt.ID]
		if !exists {
			return catalog.ErrMetadataTypeNotFound
		}
		if owner, taken := st.metadataTypeByName[mt.Name]; taken && owner != mt.ID {
			return catalog.DuplicateMetadataTypeNameError()
		}
		delete(st.metadataTypeByName, existing.Name)
		cp := *mt
		st.metadataTypes[mt.ID] = &cp
		st.metadataTypeByName[mt.Name] = mt.ID
		return nil
	})
}

func (r *Repository) DeleteMetadataType(ctx context.Context, id uuid.UUID) error {
	return r.write(func(st *state) error {
		mt, exists := st.metadataTypes[id]
		if !exists {
			return catalog.ErrMetadataTypeNotFound
		}
		for mid, m := range st.metadata {
			if m.TypeID == id {
				st.removeMetadata(mid)
			}
		}
		delete(st.metadataTypeByName, mt.Name)
		delete(st.metadataTypes, id)
		return nil
	})
}

// Metadata operations

func (r *Repository) CreateMetadata(ctx context.Context, m *catalog.Metadata) error {
	return r.write(func(st *state) error {
		if _, exists := st.metadataTypes[m.TypeID]; !exists {
			return catalog.ErrMetadataTypeNotFound
		}
		cp := *m
		cp.TypeName = ""
		st.metadata[m.ID] = &cp
		return nil
	})
}

func (r *Repository) GetMetadata(ctx context.Context, id uuid.UUID) (*catalog.Metadata, error) {
	var out *catalog.Metadata
	err := r.read(func(st *state) error {
		m, exists := st.metadata[id]
		if !exists {
			return catalog.ErrMetadataNotFound
		}
		out = st.hydrateMetadata(m)
		return nil
	})
	return out, err
}

func (r *Repository) ListMetadata(ctx context.Context, typeID *uuid.UUID) ([]*catalog.Metadata, error) {
	var result []*catalog.Metadata
	err := r.read(func(st *state) error {
		for _, m := range st.metadata {
			if typeID != nil && m.TypeID != *typeID {
				continue
			}
			result = append(result, st.hydrateMetadata(m))
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.TypeName != b.TypeName {
			return a.TypeName < b.TypeName
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID.String() < b.ID.String()
	})
	return result, err
}

func (r *Repository) DeleteMetadata(ctx context.Context, id uuid.UUID) error {
	return r.write(func(st *state) error {
		if _, exists := st.metadata[id]; !exists {
			return catalog.ErrMetadataNotFound
		}
		st.removeMetadata(id)
		return nil
	})
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *catalog.User) error {
	return r.write(func(st *state) error {
		if _, taken := st.userByName[user.Username]; taken {
			return catalog.DuplicateUsernameError()
		}
		cp := *user
		st.users[user.ID] = &cp
		st.userByName[user.Username] = user.ID
		return nil
	})
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*catalog.User, error) {
	var out *catalog.User
	err := r.read(func(st *state) error {
		user, exists := st.users[id]
		if !exists {
			return catalog.ErrUserNotFound
		}
		cp := *user
		out = &cp
		return nil
	})
	return out, err
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*catalog.User, error) {
	var out *catalog.User
	err := r.read(func(st *state) error {
		id, exists := st.userByName[username]
		if !exists {
			return catalog.ErrUserNotFound
		}
		cp := *st.users[id]
		out = &cp
		return nil
	})
	return out, err
}

func (r *Repository) UpdateUser(ctx context.Context, user *catalog.User) error {
	return r.write(func(st *state) error {
		existing, exists := st.users[user.ID]
		if !exists {
			return catalog.ErrUserNotFound
		}
		if owner, taken := st.userByName[user.Username]; taken && owner != user.ID {
			return catalog.DuplicateUsernameError()
		}
		delete(st.userByName, existing.Username)
		cp := *user
		st.users[user.ID] = &cp
		st.userByName[user.Username] = user.ID
		return nil
	})
}

func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return r.write(func(st *state) error {
		user, exists := st.users[id]
		if !exists {
			return catalog.ErrUserNotFound
		}
		for cid, content := range st.contents {
			if content.CreatedBy != nil && *content.CreatedBy == id {
				cp := copyContent(content)
				cp.CreatedBy = nil
				st.contents[cid] = cp
			}
		}
		delete(st.profiles, id)
		delete(st.userByName, user.Username)
		delete(st.users, id)
		return nil
	})
}

// Profile operations

func (r *Repository) CreateProfile(ctx context.Context, profile *catalog.Profile) error {
	return r.write(func(st *state) error {
		if _, exists := st.users[profile.UserID]; !exists {
			return catalog.ErrUserNotFound
		}
		if _, exists := st.profiles[profile.UserID]; exists {
			return catalog.ErrDuplicateProfile
		}
		cp := *profile
		cp.ContentCount = 0
		st.profiles[profile.UserID] = &cp
		return nil
	})
}

func (r *Repository) GetProfileByUserID(ctx context.Context, userID uuid.UUID) (*catalog.Profile, error) {
	var out *catalog.Profile
	err := r.read(func(st *state) error {
		profile, exists := st.profiles[userID]
		if !exists {
			return catalog.ErrProfileNotFound
		}
		cp := *profile
		out = &cp
		return nil
	})
	return out, err
}

// Helper methods

func (s *state) putContent(content *catalog.Content) {
	content.Creator = nil
	s.contents[content.ID] = content
	if content.FileName != "" {
		s.contentByFileName[content.FileName] = content.ID
	}
}

func (s *state) hydrate(content *catalog.Content) *catalog.Content {
	out := copyContent(content)
	if out.CreatedBy != nil {
		if user, ok := s.users[*out.CreatedBy]; ok {
			cp := *user
			out.Creator = &cp
		}
	}
	return out
}

func (s *state) hydrateMetadata(m *catalog.Metadata) *catalog.Metadata {
	cp := *m
	if mt, ok := s.metadataTypes[m.TypeID]; ok {
		cp.TypeName = mt.Name
	}
	return &cp
}

func (s *state) checkMetadataIDs(ids []uuid.UUID) error {
	for _, id := range ids {
		if _, ok := s.metadata[id]; !ok {
			return catalog.ErrMetadataNotFound
		}
	}
	return nil
}

// removeMetadata drops a tag and unlinks it from every content record.
func (s *state) removeMetadata(id uuid.UUID) {
	for cid, content := range s.contents {
		if !containsID(content.MetadataIDs, id) {
			continue
		}
		cp := copyContent(content)
		cp.MetadataIDs = cp.MetadataIDs[:0]
		for _, mid := range content.MetadataIDs {
			if mid != id {
				cp.MetadataIDs = append(cp.MetadataIDs, mid)
			}
		}
		s.contents[cid] = cp
	}
	delete(s.metadata, id)
}

func copyContent(content *catalog.Content) *catalog.Content {
	cp := *content
	cp.MetadataIDs = append([]uuid.UUID{}, content.MetadataIDs...)
	if content.CreatedBy != nil {
		id := *content.CreatedBy
		cp.CreatedBy = &id
	}
	if content.FileSize != nil {
		size := *content.FileSize
		cp.FileSize = &size
	}
	cp.CreatedOn = copyDate(content.CreatedOn)
	cp.ModifiedOn = copyDate(content.ModifiedOn)
	cp.ReviewedOn = copyDate(content.ReviewedOn)
	cp.CopyrightOn = copyDate(content.CopyrightOn)
	cp.PublishedDate = copyDate(content.PublishedDate)
	return &cp
}

func copyDate(d *catalog.Date) *catalog.Date {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func dateKey(d *catalog.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func paginate(items []*catalog.Content, offset, limit int) []*catalog.Content {
	if offset > 0 {
		if offset >= len(items) {
			return []*catalog.Content{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	if items == nil {
		return []*catalog.Content{}
	}
	return items
}
