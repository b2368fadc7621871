package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/content-catalog/pkg/catalog"
)

//go:embed schema.sql
var schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements catalog.Repository using PostgreSQL
type Repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) catalog.Repository {
	return &Repository{db: pool, pool: pool}
}

// Migrate creates the catalog tables if they do not exist.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// WithTx runs fn inside a database transaction. Calls on a repository that
// is already inside a transaction join it.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx catalog.Repository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &Repository{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return r.handlePostgresError("commit", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			switch pgErr.ConstraintName {
			case "content_file_name_key":
				return catalog.DuplicateFileNameError()
			case "metadata_type_name_key":
				return catalog.DuplicateMetadataTypeNameError()
			case "app_user_username_key":
				return catalog.DuplicateUsernameError()
			case "profile_user_id_key":
				return catalog.ErrDuplicateProfile
			}
			return fmt.Errorf("duplicate entry in %s: %s", operation, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			switch {
			case strings.Contains(pgErr.ConstraintName, "metadata_id"):
				return catalog.ErrMetadataNotFound
			case strings.Contains(pgErr.ConstraintName, "type_id"):
				return catalog.ErrMetadataTypeNotFound
			case strings.Contains(pgErr.ConstraintName, "created_by"), strings.Contains(pgErr.ConstraintName, "user_id"):
				return catalog.ErrUserNotFound
			case strings.Contains(pgErr.ConstraintName, "content_id"):
				return catalog.ErrContentNotFound
			}
			return fmt.Errorf("referenced record not found in %s", operation)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Content operations

const contentColumns = `
	c.id, c.content_file, c.storage_backend, c.file_name, c.filesize, c.hash, c.mime_type,
	c.title, c.description, c.copyright_notes, c.rights_statement, c.additional_notes, c.original_source,
	c.created_by, c.created_on, c.modified_by, c.modified_on, c.reviewed_by, c.reviewed_on, c.status,
	c.copyright_approved, c.copyright_by, c.copyright_on, c.copyright_site, c.published_date, c.active,
	u.username, u.email, u.created_at, u.updated_at`

const contentFrom = ` FROM content c LEFT JOIN app_user u ON u.id = c.created_by`

func (r *Repository) CreateContent(ctx context.Context, content *catalog.Content) error {
	return r.WithTx(ctx, func(ctx context.Context, tx catalog.Repository) error {
		db := tx.(*Repository).db
		query := `
			INSERT INTO content (
				id, content_file, storage_backend, file_name, filesize, hash, mime_type,
				title, description, copyright_notes, rights_statement, additional_notes, original_source,
				created_by, created_on, modified_by, modified_on, reviewed_by, reviewed_on, status,
				copyright_approved, copyright_by, copyright_on, copyright_site, published_date, active
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
				$21, $22, $23, $24, $25, $26)`

		_, err := db.Exec(ctx, query, contentArgs(content)...)
		if err != nil {
			return r.handlePostgresError("create content", err)
		}
		return replaceMetadataLinks(ctx, r, db, content)
	})
}

func (r *Repository) GetContent(ctx context.Context, id uuid.UUID) (*catalog.Content, error) {
	return r.getContent(ctx, `WHERE c.id = $1`, id)
}

func (r *Repository) GetContentByFileName(ctx context.Context, fileName string) (*catalog.Content, error) {
	if fileName == "" {
		return nil, catalog.ErrContentNotFound
	}
	return r.getContent(ctx, `WHERE c.file_name = $1`, fileName)
}

func (r *Repository) getContent(ctx context.Context, where string, arg any) (*catalog.Content, error) {
	row := r.db.QueryRow(ctx, `SELECT `+contentColumns+contentFrom+` `+where, arg)
	content, err := scanContent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrContentNotFound
		}
		return nil, r.handlePostgresError("get content", err)
	}
	if err := r.loadMetadataIDs(ctx, content); err != nil {
		return nil, err
	}
	return content, nil
}

func (r *Repository) UpdateContent(ctx context.Context, content *catalog.Content) error {
	return r.WithTx(ctx, func(ctx context.Context, tx catalog.Repository) error {
		db := tx.(*Repository).db
		query := `
			UPDATE content SET
				content_file = $2, storage_backend = $3, file_name = $4, filesize = $5, hash = $6, mime_type = $7,
				title = $8, description = $9, copyright_notes = $10, rights_statement = $11,
				additional_notes = $12, original_source = $13,
				created_by = $14, created_on = $15, modified_by = $16, modified_on = $17,
				reviewed_by = $18, reviewed_on = $19, status = $20,
				copyright_approved = $21, copyright_by = $22, copyright_on = $23, copyright_site = $24,
				published_date = $25, active = $26
			WHERE id = $1`

		tag, err := db.Exec(ctx, query, contentArgs(content)...)
		if err != nil {
			return r.handlePostgresError("update content", err)
		}
		if tag.RowsAffected() == 0 {
			return catalog.ErrContentNotFound
		}
		return replaceMetadataLinks(ctx, r, db, content)
	})
}

func (r *Repository) ListContent(ctx context.Context, filters catalog.ContentFilters) ([]*catalog.Content, error) {
	where, args := buildContentWhere(filters)
	query := `SELECT ` + contentColumns + contentFrom + where +
		` ORDER BY c.created_on DESC NULLS LAST, c.title ASC, c.id ASC`
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list content", err)
	}
	contents, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*catalog.Content, error) {
		return scanContent(row)
	})
	if err != nil {
		return nil, r.handlePostgresError("list content", err)
	}

	for _, content := range contents {
		if err := r.loadMetadataIDs(ctx, content); err != nil {
			return nil, err
		}
	}
	if contents == nil {
		contents = []*catalog.Content{}
	}
	return contents, nil
}

func (r *Repository) CountContent(ctx context.Context, filters catalog.ContentFilters) (int64, error) {
	where, args := buildContentWhere(filters)
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM content c`+where, args...).Scan(&count); err != nil {
		return 0, r.handlePostgresError("count content", err)
	}
	return count, nil
}

// Metadata type operations

func (r *Repository) CreateMetadataType(ctx context.Context, mt *catalog.MetadataType) error {
	_, err := r.db.Exec(ctx, `INSERT INTO metadata_type (id, name) VALUES ($1, $2)`, mt.ID, mt.Name)
	if err != nil {
		return r.handlePostgresError("create metadata type", err)
	}
	return nil
}

func (r *Repository) GetMetadataType(ctx context.Context, id uuid.UUID) (*catalog.MetadataType, error) {
	var mt catalog.MetadataType
	err := r.db.QueryRow(ctx, `SELECT id, name FROM metadata_type WHERE id = $1`, id).Scan(&mt.ID, &mt.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrMetadataTypeNotFound
		}
		return nil, r.handlePostgresError("get metadata type", err)
	}
	return &mt, nil
}

func (r *Repository) ListMetadataTypes(ctx context.Context) ([]*catalog.MetadataType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM metadata_type ORDER BY name`)
	if err != nil {
		return nil, r.handlePostgresError("list metadata types", err)
	}
	types, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*catalog.MetadataType, error) {
		var mt catalog.MetadataType
		err := row.Scan(&mt.ID, &mt.Name)
		return &mt, err
	})
	if err != nil {
		return nil, r.handlePostgresError("list metadata types", err)
	}
	return types, nil
}

func (r *Repository) UpdateMetadataType(ctx context.Context, mt *catalog.MetadataType) error {
	tag, err := r.db.Exec(ctx, `UPDATE metadata_type SET name = $2 WHERE id = $1`, mt.ID, mt.Name)
	if err != nil {
		return r.handlePostgresError("update metadata type", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrMetadataTypeNotFound
	}
	return nil
}

func (r *Repository) DeleteMetadataType(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM metadata_type WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete metadata type", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrMetadataTypeNotFound
	}
	return nil
}

// Metadata operations

const metadataSelect = `SELECT m.id, m.name, m.type_id, t.name FROM metadata m JOIN metadata_type t ON t.id = m.type_id`

func (r *Repository) CreateMetadata(ctx context.Context, m *catalog.Metadata) error {
	_, err := r.db.Exec(ctx, `INSERT INTO metadata (id, name, type_id) VALUES ($1, $2, $3)`, m.ID, m.Name, m.TypeID)
	if err != nil {
		return r.handlePostgresError("create metadata", err)
	}
	return nil
}

func (r *Repository) GetMetadata(ctx context.Context, id uuid.UUID) (*catalog.Metadata, error) {
	var m catalog.Metadata
	err := r.db.QueryRow(ctx, metadataSelect+` WHERE m.id = $1`, id).Scan(&m.ID, &m.Name, &m.TypeID, &m.TypeName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrMetadataNotFound
		}
		return nil, r.handlePostgresError("get metadata", err)
	}
	return &m, nil
}

func (r *Repository) ListMetadata(ctx context.Context, typeID *uuid.UUID) ([]*catalog.Metadata, error) {
	query := metadataSelect
	var args []any
	if typeID != nil {
		query += ` WHERE m.type_id = $1`
		args = append(args, *typeID)
	}
	query += ` ORDER BY t.name, m.name, m.id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list metadata", err)
	}
	tags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*catalog.Metadata, error) {
		var m catalog.Metadata
		err := row.Scan(&m.ID, &m.Name, &m.TypeID, &m.TypeName)
		return &m, err
	})
	if err != nil {
		return nil, r.handlePostgresError("list metadata", err)
	}
	return tags, nil
}

func (r *Repository) DeleteMetadata(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM metadata WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete metadata", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrMetadataNotFound
	}
	return nil
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *catalog.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO app_user (id, username, email, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Username, user.Email, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create user", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*catalog.User, error) {
	return r.getUser(ctx, `WHERE id = $1`, id)
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*catalog.User, error) {
	return r.getUser(ctx, `WHERE username = $1`, username)
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*catalog.User, error) {
	var user catalog.User
	err := r.db.QueryRow(ctx, `SELECT id, username, email, created_at, updated_at FROM app_user `+where, arg).
		Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrUserNotFound
		}
		return nil, r.handlePostgresError("get user", err)
	}
	return &user, nil
}

func (r *Repository) UpdateUser(ctx context.Context, user *catalog.User) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE app_user SET username = $2, email = $3, updated_at = $4 WHERE id = $1`,
		user.ID, user.Username, user.Email, user.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrUserNotFound
	}
	return nil
}

func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM app_user WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrUserNotFound
	}
	return nil
}

// Profile operations

func (r *Repository) CreateProfile(ctx context.Context, profile *catalog.Profile) error {
	_, err := r.db.Exec(ctx, `INSERT INTO profile (id, user_id) VALUES ($1, $2)`, profile.ID, profile.UserID)
	if err != nil {
		return r.handlePostgresError("create profile", err)
	}
	return nil
}

func (r *Repository) GetProfileByUserID(ctx context.Context, userID uuid.UUID) (*catalog.Profile, error) {
	var profile catalog.Profile
	err := r.db.QueryRow(ctx, `SELECT id, user_id FROM profile WHERE user_id = $1`, userID).
		Scan(&profile.ID, &profile.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProfileNotFound
		}
		return nil, r.handlePostgresError("get profile", err)
	}
	return &profile, nil
}

// Helper methods

func contentArgs(c *catalog.Content) []any {
	return []any{
		c.ID, c.ContentFile, c.StorageBackend, c.FileName, c.FileSize, c.Hash, c.MimeType,
		c.Title, c.Description, c.CopyrightNotes, c.RightsStatement, c.AdditionalNotes, c.OriginalSource,
		c.CreatedBy, c.CreatedOn.TimePtr(), c.ModifiedBy, c.ModifiedOn.TimePtr(), c.ReviewedBy, c.ReviewedOn.TimePtr(), string(c.Status),
		c.CopyrightApproved, c.CopyrightBy, c.CopyrightOn.TimePtr(), c.CopyrightSite, c.PublishedDate.TimePtr(), c.Active,
	}
}

func scanContent(row pgx.Row) (*catalog.Content, error) {
	var (
		c                                                    catalog.Content
		status                                               string
		createdOn, modifiedOn, reviewedOn, copyrightOn, pubd *time.Time
		username, email                                      *string
		userCreated, userUpdated                             *time.Time
	)
	err := row.Scan(
		&c.ID, &c.ContentFile, &c.StorageBackend, &c.FileName, &c.FileSize, &c.Hash, &c.MimeType,
		&c.Title, &c.Description, &c.CopyrightNotes, &c.RightsStatement, &c.AdditionalNotes, &c.OriginalSource,
		&c.CreatedBy, &createdOn, &c.ModifiedBy, &modifiedOn, &c.ReviewedBy, &reviewedOn, &status,
		&c.CopyrightApproved, &c.CopyrightBy, &copyrightOn, &c.CopyrightSite, &pubd, &c.Active,
		&username, &email, &userCreated, &userUpdated)
	if err != nil {
		return nil, err
	}
	c.Status = catalog.WorkflowStatus(status)
	c.CreatedOn = catalog.DateFromTime(createdOn)
	c.ModifiedOn = catalog.DateFromTime(modifiedOn)
	c.ReviewedOn = catalog.DateFromTime(reviewedOn)
	c.CopyrightOn = catalog.DateFromTime(copyrightOn)
	c.PublishedDate = catalog.DateFromTime(pubd)
	if c.CreatedBy != nil && username != nil {
		c.Creator = &catalog.User{ID: *c.CreatedBy, Username: *username}
		if email != nil {
			c.Creator.Email = *email
		}
		if userCreated != nil {
			c.Creator.CreatedAt = *userCreated
		}
		if userUpdated != nil {
			c.Creator.UpdatedAt = *userUpdated
		}
	}
	return &c, nil
}

func (r *Repository) loadMetadataIDs(ctx context.Context, content *catalog.Content) error {
	rows, err := r.db.Query(ctx,
		`SELECT metadata_id FROM content_metadata WHERE content_id = $1 ORDER BY position`, content.ID)
	if err != nil {
		return r.handlePostgresError("load content metadata", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return r.handlePostgresError("load content metadata", err)
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	content.MetadataIDs = ids
	return nil
}

func replaceMetadataLinks(ctx context.Context, r *Repository, db DBTX, content *catalog.Content) error {
	if _, err := db.Exec(ctx, `DELETE FROM content_metadata WHERE content_id = $1`, content.ID); err != nil {
		return r.handlePostgresError("replace content metadata", err)
	}
	for i, id := range content.MetadataIDs {
		_, err := db.Exec(ctx,
			`INSERT INTO content_metadata (content_id, metadata_id, position) VALUES ($1, $2, $3)`,
			content.ID, id, i)
		if err != nil {
			return r.handlePostgresError("replace content metadata", err)
		}
	}
	return nil
}

// buildContentWhere mirrors catalog.ContentFilters.Matches in SQL.
func buildContentWhere(f catalog.ContentFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		p := arg("%" + escapeLike(f.Search) + "%")
		clauses = append(clauses, fmt.Sprintf(`(c.title ILIKE %s ESCAPE '\' OR c.description ILIKE %s ESCAPE '\')`, p, p))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		clauses = append(clauses, fmt.Sprintf("c.status = ANY(%s)", arg(statuses)))
	}
	if f.Active != nil {
		clauses = append(clauses, "c.active = "+arg(*f.Active))
	}
	if f.CreatedBy != nil {
		clauses = append(clauses, "c.created_by = "+arg(*f.CreatedBy))
	}
	for _, id := range f.MetadataIDs {
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM content_metadata cm WHERE cm.content_id = c.id AND cm.metadata_id = %s)", arg(id)))
	}
	if f.PublishedFrom != nil {
		clauses = append(clauses, "EXTRACT(YEAR FROM c.published_date) >= "+arg(*f.PublishedFrom))
	}
	if f.PublishedTo != nil {
		clauses = append(clauses, "EXTRACT(YEAR FROM c.published_date) <= "+arg(*f.PublishedTo))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
