// Package sqlite implements catalog.Repository on an embedded SQLite
// database through modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/content-catalog/pkg/catalog"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schemaSQL string

const timestampLayout = time.RFC3339Nano

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository implements catalog.Repository using SQLite
type Repository struct {
	db   DBTX
	conn *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// The pool is limited to one connection so writers queue instead of
// failing with SQLITE_BUSY.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// New creates a new SQLite repository
func New(db *sql.DB) catalog.Repository {
	return &Repository{db: db, conn: db}
}

// WithTx runs fn inside a database transaction. Calls on a repository that
// is already inside a transaction join it.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx catalog.Repository) error) error {
	if r.conn == nil {
		return fn(ctx, r)
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &Repository{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return handleSQLiteError("commit", err, nil)
	}
	return nil
}

// handleSQLiteError maps constraint failures onto catalog errors. SQLite
// does not name the violated foreign key, so callers pass the sentinel to
// use for one.
func handleSQLiteError(operation string, err error, missingRef error) error {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("database error in %s: %w", operation, err)
	}

	msg := sqliteErr.Error()
	switch {
	case strings.Contains(msg, "content.file_name"):
		return catalog.DuplicateFileNameError()
	case strings.Contains(msg, "metadata_type.name"):
		return catalog.DuplicateMetadataTypeNameError()
	case strings.Contains(msg, "app_user.username"):
		return catalog.DuplicateUsernameError()
	case strings.Contains(msg, "profile.user_id"):
		return catalog.ErrDuplicateProfile
	case strings.Contains(msg, "FOREIGN KEY") && missingRef != nil:
		return missingRef
	}
	return fmt.Errorf("constraint failed in %s: %w", operation, err)
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
	if err := r.checkContentRefs(ctx, content); err != nil {
		return err
	}
	return r.WithTx(ctx, func(ctx context.Context, tx catalog.Repository) error {
		db := tx.(*Repository).db
		query := `
			INSERT INTO content (
				id, content_file, storage_backend, file_name, filesize, hash, mime_type,
				title, description, copyright_notes, rights_statement, additional_notes, original_source,
				created_by, created_on, modified_by, modified_on, reviewed_by, reviewed_on, status,
				copyright_approved, copyright_by, copyright_on, copyright_site, published_date, active
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

		if _, err := db.ExecContext(ctx, query, contentArgs(content)...); err != nil {
			return handleSQLiteError("create content", err, catalog.ErrUserNotFound)
		}
		return replaceMetadataLinks(ctx, db, content)
	})
}

func (r *Repository) GetContent(ctx context.Context, id uuid.UUID) (*catalog.Content, error) {
	return r.getContent(ctx, `WHERE c.id = ?`, id.String())
}

func (r *Repository) GetContentByFileName(ctx context.Context, fileName string) (*catalog.Content, error) {
	if fileName == "" {
		return nil, catalog.ErrContentNotFound
	}
	return r.getContent(ctx, `WHERE c.file_name = ?`, fileName)
}

func (r *Repository) getContent(ctx context.Context, where string, arg any) (*catalog.Content, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+contentColumns+contentFrom+` `+where, arg)
	content, err := scanContent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrContentNotFound
		}
		return nil, handleSQLiteError("get content", err, nil)
	}
	if err := r.loadMetadataIDs(ctx, content); err != nil {
		return nil, err
	}
	return content, nil
}

func (r *Repository) UpdateContent(ctx context.Context, content *catalog.Content) error {
	if err := r.checkContentRefs(ctx, content); err != nil {
		return err
	}
	return r.WithTx(ctx, func(ctx context.Context, tx catalog.Repository) error {
		db := tx.(*Repository).db
		query := `
			UPDATE content SET
				content_file = ?2, storage_backend = ?3, file_name = ?4, filesize = ?5, hash = ?6, mime_type = ?7,
				title = ?8, description = ?9, copyright_notes = ?10, rights_statement = ?11,
				additional_notes = ?12, original_source = ?13,
				created_by = ?14, created_on = ?15, modified_by = ?16, modified_on = ?17,
				reviewed_by = ?18, reviewed_on = ?19, status = ?20,
				copyright_approved = ?21, copyright_by = ?22, copyright_on = ?23, copyright_site = ?24,
				published_date = ?25, active = ?26
			WHERE id = ?1`

		res, err := db.ExecContext(ctx, query, contentArgs(content)...)
		if err != nil {
			return handleSQLiteError("update content", err, catalog.ErrUserNotFound)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return catalog.ErrContentNotFound
		}
		return replaceMetadataLinks(ctx, db, content)
	})
}

func (r *Repository) ListContent(ctx context.Context, filters catalog.ContentFilters) ([]*catalog.Content, error) {
	where, args := buildContentWhere(filters)
	query := `SELECT ` + contentColumns + contentFrom + where +
		` ORDER BY c.created_on DESC, c.title ASC, c.id ASC`
	if filters.Limit > 0 || filters.Offset > 0 {
		limit := filters.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filters.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, handleSQLiteError("list content", err, nil)
	}
	contents := []*catalog.Content{}
	for rows.Next() {
		content, err := scanContent(rows)
		if err != nil {
			rows.Close()
			return nil, handleSQLiteError("list content", err, nil)
		}
		contents = append(contents, content)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, handleSQLiteError("list content", err, nil)
	}
	rows.Close()

	for _, content := range contents {
		if err := r.loadMetadataIDs(ctx, content); err != nil {
			return nil, err
		}
	}
	return contents, nil
}

func (r *Repository) CountContent(ctx context.Context, filters catalog.ContentFilters) (int64, error) {
	where, args := buildContentWhere(filters)
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM content c`+where, args...).Scan(&count); err != nil {
		return 0, handleSQLiteError("count content", err, nil)
	}
	return count, nil
}

// Metadata type operations

func (r *Repository) CreateMetadataType(ctx context.Context, mt *catalog.MetadataType) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO metadata_type (id, name) VALUES (?, ?)`, mt.ID.String(), mt.Name)
	if err != nil {
		return handleSQLiteError("create metadata type", err, nil)
	}
	return nil
}

func (r *Repository) GetMetadataType(ctx context.Context, id uuid.UUID) (*catalog.MetadataType, error) {
	var mt catalog.MetadataType
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM metadata_type WHERE id = ?`, id.String()).Scan(&mt.ID, &mt.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrMetadataTypeNotFound
		}
		return nil, handleSQLiteError("get metadata type", err, nil)
	}
	return &mt, nil
}

func (r *Repository) ListMetadataTypes(ctx context.Context) ([]*catalog.MetadataType, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM metadata_type ORDER BY name`)
	if err != nil {
		return nil, handleSQLiteError("list metadata types", err, nil)
	}
	defer rows.Close()

	var types []*catalog.MetadataType
	for rows.Next() {
		var mt catalog.MetadataType
		if err := rows.Scan(&mt.ID, &mt.Name); err != nil {
			return nil, handleSQLiteError("list metadata types", err, nil)
		}
		types = append(types, &mt)
	}
	return types, rows.Err()
}

func (r *Repository) UpdateMetadataType(ctx context.Context, mt *catalog.MetadataType) error {
	res, err := r.db.ExecContext(ctx, `UPDATE metadata_type SET name = ? WHERE id = ?`, mt.Name, mt.ID.String())
	if err != nil {
		return handleSQLiteError("update metadata type", err, nil)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrMetadataTypeNotFound
	}
	return nil
}

func (r *Repository) DeleteMetadataType(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM metadata_type WHERE id = ?`, id.String())
	if err != nil {
		return handleSQLiteError("delete metadata type", err, nil)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrMetadataTypeNotFound
	}
	return nil
}

// Metadata operations

const metadataSelect = `SELECT m.id, m.name, m.type_id, t.name FROM metadata m JOIN metadata_type t ON t.id = m.type_id`

func (r *Repository) CreateMetadata(ctx context.Context, m *catalog.Metadata) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO metadata (id, name, type_id) VALUES (?, ?, ?)`,
		m.ID.String(), m.Name, m.TypeID.String())
	if err != nil {
		return handleSQLiteError("create metadata", err, catalog.ErrMetadataTypeNotFound)
	}
	return nil
}

func (r *Repository) GetMetadata(ctx context.Context, id uuid.UUID) (*catalog.Metadata, error) {
	var m catalog.Metadata
	err := r.db.QueryRowContext(ctx, metadataSelect+` WHERE m.id = ?`, id.String()).
		Scan(&m.ID, &m.Name, &m.TypeID, &m.TypeName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrMetadataNotFound
		}
		return nil, handleSQLiteError("get metadata", err, nil)
	}
	return &m, nil
}

func (r *Repository) ListMetadata(ctx context.Context, typeID *uuid.UUID) ([]*catalog.Metadata, error) {
	query := metadataSelect
	var args []any
	if typeID != nil {
		query += ` WHERE m.type_id = ?`
		args = append(args, typeID.String())
	}
	query += ` ORDER BY t.name, m.name, m.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, handleSQLiteError("list metadata", err, nil)
	}
	defer rows.Close()

	var tags []*catalog.Metadata
	for rows.Next() {
		var m catalog.Metadata
		if err := rows.Scan(&m.ID, &m.Name, &m.TypeID, &m.TypeName); err != nil {
			return nil, handleSQLiteError("list metadata", err, nil)
		}
		tags = append(tags, &m)
	}
	return tags, rows.Err()
}

func (r *Repository) DeleteMetadata(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE id = ?`, id.String())
	if err != nil {
		return handleSQLiteError("delete metadata", err, nil)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrMetadataNotFound
	}
	return nil
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *catalog.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO app_user (id, username, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID.String(), user.Username, user.Email,
		user.CreatedAt.UTC().Format(timestampLayout), user.UpdatedAt.UTC().Format(timestampLayout))
	if err != nil {
		return handleSQLiteError("create user", err, nil)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*catalog.User, error) {
	return r.getUser(ctx, `WHERE id = ?`, id.String())
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*catalog.User, error) {
	return r.getUser(ctx, `WHERE username = ?`, username)
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*catalog.User, error) {
	var (
		user             catalog.User
		created, updated string
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, username, email, created_at, updated_at FROM app_user `+where, arg).
		Scan(&user.ID, &user.Username, &user.Email, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrUserNotFound
		}
		return nil, handleSQLiteError("get user", err, nil)
	}
	user.CreatedAt, _ = time.Parse(timestampLayout, created)
	user.UpdatedAt, _ = time.Parse(timestampLayout, updated)
	return &user, nil
}

func (r *Repository) UpdateUser(ctx context.Context, user *catalog.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE app_user SET username = ?, email = ?, updated_at = ? WHERE id = ?`,
		user.Username, user.Email, user.UpdatedAt.UTC().Format(timestampLayout), user.ID.String())
	if err != nil {
		return handleSQLiteError("update user", err, nil)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrUserNotFound
	}
	return nil
}

func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM app_user WHERE id = ?`, id.String())
	if err != nil {
		return handleSQLiteError("delete user", err, nil)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrUserNotFound
	}
	return nil
}

// Profile operations

func (r *Repository) CreateProfile(ctx context.Context, profile *catalog.Profile) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO profile (id, user_id) VALUES (?, ?)`,
		profile.ID.String(), profile.UserID.String())
	if err != nil {
		return handleSQLiteError("create profile", err, catalog.ErrUserNotFound)
	}
	return nil
}

func (r *Repository) GetProfileByUserID(ctx context.Context, userID uuid.UUID) (*catalog.Profile, error) {
	var profile catalog.Profile
	err := r.db.QueryRowContext(ctx, `SELECT id, user_id FROM profile WHERE user_id = ?`, userID.String()).
		Scan(&profile.ID, &profile.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrProfileNotFound
		}
		return nil, handleSQLiteError("get profile", err, nil)
	}
	return &profile, nil
}

// Helper methods

// checkContentRefs reports missing tags before the write, since SQLite's
// foreign key errors do not say which reference failed.
func (r *Repository) checkContentRefs(ctx context.Context, content *catalog.Content) error {
	for _, id := range content.MetadataIDs {
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM metadata WHERE id = ?`, id.String()).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.ErrMetadataNotFound
		}
		if err != nil {
			return handleSQLiteError("check content metadata", err, nil)
		}
	}
	return nil
}

func dateArg(d *catalog.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseDate(s sql.NullString) *catalog.Date {
	if !s.Valid || s.String == "" {
		return nil
	}
	d, err := catalog.ParseDate(s.String)
	if err != nil {
		return nil
	}
	return &d
}

func contentArgs(c *catalog.Content) []any {
	var createdBy any
	if c.CreatedBy != nil {
		createdBy = c.CreatedBy.String()
	}
	var fileSize any
	if c.FileSize != nil {
		fileSize = *c.FileSize
	}
	return []any{
		c.ID.String(), c.ContentFile, c.StorageBackend, c.FileName, fileSize, c.Hash, c.MimeType,
		c.Title, c.Description, c.CopyrightNotes, c.RightsStatement, c.AdditionalNotes, c.OriginalSource,
		createdBy, dateArg(c.CreatedOn), c.ModifiedBy, dateArg(c.ModifiedOn), c.ReviewedBy, dateArg(c.ReviewedOn), string(c.Status),
		c.CopyrightApproved, c.CopyrightBy, dateArg(c.CopyrightOn), c.CopyrightSite, dateArg(c.PublishedDate), c.Active,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContent(row scanner) (*catalog.Content, error) {
	var (
		c                                                    catalog.Content
		status                                               string
		createdBy                                            sql.NullString
		fileSize                                             sql.NullFloat64
		createdOn, modifiedOn, reviewedOn, copyrightOn, pubd sql.NullString
		username, email, userCreated, userUpdated            sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.ContentFile, &c.StorageBackend, &c.FileName, &fileSize, &c.Hash, &c.MimeType,
		&c.Title, &c.Description, &c.CopyrightNotes, &c.RightsStatement, &c.AdditionalNotes, &c.OriginalSource,
		&createdBy, &createdOn, &c.ModifiedBy, &modifiedOn, &c.ReviewedBy, &reviewedOn, &status,
		&c.CopyrightApproved, &c.CopyrightBy, &copyrightOn, &c.CopyrightSite, &pubd, &c.Active,
		&username, &email, &userCreated, &userUpdated)
	if err != nil {
		return nil, err
	}
	c.Status = catalog.WorkflowStatus(status)
	if fileSize.Valid {
		size := fileSize.Float64
		c.FileSize = &size
	}
	c.CreatedOn = parseDate(createdOn)
	c.ModifiedOn = parseDate(modifiedOn)
	c.ReviewedOn = parseDate(reviewedOn)
	c.CopyrightOn = parseDate(copyrightOn)
	c.PublishedDate = parseDate(pubd)

	if createdBy.Valid {
		id, err := uuid.Parse(createdBy.String)
		if err != nil {
			return nil, fmt.Errorf("invalid created_by %q: %w", createdBy.String, err)
		}
		c.CreatedBy = &id
		if username.Valid {
			c.Creator = &catalog.User{ID: id, Username: username.String, Email: email.String}
			c.Creator.CreatedAt, _ = time.Parse(timestampLayout, userCreated.String)
			c.Creator.UpdatedAt, _ = time.Parse(timestampLayout, userUpdated.String)
		}
	}
	return &c, nil
}

func (r *Repository) loadMetadataIDs(ctx context.Context, content *catalog.Content) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT metadata_id FROM content_metadata WHERE content_id = ? ORDER BY position`, content.ID.String())
	if err != nil {
		return handleSQLiteError("load content metadata", err, nil)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return handleSQLiteError("load content metadata", err, nil)
		}
		ids = append(ids, id)
	}
	content.MetadataIDs = ids
	return rows.Err()
}

func replaceMetadataLinks(ctx context.Context, db DBTX, content *catalog.Content) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM content_metadata WHERE content_id = ?`, content.ID.String()); err != nil {
		return handleSQLiteError("replace content metadata", err, nil)
	}
	for i, id := range content.MetadataIDs {
		_, err := db.ExecContext(ctx,
			`INSERT INTO content_metadata (content_id, metadata_id, position) VALUES (?, ?, ?)`,
			content.ID.String(), id.String(), i)
		if err != nil {
			return handleSQLiteError("replace content metadata", err, catalog.ErrMetadataNotFound)
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

	if f.Search != "" {
		p := "%" + escapeLike(f.Search) + "%"
		clauses = append(clauses, `(c.title LIKE ? ESCAPE '\' OR c.description LIKE ? ESCAPE '\')`)
		args = append(args, p, p)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		clauses = append(clauses, "c.status IN ("+strings.Join(marks, ", ")+")")
	}
	if f.Active != nil {
		clauses = append(clauses, "c.active = ?")
		args = append(args, *f.Active)
	}
	if f.CreatedBy != nil {
		clauses = append(clauses, "c.created_by = ?")
		args = append(args, f.CreatedBy.String())
	}
	for _, id := range f.MetadataIDs {
		clauses = append(clauses,
			"EXISTS (SELECT 1 FROM content_metadata cm WHERE cm.content_id = c.id AND cm.metadata_id = ?)")
		args = append(args, id.String())
	}
	if f.PublishedFrom != nil {
		clauses = append(clauses, "c.published_date IS NOT NULL AND CAST(substr(c.published_date, 1, 4) AS INTEGER) >= ?")
		args = append(args, *f.PublishedFrom)
	}
	if f.PublishedTo != nil {
		clauses = append(clauses, "c.published_date IS NOT NULL AND CAST(substr(c.published_date, 1, 4) AS INTEGER) <= ?")
		args = append(args, *f.PublishedTo)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
