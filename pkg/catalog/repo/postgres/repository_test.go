package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-catalog/pkg/catalog"
)

func TestBuildContentWhere(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		where, args := buildContentWhere(catalog.ContentFilters{})
		assert.Empty(t, where)
		assert.Empty(t, args)
	})

	t.Run("AllFilters", func(t *testing.T) {
		active := true
		creator := uuid.New()
		from, to := 1990, 2000
		where, args := buildContentWhere(catalog.ContentFilters{
			Search:        "harbor",
			Statuses:      []catalog.WorkflowStatus{catalog.StatusApproved},
			Active:        &active,
			CreatedBy:     &creator,
			MetadataIDs:   []uuid.UUID{uuid.New(), uuid.New()},
			PublishedFrom: &from,
			PublishedTo:   &to,
		})
		assert.Contains(t, where, `c.title ILIKE $1 ESCAPE '\' OR c.description ILIKE $1 ESCAPE '\'`)
		assert.Contains(t, where, "c.status = ANY($2)")
		assert.Contains(t, where, "c.active = $3")
		assert.Contains(t, where, "c.created_by = $4")
		assert.Contains(t, where, "cm.metadata_id = $6")
		assert.Contains(t, where, "EXTRACT(YEAR FROM c.published_date) <= $8")
		require.Len(t, args, 8)
		assert.Equal(t, "%harbor%", args[0])
		assert.Equal(t, []string{"Approved"}, args[1])
	})

	t.Run("SearchWildcardsAreLiteral", func(t *testing.T) {
		_, args := buildContentWhere(catalog.ContentFilters{Search: `50%_off\`})
		require.Len(t, args, 1)
		assert.Equal(t, `%50\%\_off\\%`, args[0])
	})
}

func TestHandlePostgresError(t *testing.T) {
	r := &Repository{}
	tests := []struct {
		name   string
		err    *pgconn.PgError
		target error
	}{
		{"file name", &pgconn.PgError{Code: "23505", ConstraintName: "content_file_name_key"}, catalog.ErrDuplicateFileName},
		{"type name", &pgconn.PgError{Code: "23505", ConstraintName: "metadata_type_name_key"}, catalog.ErrDuplicateMetadataTypeName},
		{"username", &pgconn.PgError{Code: "23505", ConstraintName: "app_user_username_key"}, catalog.ErrDuplicateUsername},
		{"profile", &pgconn.PgError{Code: "23505", ConstraintName: "profile_user_id_key"}, catalog.ErrDuplicateProfile},
		{"missing tag", &pgconn.PgError{Code: "23503", ConstraintName: "content_metadata_metadata_id_fkey"}, catalog.ErrMetadataNotFound},
		{"missing type", &pgconn.PgError{Code: "23503", ConstraintName: "metadata_type_id_fkey"}, catalog.ErrMetadataTypeNotFound},
		{"missing user", &pgconn.PgError{Code: "23503", ConstraintName: "content_created_by_fkey"}, catalog.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.handlePostgresError("test", tt.err), tt.target)
		})
	}

	dup := r.handlePostgresError("test", &pgconn.PgError{Code: "23505", ConstraintName: "content_file_name_key"})
	assert.True(t, catalog.IsValidation(dup))
}

// TestRepository_Postgres runs against CATALOG_TEST_DATABASE_URL when set.
func TestRepository_Postgres(t *testing.T) {
	dsn := os.Getenv("CATALOG_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CATALOG_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, Migrate(ctx, pool))

	repo := NewWithPool(pool)
	suffix := uuid.NewString()[:8]

	user := &catalog.User{ID: uuid.New(), Username: "pg-" + suffix}
	require.NoError(t, repo.CreateUser(ctx, user))
	defer repo.DeleteUser(ctx, user.ID)

	mt := &catalog.MetadataType{ID: uuid.New(), Name: "Type " + suffix}
	require.NoError(t, repo.CreateMetadataType(ctx, mt))
	defer repo.DeleteMetadataType(ctx, mt.ID)
	tag := &catalog.Metadata{ID: uuid.New(), Name: "Boston", TypeID: mt.ID}
	require.NoError(t, repo.CreateMetadata(ctx, tag))

	content := &catalog.Content{
		ID:          uuid.New(),
		Title:       "pg content",
		FileName:    "pg-" + suffix + ".txt",
		Status:      catalog.StatusReview,
		CreatedBy:   &user.ID,
		CreatedOn:   catalog.Today(),
		MetadataIDs: []uuid.UUID{tag.ID},
		Active:      true,
	}
	require.NoError(t, repo.CreateContent(ctx, content))

	got, err := repo.GetContent(ctx, content.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, got.CreatedByName())
	assert.Equal(t, []uuid.UUID{tag.ID}, got.MetadataIDs)

	dup := *content
	dup.ID = uuid.New()
	assert.ErrorIs(t, repo.CreateContent(ctx, &dup), catalog.ErrDuplicateFileName)

	require.NoError(t, repo.DeleteMetadata(ctx, tag.ID))
	got, err = repo.GetContent(ctx, content.ID)
	require.NoError(t, err)
	assert.Empty(t, got.MetadataIDs)
}
