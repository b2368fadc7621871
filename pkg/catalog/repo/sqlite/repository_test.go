package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-catalog/pkg/catalog"
	"github.com/tendant/content-catalog/pkg/catalog/repo/sqlite"
)

func setupRepo(t *testing.T) catalog.Repository {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlite.New(db)
}

func newContent(title, fileName string) *catalog.Content {
	return &catalog.Content{
		ID:        uuid.New(),
		Title:     title,
		FileName:  fileName,
		Status:    catalog.StatusReview,
		CreatedOn: catalog.Today(),
		Active:    true,
	}
}

func TestSQLiteRepository_Content(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	user := &catalog.User{ID: uuid.New(), Username: "archivist"}
	require.NoError(t, repo.CreateUser(ctx, user))

	mt := &catalog.MetadataType{ID: uuid.New(), Name: "Location"}
	require.NoError(t, repo.CreateMetadataType(ctx, mt))
	boston := &catalog.Metadata{ID: uuid.New(), Name: "Boston", TypeID: mt.ID}
	require.NoError(t, repo.CreateMetadata(ctx, boston))

	size := 42.0
	published, err := catalog.ParseDate("1999-06-15")
	require.NoError(t, err)

	content := newContent("Harbor", "harbor.jpg")
	content.FileSize = &size
	content.Hash = "abc"
	content.CreatedBy = &user.ID
	content.PublishedDate = &published
	content.MetadataIDs = []uuid.UUID{boston.ID}
	require.NoError(t, repo.CreateContent(ctx, content))

	t.Run("RoundTrip", func(t *testing.T) {
		got, err := repo.GetContent(ctx, content.ID)
		require.NoError(t, err)
		assert.Equal(t, "Harbor", got.Title)
		assert.Equal(t, 42.0, *got.FileSize)
		assert.Equal(t, "archivist", got.CreatedByName())
		assert.Equal(t, "1999", *got.PublishedYear())
		assert.Equal(t, []uuid.UUID{boston.ID}, got.MetadataIDs)
		assert.True(t, got.Active)
		assert.Equal(t, catalog.StatusReview, got.Status)

		byName, err := repo.GetContentByFileName(ctx, "harbor.jpg")
		require.NoError(t, err)
		assert.Equal(t, content.ID, byName.ID)
	})

	t.Run("DuplicateFileName", func(t *testing.T) {
		err := repo.CreateContent(ctx, newContent("again", "harbor.jpg"))
		assert.ErrorIs(t, err, catalog.ErrDuplicateFileName)
		assert.True(t, catalog.IsValidation(err))
	})

	t.Run("EmptyFileNamesDoNotCollide", func(t *testing.T) {
		require.NoError(t, repo.CreateContent(ctx, newContent("a", "")))
		require.NoError(t, repo.CreateContent(ctx, newContent("b", "")))
	})

	t.Run("UnknownMetadata", func(t *testing.T) {
		c := newContent("bad tag", "bad-tag.txt")
		c.MetadataIDs = []uuid.UUID{uuid.New()}
		assert.ErrorIs(t, repo.CreateContent(ctx, c), catalog.ErrMetadataNotFound)
		_, err := repo.GetContent(ctx, c.ID)
		assert.ErrorIs(t, err, catalog.ErrContentNotFound)
	})

	t.Run("Filters", func(t *testing.T) {
		from, to := 1990, 2000
		got, err := repo.ListContent(ctx, catalog.ContentFilters{PublishedFrom: &from, PublishedTo: &to})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, content.ID, got[0].ID)

		got, err = repo.ListContent(ctx, catalog.ContentFilters{MetadataIDs: []uuid.UUID{boston.ID}})
		require.NoError(t, err)
		require.Len(t, got, 1)

		got, err = repo.ListContent(ctx, catalog.ContentFilters{Search: "HARB"})
		require.NoError(t, err)
		require.Len(t, got, 1)

		for _, search := range []string{"_", "%", "H_rbor", `\`} {
			count, err := repo.CountContent(ctx, catalog.ContentFilters{Search: search})
			require.NoError(t, err)
			assert.Zero(t, count, search)
		}

		count, err := repo.CountContent(ctx, catalog.ContentFilters{CreatedBy: &user.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		page, err := repo.ListContent(ctx, catalog.ContentFilters{Offset: 1})
		require.NoError(t, err)
		assert.Len(t, page, 2)
	})

	t.Run("DeleteMetadataUnlinks", func(t *testing.T) {
		require.NoError(t, repo.DeleteMetadata(ctx, boston.ID))
		got, err := repo.GetContent(ctx, content.ID)
		require.NoError(t, err)
		assert.Empty(t, got.MetadataIDs)
	})

	t.Run("DeleteUserClearsCreator", func(t *testing.T) {
		require.NoError(t, repo.DeleteUser(ctx, user.ID))
		got, err := repo.GetContent(ctx, content.ID)
		require.NoError(t, err)
		assert.Nil(t, got.CreatedBy)
		assert.Equal(t, "", got.CreatedByName())
	})
}

func TestSQLiteRepository_ColumnDefaults(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	id := uuid.New()
	_, err = db.ExecContext(ctx, `INSERT INTO content (id, title) VALUES (?, ?)`, id.String(), "bare row")
	require.NoError(t, err)

	got, err := sqlite.New(db).GetContent(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.CopyrightApproved)
	assert.True(t, got.Active)
	assert.Equal(t, catalog.StatusReview, got.Status)
}

func TestSQLiteRepository_UsersAndProfiles(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	user := &catalog.User{ID: uuid.New(), Username: "keeper", Email: "k@example.com"}
	require.NoError(t, repo.CreateUser(ctx, user))
	require.NoError(t, repo.CreateProfile(ctx, &catalog.Profile{ID: uuid.New(), UserID: user.ID}))

	assert.ErrorIs(t, repo.CreateUser(ctx, &catalog.User{ID: uuid.New(), Username: "keeper"}), catalog.ErrDuplicateUsername)
	assert.ErrorIs(t, repo.CreateProfile(ctx, &catalog.Profile{ID: uuid.New(), UserID: user.ID}), catalog.ErrDuplicateProfile)
	assert.ErrorIs(t, repo.CreateProfile(ctx, &catalog.Profile{ID: uuid.New(), UserID: uuid.New()}), catalog.ErrUserNotFound)

	got, err := repo.GetUserByUsername(ctx, "keeper")
	require.NoError(t, err)
	assert.Equal(t, "k@example.com", got.Email)

	profile, err := repo.GetProfileByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, profile.UserID)

	require.NoError(t, repo.DeleteUser(ctx, user.ID))
	_, err = repo.GetProfileByUserID(ctx, user.ID)
	assert.ErrorIs(t, err, catalog.ErrProfileNotFound)
}

func TestSQLiteRepository_MetadataTypes(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	mt := &catalog.MetadataType{ID: uuid.New(), Name: "Subject"}
	require.NoError(t, repo.CreateMetadataType(ctx, mt))
	assert.ErrorIs(t, repo.CreateMetadataType(ctx, &catalog.MetadataType{ID: uuid.New(), Name: "Subject"}), catalog.ErrDuplicateMetadataTypeName)

	require.NoError(t, repo.CreateMetadata(ctx, &catalog.Metadata{ID: uuid.New(), Name: "Ships", TypeID: mt.ID}))
	require.NoError(t, repo.CreateMetadata(ctx, &catalog.Metadata{ID: uuid.New(), Name: "Ships", TypeID: mt.ID}))
	assert.ErrorIs(t, repo.CreateMetadata(ctx, &catalog.Metadata{ID: uuid.New(), Name: "x", TypeID: uuid.New()}), catalog.ErrMetadataTypeNotFound)

	tags, err := repo.ListMetadata(ctx, &mt.ID)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "Subject", tags[0].TypeName)

	mt.Name = "Topic"
	require.NoError(t, repo.UpdateMetadataType(ctx, mt))
	renamed, err := repo.GetMetadataType(ctx, mt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Topic", renamed.Name)

	require.NoError(t, repo.DeleteMetadataType(ctx, mt.ID))
	tags, err = repo.ListMetadata(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestSQLiteRepository_WithTx(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	boom := errors.New("boom")
	user := &catalog.User{ID: uuid.New(), Username: "ghost"}
	err := repo.WithTx(ctx, func(ctx context.Context, tx catalog.Repository) error {
		require.NoError(t, tx.CreateUser(ctx, user))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, err = repo.GetUser(ctx, user.ID)
	assert.ErrorIs(t, err, catalog.ErrUserNotFound)

	t.Run("ConcurrentSameFileName", func(t *testing.T) {
		const workers = 6
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = repo.WithTx(ctx, func(ctx context.Context, tx catalog.Repository) error {
					if _, err := tx.GetContentByFileName(ctx, "same.txt"); err == nil {
						return catalog.DuplicateFileNameError()
					}
					return tx.CreateContent(ctx, newContent("c", "same.txt"))
				})
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, catalog.ErrDuplicateFileName)
		}
		assert.Equal(t, 1, ok)
	})
}
