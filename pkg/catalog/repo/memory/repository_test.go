package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-catalog/pkg/catalog"
	"github.com/tendant/content-catalog/pkg/catalog/repo/memory"
)

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

func TestMemoryRepository_ContentOperations(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		content := newContent("Harbor at dusk", "harbor.jpg")
		require.NoError(t, repo.CreateContent(ctx, content))

		retrieved, err := repo.GetContent(ctx, content.ID)
		require.NoError(t, err)
		assert.Equal(t, content.Title, retrieved.Title)
		assert.Equal(t, "harbor.jpg", retrieved.FileName)

		byName, err := repo.GetContentByFileName(ctx, "harbor.jpg")
		require.NoError(t, err)
		assert.Equal(t, content.ID, byName.ID)
	})

	t.Run("GetContent_NotFound", func(t *testing.T) {
		content, err := repo.GetContent(ctx, uuid.New())
		assert.Nil(t, content)
		assert.ErrorIs(t, err, catalog.ErrContentNotFound)
	})

	t.Run("DuplicateFileName", func(t *testing.T) {
		require.NoError(t, repo.CreateContent(ctx, newContent("one", "dup.txt")))
		err := repo.CreateContent(ctx, newContent("two", "dup.txt"))
		assert.ErrorIs(t, err, catalog.ErrDuplicateFileName)
	})

	t.Run("EmptyFileNamesDoNotCollide", func(t *testing.T) {
		require.NoError(t, repo.CreateContent(ctx, newContent("no file a", "")))
		require.NoError(t, repo.CreateContent(ctx, newContent("no file b", "")))
	})

	t.Run("UpdateReleasesOldFileName", func(t *testing.T) {
		content := newContent("rename me", "before.txt")
		require.NoError(t, repo.CreateContent(ctx, content))

		content.FileName = "after.txt"
		require.NoError(t, repo.UpdateContent(ctx, content))

		_, err := repo.GetContentByFileName(ctx, "before.txt")
		assert.ErrorIs(t, err, catalog.ErrContentNotFound)
		require.NoError(t, repo.CreateContent(ctx, newContent("reuse", "before.txt")))
	})

	t.Run("ReturnedCopiesAreIsolated", func(t *testing.T) {
		content := newContent("isolated", "isolated.txt")
		require.NoError(t, repo.CreateContent(ctx, content))

		content.Title = "mutated after create"
		retrieved, err := repo.GetContent(ctx, content.ID)
		require.NoError(t, err)
		assert.Equal(t, "isolated", retrieved.Title)

		retrieved.Title = "mutated after get"
		again, err := repo.GetContent(ctx, content.ID)
		require.NoError(t, err)
		assert.Equal(t, "isolated", again.Title)
	})
}

func TestMemoryRepository_ListContent(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	mt := &catalog.MetadataType{ID: uuid.New(), Name: "Location"}
	require.NoError(t, repo.CreateMetadataType(ctx, mt))
	boston := &catalog.Metadata{ID: uuid.New(), Name: "Boston", TypeID: mt.ID}
	require.NoError(t, repo.CreateMetadata(ctx, boston))

	older, err := catalog.ParseDate("2020-01-01")
	require.NoError(t, err)
	published, err := catalog.ParseDate("1999-06-15")
	require.NoError(t, err)

	a := newContent("Alpha", "a.txt")
	a.MetadataIDs = []uuid.UUID{boston.ID}
	a.PublishedDate = &published
	b := newContent("Beta", "b.txt")
	b.Status = catalog.StatusApproved
	c := newContent("Gamma", "c.txt")
	c.CreatedOn = &older
	c.Active = false
	for _, content := range []*catalog.Content{a, b, c} {
		require.NoError(t, repo.CreateContent(ctx, content))
	}

	t.Run("OrderedByCreatedOnThenTitle", func(t *testing.T) {
		all, err := repo.ListContent(ctx, catalog.ContentFilters{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "Alpha", all[0].Title)
		assert.Equal(t, "Beta", all[1].Title)
		assert.Equal(t, "Gamma", all[2].Title)
	})

	t.Run("Filters", func(t *testing.T) {
		inactive := false
		got, err := repo.ListContent(ctx, catalog.ContentFilters{Active: &inactive})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, c.ID, got[0].ID)

		got, err = repo.ListContent(ctx, catalog.ContentFilters{Statuses: []catalog.WorkflowStatus{catalog.StatusApproved}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, b.ID, got[0].ID)

		got, err = repo.ListContent(ctx, catalog.ContentFilters{MetadataIDs: []uuid.UUID{boston.ID}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, a.ID, got[0].ID)

		from, to := 1990, 2000
		got, err = repo.ListContent(ctx, catalog.ContentFilters{PublishedFrom: &from, PublishedTo: &to})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, a.ID, got[0].ID)

		got, err = repo.ListContent(ctx, catalog.ContentFilters{Search: "gAm"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, c.ID, got[0].ID)
	})

	t.Run("Pagination", func(t *testing.T) {
		got, err := repo.ListContent(ctx, catalog.ContentFilters{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Beta", got[0].Title)

		got, err = repo.ListContent(ctx, catalog.ContentFilters{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Count", func(t *testing.T) {
		count, err := repo.CountContent(ctx, catalog.ContentFilters{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})
}

func TestMemoryRepository_MetadataCascade(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	mt := &catalog.MetadataType{ID: uuid.New(), Name: "Subject"}
	require.NoError(t, repo.CreateMetadataType(ctx, mt))
	err := repo.CreateMetadataType(ctx, &catalog.MetadataType{ID: uuid.New(), Name: "Subject"})
	assert.ErrorIs(t, err, catalog.ErrDuplicateMetadataTypeName)

	tag := &catalog.Metadata{ID: uuid.New(), Name: "Ships", TypeID: mt.ID}
	require.NoError(t, repo.CreateMetadata(ctx, tag))

	got, err := repo.GetMetadata(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, "Subject", got.TypeName)

	content := newContent("Tagged", "tagged.txt")
	content.MetadataIDs = []uuid.UUID{tag.ID}
	require.NoError(t, repo.CreateContent(ctx, content))

	require.NoError(t, repo.DeleteMetadataType(ctx, mt.ID))

	_, err = repo.GetMetadata(ctx, tag.ID)
	assert.ErrorIs(t, err, catalog.ErrMetadataNotFound)

	reloaded, err := repo.GetContent(ctx, content.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.MetadataIDs)
}

func TestMemoryRepository_DuplicateMetadataAccepted(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	mt := &catalog.MetadataType{ID: uuid.New(), Name: "Location"}
	require.NoError(t, repo.CreateMetadataType(ctx, mt))

	require.NoError(t, repo.CreateMetadata(ctx, &catalog.Metadata{ID: uuid.New(), Name: "Boston", TypeID: mt.ID}))
	require.NoError(t, repo.CreateMetadata(ctx, &catalog.Metadata{ID: uuid.New(), Name: "Boston", TypeID: mt.ID}))

	all, err := repo.ListMetadata(ctx, &mt.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryRepository_Users(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	user := &catalog.User{ID: uuid.New(), Username: "archivist"}
	require.NoError(t, repo.CreateUser(ctx, user))
	require.NoError(t, repo.CreateProfile(ctx, &catalog.Profile{ID: uuid.New(), UserID: user.ID}))

	err := repo.CreateUser(ctx, &catalog.User{ID: uuid.New(), Username: "archivist"})
	assert.ErrorIs(t, err, catalog.ErrDuplicateUsername)

	err = repo.CreateProfile(ctx, &catalog.Profile{ID: uuid.New(), UserID: user.ID})
	assert.ErrorIs(t, err, catalog.ErrDuplicateProfile)

	content := newContent("Owned", "owned.txt")
	content.CreatedBy = &user.ID
	require.NoError(t, repo.CreateContent(ctx, content))

	owned, err := repo.GetContent(ctx, content.ID)
	require.NoError(t, err)
	assert.Equal(t, "archivist", owned.CreatedByName())

	require.NoError(t, repo.DeleteUser(ctx, user.ID))

	_, err = repo.GetProfileByUserID(ctx, user.ID)
	assert.ErrorIs(t, err, catalog.ErrProfileNotFound)

	orphan, err := repo.GetContent(ctx, content.ID)
	require.NoError(t, err)
	assert.Nil(t, orphan.CreatedBy)
	assert.Equal(t, "", orphan.CreatedByName())
}

func TestMemoryRepository_WithTx(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	t.Run("RollbackOnError", func(t *testing.T) {
		user := &catalog.User{ID: uuid.New(), Username: "ghost"}
		boom := errors.New("boom")

		err := repo.WithTx(ctx, func(ctx context.Context, tx catalog.Repository) error {
			require.NoError(t, tx.CreateUser(ctx, user))
			_, err := tx.GetUser(ctx, user.ID)
			require.NoError(t, err)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = repo.GetUser(ctx, user.ID)
		assert.ErrorIs(t, err, catalog.ErrUserNotFound)
	})

	t.Run("CommitOnSuccess", func(t *testing.T) {
		user := &catalog.User{ID: uuid.New(), Username: "keeper"}
		err := repo.WithTx(ctx, func(ctx context.Context, tx catalog.Repository) error {
			if err := tx.CreateUser(ctx, user); err != nil {
				return err
			}
			return tx.CreateProfile(ctx, &catalog.Profile{ID: uuid.New(), UserID: user.ID})
		})
		require.NoError(t, err)

		_, err = repo.GetProfileByUserID(ctx, user.ID)
		assert.NoError(t, err)
	})
}
