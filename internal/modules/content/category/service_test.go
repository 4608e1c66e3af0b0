package category

import (
	"context"
	"testing"

	"github.com/mx-space/press/internal/models"
	"github.com/mx-space/press/internal/modules/content/slug"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() (*Service, *datastore.Memory[models.ArticleModel]) {
	cats := datastore.NewMemory[models.CategoryModel]()
	articles := datastore.NewMemory[models.ArticleModel]()
	slugs := slug.NewResolver(map[slug.Kind]slug.Finder{
		slug.KindCategory: slug.FromRepository[models.CategoryModel](cats),
	})
	return NewService(cats, articles, slugs), articles
}

func TestCreateDerivesURL(t *testing.T) {
	svc, _ := newService()
	cat, err := svc.Create(context.Background(), &CreateCategoryDTO{Category: "Travel Notes"})
	require.NoError(t, err)
	assert.Equal(t, "travel-notes", cat.URL)

	got, err := svc.GetBySlug(context.Background(), "Travel Notes")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cat.ID, got.ID)
}

func TestCreateRejectsDuplicateURL(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	_, err := svc.Create(ctx, &CreateCategoryDTO{Category: "Go", URL: "go"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, &CreateCategoryDTO{Category: "Golang", URL: "GO"})
	fields, ok := validation.As(err)
	require.True(t, ok)
	assert.Equal(t, slug.DuplicateMessage, fields["url"])
}

func TestUpdateKeepsOwnURL(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	cat, err := svc.Create(ctx, &CreateCategoryDTO{Category: "Go"})
	require.NoError(t, err)

	url, desc := "go", "All things Go"
	updated, err := svc.Update(ctx, cat.ID, &UpdateCategoryDTO{URL: &url, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)

	missing, err := svc.Update(ctx, "nope", &UpdateCategoryDTO{Description: &desc})
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeleteDetachesArticles(t *testing.T) {
	ctx := context.Background()
	svc, articles := newService()
	cat, err := svc.Create(ctx, &CreateCategoryDTO{Category: "Go"})
	require.NoError(t, err)

	a := &models.ArticleModel{Title: "t", URL: "t", CategoryID: &cat.ID}
	require.NoError(t, articles.Create(ctx, a))

	require.NoError(t, svc.Delete(ctx, cat.ID))
	got, err := articles.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)

	assert.ErrorIs(t, svc.Delete(ctx, cat.ID), datastore.ErrNotFound)
}
