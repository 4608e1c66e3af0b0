package image

import (
	"bytes"
	"context"
	"errors"
	stdimage "image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/mx-space/press/internal/models"
	"github.com/mx-space/press/internal/modules/content/rewrite"
	"github.com/mx-space/press/internal/pkg/blob"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingDelete struct{ *blob.Memory }

func (failingDelete) Delete(context.Context, string) error { return errors.New("bucket offline") }

type fixture struct {
	svc      *Service
	store    *blob.Memory
	articles *datastore.Memory[models.ArticleModel]
}

func newFixture(opts Options) fixture {
	store := blob.NewMemory()
	articles := datastore.NewMemory[models.ArticleModel]()
	rw := rewrite.New(store, blob.DefaultMatcher(), nil)
	svc := NewService(datastore.NewMemory[models.ImageModel](), articles, store, rw, nil, opts)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return fixture{svc: svc, store: store, articles: articles}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadImage(t *testing.T) {
	f := newFixture(Options{})
	v, err := f.svc.Upload(context.Background(), UploadInput{
		Filename: "C:\\Users\\me\\my dog.png",
		Data:     pngBytes(t, 4, 3),
		AltText:  " a dog ",
	})
	require.NoError(t, err)

	assert.Equal(t, "public/images/1700000000000-my dog.png", v.Path)
	assert.Equal(t, "image/png", v.ContentType)
	assert.Equal(t, 4, v.Width)
	assert.Equal(t, 3, v.Height)
	assert.Equal(t, "a dog", v.AltText)
	assert.True(t, f.store.Has(v.Path))
	assert.True(t, strings.HasPrefix(v.URL, "https://"+blob.MemoryHost+"/public/images/"))
}

func TestUploadMedia(t *testing.T) {
	f := newFixture(Options{})
	v, err := f.svc.Upload(context.Background(), UploadInput{
		Kind:     models.ImageKindMedia,
		Filename: "cover.PNG",
		Title:    "Trip to Lisbon",
		Data:     pngBytes(t, 2, 2),
	})
	require.NoError(t, err)
	assert.Regexp(t, `^posts/trip-to-lisbon-[0-9a-z]{3}\.png$`, v.Path)
	assert.Equal(t, "Trip to Lisbon", v.Name)
}

func TestUploadKeepsDottedNames(t *testing.T) {
	f := newFixture(Options{})
	v, err := f.svc.Upload(context.Background(), UploadInput{Filename: "photo..png", Data: pngBytes(t, 1, 1)})
	require.NoError(t, err)
	assert.Equal(t, "public/images/1700000000000-photo..png", v.Path)
	assert.True(t, f.store.Has(v.Path))

	_, err = f.svc.Upload(context.Background(), UploadInput{Filename: "..", Data: pngBytes(t, 1, 1)})
	_, ok := validation.As(err)
	assert.True(t, ok)
}

func TestUploadRejects(t *testing.T) {
	f := newFixture(Options{MaxUploadBytes: 16})
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, UploadInput{Filename: "a.png", Data: pngBytes(t, 8, 8)})
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = f.svc.Upload(ctx, UploadInput{Filename: "a.txt", Data: []byte("plain text")})
	fields, ok := validation.As(err)
	require.True(t, ok)
	assert.Contains(t, fields["file"], "text/plain")

	_, err = f.svc.Upload(ctx, UploadInput{Filename: "a.png"})
	_, ok = validation.As(err)
	assert.True(t, ok)
}

func TestDeleteRefusesWhileReferenced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})

	featured, err := f.svc.Upload(ctx, UploadInput{Filename: "f.png", Data: pngBytes(t, 1, 1)})
	require.NoError(t, err)
	inline, err := f.svc.Upload(ctx, UploadInput{Filename: "i.png", Data: pngBytes(t, 1, 1)})
	require.NoError(t, err)

	article := &models.ArticleModel{
		Title:           "t",
		URL:             "t",
		FeaturedImageID: &featured.ID,
		Content:         `<p><img src="` + inline.Path + `"></p>`,
	}
	require.NoError(t, f.articles.Create(ctx, article))

	assert.ErrorIs(t, f.svc.Delete(ctx, featured.ID), ErrInUse)
	assert.ErrorIs(t, f.svc.Delete(ctx, inline.ID), ErrInUse)

	_, err = f.articles.Update(ctx, article.ID, map[string]any{"featured_image_id": nil, "content": "<p>gone</p>"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, featured.ID))
	assert.False(t, f.store.Has(featured.Path))
	assert.ErrorIs(t, f.svc.Delete(ctx, featured.ID), datastore.ErrNotFound)
}

func TestDeleteRefusesWhileReferencedFromMarkdown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})

	img, err := f.svc.Upload(ctx, UploadInput{Filename: "dog.png", Data: pngBytes(t, 1, 1)})
	require.NoError(t, err)
	require.NoError(t, f.articles.Create(ctx, &models.ArticleModel{
		Title:         "md",
		URL:           "md",
		ContentFormat: models.ContentFormatMarkdown,
		Content:       "Look:\n\n![dog](" + img.Path + ")\n",
	}))

	assert.ErrorIs(t, f.svc.Delete(ctx, img.ID), ErrInUse)
	assert.True(t, f.store.Has(img.Path))
}

func TestDeleteSucceedsWhenBlobRemovalFails(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	images := datastore.NewMemory[models.ImageModel]()
	rw := rewrite.New(store, blob.DefaultMatcher(), nil)
	svc := NewService(images, datastore.NewMemory[models.ArticleModel](), failingDelete{store}, rw, nil, Options{})

	v, err := svc.Upload(ctx, UploadInput{Filename: "a.png", Data: pngBytes(t, 1, 1)})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, v.ID))
	_, err = images.Get(ctx, v.ID)
	assert.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestUpdateAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	v, err := f.svc.Upload(ctx, UploadInput{Filename: "a.png", Data: pngBytes(t, 1, 1)})
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, UploadInput{Kind: models.ImageKindMedia, Filename: "b.png", Data: pngBytes(t, 1, 1)})
	require.NoError(t, err)

	caption := "Sunset"
	updated, err := f.svc.Update(ctx, v.ID, &UpdateImageDTO{Caption: &caption})
	require.NoError(t, err)
	assert.Equal(t, "Sunset", updated.Caption)
	assert.Equal(t, v.Path, updated.Path)

	images, err := f.svc.List(ctx, models.ImageKindImage)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.NotEmpty(t, images[0].URL)

	all, err := f.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
