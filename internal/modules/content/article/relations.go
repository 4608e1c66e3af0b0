package article

import (
	"context"
	"errors"
	"time"

	"github.com/mx-space/press/internal/models"
	"github.com/mx-space/press/internal/pkg/datastore"
)

// relations composes views, remembering categories, tags and images already
// loaded so a list touches each related row once.
type relations struct {
	s          *Service
	categories map[string]*models.CategoryModel
	tags       map[string]*models.TagModel
	images     map[string]*FeaturedImage
}

func (s *Service) newRelations() *relations {
	return &relations{
		s:          s,
		categories: map[string]*models.CategoryModel{},
		tags:       map[string]*models.TagModel{},
		images:     map[string]*FeaturedImage{},
	}
}

func (r *relations) view(ctx context.Context, row models.ArticleModel, now time.Time) (View, error) {
	v := View{ArticleModel: row, Status: StatusOf(row, now), Tags: []models.TagModel{}}

	if row.CategoryID != nil {
		cat, err := r.category(ctx, *row.CategoryID)
		if err != nil {
			return View{}, err
		}
		v.Category = cat
	}
	if row.FeaturedImageID != nil {
		img, err := r.image(ctx, *row.FeaturedImageID)
		if err != nil {
			return View{}, err
		}
		v.FeaturedImage = img
	}

	tagIDs, err := r.s.edges.Tags(ctx, row.ID)
	if err != nil {
		return View{}, err
	}
	for _, id := range tagIDs {
		t, err := r.tag(ctx, id)
		if err != nil {
			return View{}, err
		}
		if t != nil {
			v.Tags = append(v.Tags, *t)
		}
	}
	return v, nil
}

// Dangling references resolve to nil rather than failing the whole view.
func (r *relations) category(ctx context.Context, id string) (*models.CategoryModel, error) {
	if c, ok := r.categories[id]; ok {
		return c, nil
	}
	c, err := r.s.repos.Categories.Get(ctx, id)
	if err != nil && !errors.Is(err, datastore.ErrNotFound) {
		return nil, err
	}
	r.categories[id] = c
	return c, nil
}

func (r *relations) tag(ctx context.Context, id string) (*models.TagModel, error) {
	if t, ok := r.tags[id]; ok {
		return t, nil
	}
	t, err := r.s.repos.Tags.Get(ctx, id)
	if err != nil && !errors.Is(err, datastore.ErrNotFound) {
		return nil, err
	}
	r.tags[id] = t
	return t, nil
}

func (r *relations) image(ctx context.Context, id string) (*FeaturedImage, error) {
	if img, ok := r.images[id]; ok {
		return img, nil
	}
	row, err := r.s.repos.Images.Get(ctx, id)
	if errors.Is(err, datastore.ErrNotFound) {
		r.images[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	img := &FeaturedImage{ImageModel: *row, URL: r.s.rw.SignKey(ctx, row.Path)}
	r.images[id] = img
	return img, nil
}
