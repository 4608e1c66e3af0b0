package category

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mx-space/press/internal/models"
	"github.com/mx-space/press/internal/modules/content/slug"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/validation"
)

const (
	nameMax        = 191
	descriptionMax = 500
)

type CreateCategoryDTO struct {
	Category    string `json:"category"    binding:"required"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type UpdateCategoryDTO struct {
	Category    *string `json:"category"`
	URL         *string `json:"url"`
	Description *string `json:"description"`
}

type Service struct {
	categories datastore.Repository[models.CategoryModel]
	articles   datastore.Repository[models.ArticleModel]
	slugs      *slug.Resolver
}

func NewService(categories datastore.Repository[models.CategoryModel], articles datastore.Repository[models.ArticleModel], slugs *slug.Resolver) *Service {
	return &Service{categories: categories, articles: articles, slugs: slugs}
}

func (s *Service) List(ctx context.Context) ([]models.CategoryModel, error) {
	return s.categories.List(ctx, datastore.Query{}.OrderBy("category", false))
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.CategoryModel, error) {
	cat, err := s.categories.Get(ctx, id)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, nil
	}
	return cat, err
}

// GetBySlug returns nil, nil when no category has the slug.
func (s *Service) GetBySlug(ctx context.Context, value string) (*models.CategoryModel, error) {
	cat, err := slug.Resolve(ctx, s.categories, value)
	if errors.Is(err, slug.ErrNotFound) {
		return nil, nil
	}
	return cat, err
}

func (s *Service) Create(ctx context.Context, dto *CreateCategoryDTO) (*models.CategoryModel, error) {
	name := strings.TrimSpace(dto.Category)
	url := dto.URL
	if strings.TrimSpace(url) == "" {
		url = name
	}
	url = slug.Normalize(url)

	errs := validation.Errors{}
	checkFields(errs, &name, &dto.Description)
	if err := s.validateURL(ctx, errs, url, ""); err != nil {
		return nil, err
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	cat := &models.CategoryModel{Category: name, URL: url, Description: strings.TrimSpace(dto.Description)}
	if err := s.categories.Create(ctx, cat); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return cat, nil
}

// Update returns nil, nil when the category does not exist.
func (s *Service) Update(ctx context.Context, id string, dto *UpdateCategoryDTO) (*models.CategoryModel, error) {
	cat, err := s.GetByID(ctx, id)
	if err != nil || cat == nil {
		return cat, err
	}

	errs := validation.Errors{}
	updates := map[string]any{}
	if dto.Category != nil {
		name := strings.TrimSpace(*dto.Category)
		checkFields(errs, &name, nil)
		updates["category"] = name
	}
	if dto.Description != nil {
		checkFields(errs, nil, dto.Description)
		updates["description"] = strings.TrimSpace(*dto.Description)
	}
	if dto.URL != nil {
		url := slug.Normalize(*dto.URL)
		if err := s.validateURL(ctx, errs, url, id); err != nil {
			return nil, err
		}
		updates["url"] = url
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return cat, nil
	}
	return s.categories.Update(ctx, id, updates)
}

// Delete detaches the category from its articles, then removes it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.categories.Get(ctx, id); err != nil {
		return err
	}
	articles, err := s.articles.List(ctx, datastore.Where("category_id", id))
	if err != nil {
		return err
	}
	for _, a := range articles {
		if _, err := s.articles.Update(ctx, a.ID, map[string]any{"category_id": nil}); err != nil {
			return fmt.Errorf("detach article %s: %w", a.ID, err)
		}
	}
	return s.categories.Delete(ctx, id)
}

func (s *Service) validateURL(ctx context.Context, errs validation.Errors, url, excludeID string) error {
	err := s.slugs.Validate(ctx, slug.KindCategory, url, excludeID)
	if err == nil {
		return nil
	}
	if fields, ok := validation.As(err); ok {
		for k, v := range fields {
			errs.Add(k, v)
		}
		return nil
	}
	return err
}

func checkFields(errs validation.Errors, name, description *string) {
	if name != nil {
		switch {
		case *name == "":
			errs.Add("category", "Category name is required")
		case len([]rune(*name)) > nameMax:
			errs.Add("category", fmt.Sprintf("Category name must be at most %d characters", nameMax))
		}
	}
	if description != nil && len([]rune(*description)) > descriptionMax {
		errs.Add("description", fmt.Sprintf("Description must be at most %d characters", descriptionMax))
	}
}
