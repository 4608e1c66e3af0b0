package tag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mx-space/press/internal/models"
	"github.com/mx-space/press/internal/modules/content/slug"
	"github.com/mx-space/press/internal/modules/content/tagsync"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/validation"
)

const (
	DefaultNameMax = 50
	descriptionMax = 500
)

type CreateTagDTO struct {
	Tag         string `json:"tag"         binding:"required"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type UpdateTagDTO struct {
	Tag         *string `json:"tag"`
	URL         *string `json:"url"`
	Description *string `json:"description"`
}

type Service struct {
	tags    datastore.Repository[models.TagModel]
	edges   *tagsync.Synchronizer
	slugs   *slug.Resolver
	nameMax int
}

func NewService(tags datastore.Repository[models.TagModel], edges *tagsync.Synchronizer, slugs *slug.Resolver, nameMax int) *Service {
	if nameMax <= 0 {
		nameMax = DefaultNameMax
	}
	return &Service{tags: tags, edges: edges, slugs: slugs, nameMax: nameMax}
}

func (s *Service) List(ctx context.Context) ([]models.TagModel, error) {
	return s.tags.List(ctx, datastore.Query{}.OrderBy("tag", false))
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.TagModel, error) {
	t, err := s.tags.Get(ctx, id)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, nil
	}
	return t, err
}

// GetBySlug returns nil, nil when no tag has the slug.
func (s *Service) GetBySlug(ctx context.Context, value string) (*models.TagModel, error) {
	t, err := slug.Resolve(ctx, s.tags, value)
	if errors.Is(err, slug.ErrNotFound) {
		return nil, nil
	}
	return t, err
}

func (s *Service) Create(ctx context.Context, dto *CreateTagDTO) (*models.TagModel, error) {
	name := strings.TrimSpace(dto.Tag)
	url := dto.URL
	if strings.TrimSpace(url) == "" {
		url = name
	}
	url = slug.Normalize(url)

	errs := validation.Errors{}
	s.checkFields(errs, &name, &dto.Description)
	if err := s.validateURL(ctx, errs, url, ""); err != nil {
		return nil, err
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	t := &models.TagModel{Tag: name, URL: url, Description: strings.TrimSpace(dto.Description)}
	if err := s.tags.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return t, nil
}

// Update returns nil, nil when the tag does not exist.
func (s *Service) Update(ctx context.Context, id string, dto *UpdateTagDTO) (*models.TagModel, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil || t == nil {
		return t, err
	}

	errs := validation.Errors{}
	updates := map[string]any{}
	if dto.Tag != nil {
		name := strings.TrimSpace(*dto.Tag)
		s.checkFields(errs, &name, nil)
		updates["tag"] = name
	}
	if dto.Description != nil {
		s.checkFields(errs, nil, dto.Description)
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
		return t, nil
	}
	return s.tags.Update(ctx, id, updates)
}

// Delete removes the tag and every article edge pointing at it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.tags.Get(ctx, id); err != nil {
		return err
	}
	if err := s.edges.Detach(ctx, id); err != nil {
		return fmt.Errorf("detach tag %s: %w", id, err)
	}
	return s.tags.Delete(ctx, id)
}

func (s *Service) validateURL(ctx context.Context, errs validation.Errors, url, excludeID string) error {
	err := s.slugs.Validate(ctx, slug.KindTag, url, excludeID)
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

func (s *Service) checkFields(errs validation.Errors, name, description *string) {
	if name != nil {
		switch {
		case *name == "":
			errs.Add("tag", "Tag is required")
		case len([]rune(*name)) > s.nameMax:
			errs.Add("tag", fmt.Sprintf("Tag must be at most %d characters", s.nameMax))
		}
	}
	if description != nil && len([]rune(*description)) > descriptionMax {
		errs.Add("description", fmt.Sprintf("Description must be at most %d characters", descriptionMax))
	}
}
