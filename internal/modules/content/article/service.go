package article

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mx-space/press/internal/models"
	"github.com/mx-space/press/internal/modules/content/render"
	"github.com/mx-space/press/internal/modules/content/rewrite"
	"github.com/mx-space/press/internal/modules/content/slug"
	"github.com/mx-space/press/internal/modules/content/tagsync"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/validation"
	"go.uber.org/zap"
)

// Repos groups the collections the article service reads and writes.
type Repos struct {
	Articles   datastore.Repository[models.ArticleModel]
	Categories datastore.Repository[models.CategoryModel]
	Tags       datastore.Repository[models.TagModel]
	Images     datastore.Repository[models.ImageModel]
}

type Service struct {
	repos  Repos
	edges  *tagsync.Synchronizer
	slugs  *slug.Resolver
	rw     *rewrite.Rewriter
	logger *zap.Logger
	limits Limits
	now    func() time.Time
}

func NewService(repos Repos, edges *tagsync.Synchronizer, slugs *slug.Resolver, rw *rewrite.Rewriter, logger *zap.Logger, limits Limits) *Service {
	def := DefaultLimits()
	if limits.TitleMax <= 0 {
		limits.TitleMax = def.TitleMax
	}
	if limits.DescriptionMax <= 0 {
		limits.DescriptionMax = def.DescriptionMax
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repos: repos, edges: edges, slugs: slugs, rw: rw, logger: logger, limits: limits, now: time.Now}
}

// List returns articles newest first by effective date. Featured images are
// signed; inline content is left canonical.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]View, error) {
	rows, err := s.candidates(ctx, opts)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].EffectiveDate(now).After(rows[j].EffectiveDate(now))
	})
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}

	rel := s.newRelations()
	views := make([]View, 0, len(rows))
	for _, row := range rows {
		v, err := rel.view(ctx, row, now)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) candidates(ctx context.Context, opts ListOptions) ([]models.ArticleModel, error) {
	if opts.TagURL != "" {
		return s.byTag(ctx, opts)
	}

	q := datastore.Query{}
	if opts.PublishedOnly {
		q = q.And("published", true)
	}
	if opts.CategoryURL != "" {
		cat, err := slug.Resolve(ctx, s.repos.Categories, opts.CategoryURL)
		if errors.Is(err, slug.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		q = q.And("category_id", cat.ID)
	}
	return s.repos.Articles.List(ctx, q)
}

// byTag walks the tag's edges and fetches each article; edges pointing at
// missing articles are skipped.
func (s *Service) byTag(ctx context.Context, opts ListOptions) ([]models.ArticleModel, error) {
	tag, err := slug.Resolve(ctx, s.repos.Tags, opts.TagURL)
	if errors.Is(err, slug.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ids, err := s.edges.Articles(ctx, tag.ID)
	if err != nil {
		return nil, err
	}

	var catID string
	if opts.CategoryURL != "" {
		cat, err := slug.Resolve(ctx, s.repos.Categories, opts.CategoryURL)
		if errors.Is(err, slug.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		catID = cat.ID
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]models.ArticleModel, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		a, err := s.repos.Articles.Get(ctx, id)
		if errors.Is(err, datastore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if opts.PublishedOnly && !a.Published {
			continue
		}
		if catID != "" && (a.CategoryID == nil || *a.CategoryID != catID) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

// GetForEdit returns the article with inline images and the featured image
// signed, ready for the editor. It returns nil, nil when the id is unknown.
func (s *Service) GetForEdit(ctx context.Context, id string) (*View, error) {
	row, err := s.repos.Articles.Get(ctx, id)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v, err := s.newRelations().view(ctx, *row, s.now())
	if err != nil {
		return nil, err
	}
	v.Content = s.rw.SignedContent(ctx, row.Content, row.ContentFormat)
	return &v, nil
}

// GetPublic returns the published article at value, rendered to HTML with
// images signed. Unknown and unpublished slugs both give nil, nil.
func (s *Service) GetPublic(ctx context.Context, value string) (*View, error) {
	row, err := slug.Resolve(ctx, s.repos.Articles, value)
	if errors.Is(err, slug.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !row.Published {
		return nil, nil
	}
	v, err := s.newRelations().view(ctx, *row, s.now())
	if err != nil {
		return nil, err
	}
	v.Content = s.rw.ToSigned(ctx, render.HTML(row.Content, row.ContentFormat))
	v.ContentFormat = models.ContentFormatHTML
	return &v, nil
}

// Create validates dto, stores the article with canonical content and links its
// tags. The returned view is re-read from the store.
func (s *Service) Create(ctx context.Context, dto *ArticleDTO) (*View, error) {
	url, err := s.validate(ctx, dto, "")
	if err != nil {
		return nil, err
	}

	updated := s.now()
	if dto.Updated != nil && !dto.Updated.IsZero() {
		updated = *dto.Updated
	}
	row := &models.ArticleModel{
		Title:           strings.TrimSpace(dto.Title),
		Description:     strings.TrimSpace(dto.Description),
		URL:             url,
		Content:         s.rw.CanonicalContent(dto.Content, formatOf(dto.ContentFormat)),
		ContentFormat:   formatOf(dto.ContentFormat),
		Published:       dto.Published,
		Updated:         &updated,
		CategoryID:      optionalID(dto.CategoryID),
		FeaturedImageID: optionalID(dto.FeaturedImageID),
	}
	if err := s.repos.Articles.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("create article: %w", err)
	}
	if err := s.edges.Sync(ctx, row.ID, dto.Tags, false); err != nil {
		return nil, fmt.Errorf("save tags of article %s: %w", row.ID, err)
	}
	return s.GetForEdit(ctx, row.ID)
}

// Update replaces the editable state of article id. Autosave goes through here
// with Published false. It returns nil, nil when the id is unknown.
func (s *Service) Update(ctx context.Context, id string, dto *ArticleDTO) (*View, error) {
	current, err := s.repos.Articles.Get(ctx, id)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	url, err := s.validate(ctx, dto, id)
	if err != nil {
		return nil, err
	}

	updated := current.Updated
	if dto.Updated != nil && !dto.Updated.IsZero() {
		updated = dto.Updated
	}
	if updated == nil {
		now := s.now()
		updated = &now
	}
	fields := map[string]any{
		"title":             strings.TrimSpace(dto.Title),
		"description":       strings.TrimSpace(dto.Description),
		"url":               url,
		"content":           s.rw.CanonicalContent(dto.Content, formatOf(dto.ContentFormat)),
		"content_format":    formatOf(dto.ContentFormat),
		"published":         dto.Published,
		"updated":           *updated,
		"category_id":       optionalID(dto.CategoryID),
		"featured_image_id": optionalID(dto.FeaturedImageID),
	}
	if _, err := s.repos.Articles.Update(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("update article %s: %w", id, err)
	}
	if err := s.edges.Sync(ctx, id, dto.Tags, true); err != nil {
		return nil, fmt.Errorf("save tags of article %s: %w", id, err)
	}
	return s.GetForEdit(ctx, id)
}

// Delete removes the article's tag edges, then the article.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repos.Articles.Get(ctx, id); err != nil {
		return err
	}
	if err := s.edges.Clear(ctx, id); err != nil {
		return fmt.Errorf("clear tags of article %s: %w", id, err)
	}
	return s.repos.Articles.Delete(ctx, id)
}

// validate checks dto for an article with id excludeID ("" when new) and returns
// the normalized url. All field problems are reported together.
func (s *Service) validate(ctx context.Context, dto *ArticleDTO, excludeID string) (string, error) {
	errs := validation.Errors{}

	title := strings.TrimSpace(dto.Title)
	switch {
	case title == "":
		errs.Add("title", "Title is required")
	case len([]rune(title)) > s.limits.TitleMax:
		errs.Add("title", fmt.Sprintf("Title must be %d characters or less", s.limits.TitleMax))
	}
	if len([]rune(strings.TrimSpace(dto.Description))) > s.limits.DescriptionMax {
		errs.Add("description", fmt.Sprintf("Description must be %d characters or less", s.limits.DescriptionMax))
	}

	candidate := dto.URL
	if strings.TrimSpace(candidate) == "" {
		candidate = title
	}
	url := slug.Normalize(candidate)
	if err := s.slugs.Validate(ctx, slug.KindArticle, url, excludeID); err != nil {
		fields, ok := validation.As(err)
		if !ok {
			return "", err
		}
		for k, v := range fields {
			errs.Add(k, v)
		}
	}

	if id := optionalID(dto.CategoryID); id != nil {
		if err := exists(ctx, s.repos.Categories, *id); err != nil {
			if !errors.Is(err, datastore.ErrNotFound) {
				return "", err
			}
			errs.Add("categoryId", "Category does not exist")
		}
	}
	if id := optionalID(dto.FeaturedImageID); id != nil {
		if err := exists(ctx, s.repos.Images, *id); err != nil {
			if !errors.Is(err, datastore.ErrNotFound) {
				return "", err
			}
			errs.Add("featuredImageId", "Image does not exist")
		}
	}
	if err := s.edges.CheckTags(ctx, dto.Tags); err != nil {
		fields, ok := validation.As(err)
		if !ok {
			return "", err
		}
		for k, v := range fields {
			errs.Add(k, v)
		}
	}

	return url, errs.Err()
}

func exists[T any](ctx context.Context, repo datastore.Repository[T], id string) error {
	_, err := repo.Get(ctx, id)
	return err
}

func optionalID(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	v := strings.TrimSpace(*id)
	return &v
}

func formatOf(format string) string {
	if format == models.ContentFormatMarkdown {
		return format
	}
	return models.ContentFormatHTML
}
