package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/mx-space/press/internal/models"
	"github.com/mx-space/press/internal/modules/content/rewrite"
	"github.com/mx-space/press/internal/modules/content/slug"
	"github.com/mx-space/press/internal/pkg/blob"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxUploadBytes int64 = 500 << 20
	DefaultImagePrefix          = "public/images/"
	DefaultMediaPrefix          = "posts/"

	signConcurrency = 8
	base36          = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var (
	ErrInUse    = errors.New("image is used by an article")
	ErrTooLarge = errors.New("file exceeds the upload limit")
)

type Options struct {
	MaxUploadBytes int64
	ImagePrefix    string
	MediaPrefix    string
}

// UploadInput is one file plus the metadata typed next to it.
type UploadInput struct {
	Kind        string
	Filename    string
	Data        []byte
	Title       string
	Caption     string
	Description string
	AltText     string
}

type UpdateImageDTO struct {
	Name        *string `json:"name"`
	Caption     *string `json:"caption"     binding:"omitempty,max=500"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	AltText     *string `json:"altText"     binding:"omitempty,max=255"`
}

// View is an image row with a display URL.
type View struct {
	models.ImageModel
	URL string `json:"url"`
}

type Service struct {
	images   datastore.Repository[models.ImageModel]
	articles datastore.Repository[models.ArticleModel]
	store    blob.Store
	rw       *rewrite.Rewriter
	logger   *zap.Logger
	opts     Options
	now      func() time.Time
}

func NewService(
	images datastore.Repository[models.ImageModel],
	articles datastore.Repository[models.ArticleModel],
	store blob.Store,
	rw *rewrite.Rewriter,
	logger *zap.Logger,
	opts Options,
) *Service {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.ImagePrefix == "" {
		opts.ImagePrefix = DefaultImagePrefix
	}
	if opts.MediaPrefix == "" {
		opts.MediaPrefix = DefaultMediaPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		images:   images,
		articles: articles,
		store:    store,
		rw:       rw,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// MaxUploadBytes is the largest accepted file.
func (s *Service) MaxUploadBytes() int64 { return s.opts.MaxUploadBytes }

// Upload stores the file, then records it. Images are keyed
// "<image prefix><unix millis>-<filename>", media "<media prefix><slug>-<rand3>.<ext>".
func (s *Service) Upload(ctx context.Context, in UploadInput) (*View, error) {
	kind := in.Kind
	if kind == "" {
		kind = models.ImageKindImage
	}
	if kind != models.ImageKindImage && kind != models.ImageKindMedia {
		return nil, validation.Single("kind", "Kind must be image or media")
	}
	if len(in.Data) == 0 {
		return nil, validation.Single("file", "File is required")
	}
	if int64(len(in.Data)) > s.opts.MaxUploadBytes {
		return nil, ErrTooLarge
	}
	filename := cleanFilename(in.Filename)
	if filename == "" {
		return nil, validation.Single("file", "File name is required")
	}

	mt := mimetype.Detect(in.Data)
	if kind == models.ImageKindImage && !strings.HasPrefix(mt.String(), "image/") {
		return nil, validation.Single("file", fmt.Sprintf("Expected an image, got %s", mt.String()))
	}

	row := &models.ImageModel{
		Name:        filename,
		Caption:     strings.TrimSpace(in.Caption),
		Description: strings.TrimSpace(in.Description),
		AltText:     strings.TrimSpace(in.AltText),
		Kind:        kind,
		ContentType: mt.String(),
		Size:        int64(len(in.Data)),
	}
	if kind == models.ImageKindImage {
		row.Path = s.opts.ImagePrefix + fmt.Sprintf("%d-%s", s.now().UnixMilli(), filename)
	} else {
		title := strings.TrimSpace(in.Title)
		if title == "" {
			title = strings.TrimSuffix(filename, path.Ext(filename))
		}
		row.Name = title
		ext := strings.ToLower(path.Ext(filename))
		if ext == "" {
			ext = mt.Extension()
		}
		base := slug.Derive(title)
		if base == "" {
			base = "media"
		}
		row.Path = s.opts.MediaPrefix + base + "-" + rand3() + ext
	}
	if strings.HasPrefix(mt.String(), "image/") {
		if img, err := imaging.Decode(bytes.NewReader(in.Data), imaging.AutoOrientation(true)); err == nil {
			row.Width, row.Height = img.Bounds().Dx(), img.Bounds().Dy()
		}
	}

	key, err := s.store.Put(ctx, row.Path, in.Data, row.ContentType)
	if errors.Is(err, blob.ErrInvalidKey) {
		return nil, validation.Single("file", "File name is invalid")
	}
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", row.Path, err)
	}
	row.Path = key
	if err := s.images.Create(ctx, row); err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(derr))
		}
		return nil, fmt.Errorf("record image: %w", err)
	}
	return s.view(ctx, *row), nil
}

// Update edits display metadata only; the stored file never changes.
// It returns nil, nil when the image does not exist.
func (s *Service) Update(ctx context.Context, id string, dto *UpdateImageDTO) (*View, error) {
	if _, err := s.images.Get(ctx, id); err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	updates := map[string]any{}
	if dto.Name != nil {
		updates["name"] = strings.TrimSpace(*dto.Name)
	}
	if dto.Caption != nil {
		updates["caption"] = strings.TrimSpace(*dto.Caption)
	}
	if dto.Description != nil {
		updates["description"] = strings.TrimSpace(*dto.Description)
	}
	if dto.AltText != nil {
		updates["alt_text"] = strings.TrimSpace(*dto.AltText)
	}
	row, err := s.images.Update(ctx, id, updates)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, *row), nil
}

// Delete refuses with ErrInUse while an article features the image or embeds
// it inline. Otherwise the row goes first, then the file; a failed file removal
// is logged and the delete still succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	row, err := s.images.Get(ctx, id)
	if err != nil {
		return err
	}
	used, err := s.InUse(ctx, *row)
	if err != nil {
		return err
	}
	if used {
		return ErrInUse
	}
	if err := s.images.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, row.Path); err != nil {
		s.logger.Warn("failed to delete image blob", zap.String("key", row.Path), zap.Error(err))
	}
	return nil
}

// InUse reports whether any article features row or references its key inline.
func (s *Service) InUse(ctx context.Context, row models.ImageModel) (bool, error) {
	featured, err := s.articles.List(ctx, datastore.Where("featured_image_id", row.ID))
	if err != nil {
		return false, err
	}
	if len(featured) > 0 {
		return true, nil
	}
	all, err := s.articles.List(ctx, datastore.Query{})
	if err != nil {
		return false, err
	}
	for _, a := range all {
		if !strings.Contains(a.Content, row.Path) {
			continue
		}
		for _, key := range s.rw.ContentKeys(a.Content, a.ContentFormat) {
			if key == row.Path {
				return true, nil
			}
		}
	}
	return false, nil
}

// Get returns nil, nil when the image does not exist.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	row, err := s.images.Get(ctx, id)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.view(ctx, *row), nil
}

// List returns images of kind (all kinds when empty), newest first, with
// signed URLs.
func (s *Service) List(ctx context.Context, kind string) ([]View, error) {
	q := datastore.Query{}.OrderBy("created_at", true)
	if kind != "" {
		q = q.And("kind", kind)
	}
	rows, err := s.images.List(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]View, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signConcurrency)
	for i, row := range rows {
		g.Go(func() error {
			out[i] = View{ImageModel: row, URL: s.rw.SignKey(gctx, row.Path)}
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

func (s *Service) view(ctx context.Context, row models.ImageModel) *View {
	return &View{ImageModel: row, URL: s.rw.SignKey(ctx, row.Path)}
}

// cleanFilename keeps the user's file name but drops any directory part.
func cleanFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

func rand3() string {
	b := make([]byte, 3)
	for i := range b {
		b[i] = base36[rand.IntN(len(base36))]
	}
	return string(b)
}
