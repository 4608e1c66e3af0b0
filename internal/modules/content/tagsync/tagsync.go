// Package tagsync reconciles an article's tag edges with a desired tag set.
package tagsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/mx-space/press/internal/models"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/lock"
	"github.com/mx-space/press/internal/pkg/validation"
)

type Synchronizer struct {
	edges  datastore.Repository[models.ArticleTagModel]
	tags   datastore.Repository[models.TagModel]
	locker lock.Locker
}

func New(edges datastore.Repository[models.ArticleTagModel], tags datastore.Repository[models.TagModel], locker lock.Locker) *Synchronizer {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Synchronizer{edges: edges, tags: tags, locker: locker}
}

// Sync makes the edges of articleID equal desiredTagIDs. For an existing article
// every current edge is deleted first, then one edge per desired tag is created
// in input order with repeats skipped. The first failing step aborts the sync;
// edges already written stay, so callers re-read with Tags after an error.
//
// Saves of the same article are serialised through the locker.
func (s *Synchronizer) Sync(ctx context.Context, articleID string, desiredTagIDs []string, existing bool) error {
	desired := dedupe(desiredTagIDs)
	if err := s.CheckTags(ctx, desired); err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, "article-tags:"+articleID)
	if err != nil {
		return fmt.Errorf("lock tags of article %s: %w", articleID, err)
	}
	defer unlock()

	if existing {
		current, err := s.edges.List(ctx, datastore.Where("article_id", articleID))
		if err != nil {
			return fmt.Errorf("list tags of article %s: %w", articleID, err)
		}
		for _, edge := range current {
			if err := s.edges.Delete(ctx, edge.ID); err != nil {
				return fmt.Errorf("delete tag %s of article %s: %w", edge.TagID, articleID, err)
			}
		}
	}

	for _, tagID := range desired {
		edge := &models.ArticleTagModel{ArticleID: articleID, TagID: tagID}
		if err := s.edges.Create(ctx, edge); err != nil {
			return fmt.Errorf("create tag %s of article %s: %w", tagID, articleID, err)
		}
	}
	return nil
}

// CheckTags returns validation.Errors{"tags": ...} when an id does not name a tag.
func (s *Synchronizer) CheckTags(ctx context.Context, tagIDs []string) error {
	for _, id := range tagIDs {
		if _, err := s.tags.Get(ctx, id); err != nil {
			if errors.Is(err, datastore.ErrNotFound) {
				return validation.Single("tags", fmt.Sprintf("Tag %s does not exist", id))
			}
			return fmt.Errorf("load tag %s: %w", id, err)
		}
	}
	return nil
}

// Tags returns the tag ids currently linked to articleID, oldest edge first.
func (s *Synchronizer) Tags(ctx context.Context, articleID string) ([]string, error) {
	edges, err := s.edges.List(ctx, datastore.Where("article_id", articleID).OrderBy("created_at", false))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.TagID)
	}
	return ids, nil
}

// Articles returns the ids of articles linked to tagID.
func (s *Synchronizer) Articles(ctx context.Context, tagID string) ([]string, error) {
	edges, err := s.edges.List(ctx, datastore.Where("tag_id", tagID))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.ArticleID)
	}
	return ids, nil
}

// Clear removes every edge of articleID.
func (s *Synchronizer) Clear(ctx context.Context, articleID string) error {
	return s.Sync(ctx, articleID, nil, true)
}

// Detach removes every edge pointing at tagID.
func (s *Synchronizer) Detach(ctx context.Context, tagID string) error {
	edges, err := s.edges.List(ctx, datastore.Where("tag_id", tagID))
	if err != nil {
		return err
	}
	for _, e := range edges {
		if err := s.edges.Delete(ctx, e.ID); err != nil {
			return fmt.Errorf("delete edge %s: %w", e.ID, err)
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
