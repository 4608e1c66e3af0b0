// Package slug derives URL slugs and keeps them unique per entity kind.
package slug

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/validation"
)

// Kind names a slug namespace. Uniqueness is only enforced within a kind.
type Kind string

const (
	KindArticle  Kind = "article"
	KindCategory Kind = "category"
	KindTag      Kind = "tag"
)

const (
	DuplicateMessage = "An entity with this URL already exists."
	RequiredMessage  = "URL is required"
)

var (
	ErrNotFound  = errors.New("slug: no entity with this url")
	ErrDuplicate = errors.New("slug: url already in use")
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Derive lowercases name, collapses every run of characters outside [a-z0-9]
// into one hyphen and trims hyphens from both ends. Derive(Derive(x)) == Derive(x).
func Derive(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// Normalize is applied to every url before it is checked, stored or looked up,
// so "Hello World" and "hello-world" address the same entity.
func Normalize(url string) string {
	return Derive(url)
}

// Identified is satisfied by every model embedding models.Base.
type Identified interface {
	GetID() string
}

// Finder returns the ids of rows of one kind whose url equals url.
type Finder func(ctx context.Context, url string) ([]string, error)

// FromRepository builds a Finder over repo's "url" column.
func FromRepository[T Identified](repo datastore.Repository[T]) Finder {
	return func(ctx context.Context, url string) ([]string, error) {
		rows, err := repo.List(ctx, datastore.Where("url", url))
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.GetID())
		}
		return ids, nil
	}
}

// Resolver checks url uniqueness for each registered kind.
type Resolver struct {
	finders map[Kind]Finder
}

func NewResolver(finders map[Kind]Finder) *Resolver {
	return &Resolver{finders: finders}
}

// Unique reports whether no entity of kind other than excludeID owns candidate.
func (r *Resolver) Unique(ctx context.Context, kind Kind, candidate, excludeID string) (bool, error) {
	find, ok := r.finders[kind]
	if !ok {
		return false, fmt.Errorf("slug: unknown kind %q", kind)
	}
	ids, err := find(ctx, Normalize(candidate))
	if err != nil {
		return false, fmt.Errorf("slug: lookup %s %q: %w", kind, candidate, err)
	}
	for _, id := range ids {
		if id != excludeID {
			return false, nil
		}
	}
	return true, nil
}

// Validate returns nil when candidate is usable for an entity of kind. A taken url
// yields an error matching both ErrDuplicate and validation.Errors{"url": ...};
// collaborator failures are returned as is.
func (r *Resolver) Validate(ctx context.Context, kind Kind, candidate, excludeID string) error {
	if Normalize(candidate) == "" {
		return validation.Single("url", RequiredMessage)
	}
	ok, err := r.Unique(ctx, kind, candidate, excludeID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %w", ErrDuplicate, validation.Single("url", DuplicateMessage))
	}
	return nil
}

// Resolve loads the entity whose url is slug. Missing is ErrNotFound, which is a
// normal outcome for callers rendering a 404.
func Resolve[T any](ctx context.Context, repo datastore.Repository[T], slug string) (*T, error) {
	url := Normalize(slug)
	if url == "" {
		return nil, ErrNotFound
	}
	rows, err := repo.List(ctx, datastore.Where("url", url))
	if err != nil {
		return nil, fmt.Errorf("slug: resolve %q: %w", slug, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}
