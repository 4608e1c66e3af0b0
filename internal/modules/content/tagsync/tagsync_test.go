package tagsync

import (
	"context"
	"errors"
	"testing"

	"github.com/mx-space/press/internal/models"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyEdges fails Create once failAfter creates have succeeded.
type flakyEdges struct {
	*datastore.Memory[models.ArticleTagModel]
	creates   int
	failAfter int
}

func (f *flakyEdges) Create(ctx context.Context, row *models.ArticleTagModel) error {
	if f.failAfter >= 0 && f.creates >= f.failAfter {
		return errors.New("connection reset")
	}
	f.creates++
	return f.Memory.Create(ctx, row)
}

type fixture struct {
	sync  *Synchronizer
	edges *flakyEdges
	tags  map[string]string
}

func newFixture(t *testing.T, names ...string) fixture {
	t.Helper()
	ctx := context.Background()
	tagRepo := datastore.NewMemory[models.TagModel]()
	ids := map[string]string{}
	for _, n := range names {
		tag := &models.TagModel{Tag: n, URL: n}
		require.NoError(t, tagRepo.Create(ctx, tag))
		ids[n] = tag.ID
	}
	edges := &flakyEdges{Memory: datastore.NewMemory[models.ArticleTagModel](), failAfter: -1}
	return fixture{sync: New(edges, tagRepo, nil), edges: edges, tags: ids}
}

func TestSync_ReplacesEdges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b", "c")

	require.NoError(t, f.sync.Sync(ctx, "art-1", []string{f.tags["a"], f.tags["b"]}, false))
	got, err := f.sync.Tags(ctx, "art-1")
	require.NoError(t, err)
	assert.Equal(t, []string{f.tags["a"], f.tags["b"]}, got)

	require.NoError(t, f.sync.Sync(ctx, "art-1", []string{f.tags["b"], f.tags["c"]}, true))
	got, err = f.sync.Tags(ctx, "art-1")
	require.NoError(t, err)
	assert.Equal(t, []string{f.tags["b"], f.tags["c"]}, got)

	all, err := f.edges.List(ctx, datastore.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 2, "old edges must be gone")
}

func TestSync_DuplicatesCollapse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a")

	require.NoError(t, f.sync.Sync(ctx, "art-1", []string{f.tags["a"], f.tags["a"]}, false))
	got, err := f.sync.Tags(ctx, "art-1")
	require.NoError(t, err)
	assert.Equal(t, []string{f.tags["a"]}, got)
}

func TestSync_OtherArticlesUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b")

	require.NoError(t, f.sync.Sync(ctx, "art-1", []string{f.tags["a"]}, false))
	require.NoError(t, f.sync.Sync(ctx, "art-2", []string{f.tags["a"]}, false))
	require.NoError(t, f.sync.Sync(ctx, "art-1", nil, true))

	got, err := f.sync.Tags(ctx, "art-2")
	require.NoError(t, err)
	assert.Equal(t, []string{f.tags["a"]}, got)

	articles, err := f.sync.Articles(ctx, f.tags["a"])
	require.NoError(t, err)
	assert.Equal(t, []string{"art-2"}, articles)
}

func TestSync_UnknownTagRejectedBeforeWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a")
	require.NoError(t, f.sync.Sync(ctx, "art-1", []string{f.tags["a"]}, false))

	err := f.sync.Sync(ctx, "art-1", []string{"missing"}, true)
	fields, ok := validation.As(err)
	require.True(t, ok)
	assert.Contains(t, fields["tags"], "missing")

	got, err := f.sync.Tags(ctx, "art-1")
	require.NoError(t, err)
	assert.Equal(t, []string{f.tags["a"]}, got)
}

func TestSync_PartialFailureIsVisible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b", "c")
	require.NoError(t, f.sync.Sync(ctx, "art-1", []string{f.tags["a"]}, false))

	f.edges.failAfter = f.edges.creates + 1
	err := f.sync.Sync(ctx, "art-1", []string{f.tags["b"], f.tags["c"]}, true)
	require.Error(t, err)

	got, err := f.sync.Tags(ctx, "art-1")
	require.NoError(t, err)
	assert.Equal(t, []string{f.tags["b"]}, got, "deletes and the first create stay applied")
}

func TestDetach(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b")
	require.NoError(t, f.sync.Sync(ctx, "art-1", []string{f.tags["a"], f.tags["b"]}, false))

	require.NoError(t, f.sync.Detach(ctx, f.tags["a"]))
	got, err := f.sync.Tags(ctx, "art-1")
	require.NoError(t, err)
	assert.Equal(t, []string{f.tags["b"]}, got)
}
