package rewrite

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mx-space/press/internal/pkg/blob"
	"github.com/stretchr/testify/assert"
)

type fakeSigner struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newFakeSigner(fail ...string) *fakeSigner {
	f := &fakeSigner{calls: map[string]int{}, fail: map[string]bool{}}
	for _, k := range fail {
		f.fail[k] = true
	}
	return f
}

func (f *fakeSigner) Sign(_ context.Context, key string) (blob.Signed, error) {
	f.mu.Lock()
	f.calls[key]++
	f.mu.Unlock()
	if f.fail[key] {
		return blob.Signed{}, errors.New("access denied")
	}
	u := "https://media.s3.us-east-1.amazonaws.com/" + (&url.URL{Path: key}).EscapedPath() +
		"?X-Amz-Expires=604800&X-Amz-Signature=deadbeef"
	return blob.Signed{URL: u, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func newRewriter(s Signer) *Rewriter {
	return New(s, blob.DefaultMatcher(), nil)
}

func TestToCanonical(t *testing.T) {
	r := newRewriter(newFakeSigner())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "signed url becomes key",
			in:   `<p>Hi</p><img class="wide" src="https://media.s3.amazonaws.com/public/images/1-dog.jpg?X-Amz-Signature=abc&amp;X-Amz-Expires=60" alt="dog">`,
			want: `<p>Hi</p><img class="wide" src="public/images/1-dog.jpg" alt="dog">`,
		},
		{
			name: "percent decoded",
			in:   `<img src='https://media.s3.amazonaws.com/public/images/my%20dog.jpg?sig=1'>`,
			want: `<img src='public/images/my dog.jpg'>`,
		},
		{
			name: "other hosts untouched",
			in:   `<img src="https://example.com/public/images/a.jpg">`,
			want: `<img src="https://example.com/public/images/a.jpg">`,
		},
		{
			name: "data-src and text untouched",
			in:   `<IMG data-src="https://media.s3.amazonaws.com/public/x.jpg" SRC="https://media.s3.amazonaws.com/posts/p-abc.png">https://media.s3.amazonaws.com/public/y.jpg`,
			want: `<IMG data-src="https://media.s3.amazonaws.com/public/x.jpg" SRC="posts/p-abc.png">https://media.s3.amazonaws.com/public/y.jpg`,
		},
		{
			name: "no images",
			in:   "<h1>Title</h1>\n<!-- note --><p>body &amp; more</p>",
			want: "<h1>Title</h1>\n<!-- note --><p>body &amp; more</p>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ToCanonical(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, r.ToCanonical(got), "canonicalising twice must be stable")
		})
	}
}

func TestToSigned(t *testing.T) {
	signer := newFakeSigner("public/images/broken.jpg")
	r := newRewriter(signer)

	in := `<img src="public/images/a.jpg"><img src="public/images/a.jpg">` +
		`<img src="public/images/broken.jpg"><img src="https://cdn.example.com/x.png">` +
		`<img src="data:image/png;base64,AAAA">`
	got := r.ToSigned(context.Background(), in)

	assert.Equal(t, 1, signer.calls["public/images/a.jpg"], "each key is signed once")
	assert.Equal(t, 2, strings.Count(got, `src="https://media.s3.us-east-1.amazonaws.com/public/images/a.jpg?X-Amz-Expires=604800&amp;X-Amz-Signature=deadbeef"`))
	assert.Contains(t, got, `<img src="public/images/broken.jpg">`)
	assert.Contains(t, got, `<img src="https://cdn.example.com/x.png">`)
	assert.Contains(t, got, `<img src="data:image/png;base64,AAAA">`)
	assert.Len(t, signer.calls, 2)
}

func TestRoundTrip(t *testing.T) {
	r := newRewriter(newFakeSigner()).WithConcurrency(2)
	canonical := "<h2>Trip</h2>\n<p><img src=\"public/images/1700-my dog.jpg\" alt=\"a\"/></p>\n" +
		"<figure><img src='posts/trip-x1z.png' width=\"300\"></figure>"

	signed := r.ToSigned(context.Background(), canonical)
	assert.NotEqual(t, canonical, signed)
	assert.Equal(t, canonical, r.ToCanonical(signed))
}

func TestUnquotedSrcGainsQuotes(t *testing.T) {
	r := newRewriter(newFakeSigner())
	got := r.ToSigned(context.Background(), `<img src=public/a.jpg>`)
	assert.Equal(t, `<img src="https://media.s3.us-east-1.amazonaws.com/public/a.jpg?X-Amz-Expires=604800&amp;X-Amz-Signature=deadbeef">`, got)
	assert.Equal(t, `<img src="public/a.jpg">`, r.ToCanonical(got))
}

func TestSrcTextInsideOtherAttributes(t *testing.T) {
	r := newRewriter(newFakeSigner())
	ctx := context.Background()

	signed := `<img alt="see src=x" src="https://media.s3.us-east-1.amazonaws.com/public/images/dog.jpg?X-Amz-Signature=deadbeef">`
	assert.Equal(t, `<img alt="see src=x" src="public/images/dog.jpg">`, r.ToCanonical(signed))

	got := r.ToSigned(ctx, `<img alt="see src=x" src="public/images/dog.jpg">`)
	assert.Equal(t, `<img alt="see src=x" src="https://media.s3.us-east-1.amazonaws.com/public/images/dog.jpg?X-Amz-Expires=604800&amp;X-Amz-Signature=deadbeef">`, got)

	got = r.ToSigned(ctx, `<img data-note='a src="b"' src=public/a.jpg>`)
	assert.Equal(t, `<img data-note='a src="b"' src="https://media.s3.us-east-1.amazonaws.com/public/a.jpg?X-Amz-Expires=604800&amp;X-Amz-Signature=deadbeef">`, got)
}

func TestMarkdownContent(t *testing.T) {
	r := newRewriter(newFakeSigner())
	ctx := context.Background()
	canonical := "# Trip\n\n![dog](public/images/1-dog.jpg \"Dog\")\n\n![cover](<posts/my trip-x1z.png>)\n\n" +
		"<img src=\"public/images/2-cat.jpg\">\n\n[not an image](public/images/3-doc.jpg)\n"

	signed := r.SignedContent(ctx, canonical, "markdown")
	assert.Contains(t, signed, "![dog](https://media.s3.us-east-1.amazonaws.com/public/images/1-dog.jpg?X-Amz-Expires=604800&X-Amz-Signature=deadbeef \"Dog\")")
	assert.Contains(t, signed, "![cover](<https://media.s3.us-east-1.amazonaws.com/posts/my%20trip-x1z.png?X-Amz-Expires=604800&X-Amz-Signature=deadbeef>)")
	assert.Contains(t, signed, `<img src="https://media.s3.us-east-1.amazonaws.com/public/images/2-cat.jpg?`)
	assert.Contains(t, signed, "[not an image](public/images/3-doc.jpg)")
	assert.Equal(t, canonical, r.CanonicalContent(signed, "markdown"))

	assert.Equal(t, []string{"public/images/2-cat.jpg", "public/images/1-dog.jpg", "posts/my trip-x1z.png"},
		r.ContentKeys(signed, "markdown"))

	html := "![dog](public/images/1-dog.jpg)"
	assert.Equal(t, html, r.SignedContent(ctx, html, "html"))
	assert.Empty(t, r.ContentKeys(html, "html"))
}

func TestSignKey(t *testing.T) {
	r := newRewriter(newFakeSigner("bad.jpg"))
	ctx := context.Background()

	assert.True(t, strings.HasPrefix(r.SignKey(ctx, "public/images/a.jpg"), "https://media.s3.us-east-1.amazonaws.com/public/images/a.jpg?"))
	assert.Equal(t, "bad.jpg", r.SignKey(ctx, "bad.jpg"))
	assert.Equal(t, "", r.SignKey(ctx, ""))
	assert.Equal(t, "https://x.test/a.jpg", r.SignKey(ctx, "https://x.test/a.jpg"))
}

func TestExtractKeys(t *testing.T) {
	r := newRewriter(newFakeSigner())
	content := `<img src="public/images/a.jpg"><p><img src="https://media.s3.amazonaws.com/posts/b.png?sig=1"></p>` +
		`<img src="public/images/a.jpg"><img src="https://example.com/c.jpg"><img alt="no src">`
	assert.Equal(t, []string{"public/images/a.jpg", "posts/b.png"}, r.ExtractKeys(content))
}
