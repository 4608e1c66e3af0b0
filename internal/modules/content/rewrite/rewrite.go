// Package rewrite converts image references in article content between the
// canonical form that is persisted (storage keys) and the display form (signed
// URLs). HTML documents are rewritten through <img src>; markdown documents also
// through image destinations such as ![alt](key).
package rewrite

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/mx-space/press/internal/models"
	"github.com/mx-space/press/internal/pkg/blob"
	"go.uber.org/zap"
	xhtml "golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds in-flight signing calls per document.
const DefaultConcurrency = 8

// tagAttr lexes one attribute of a raw start tag: name, then an optional
// double-quoted, single-quoted or bare value. Quoted values are consumed whole,
// so text such as alt="see src=x" is never taken for an attribute.
var tagAttr = regexp.MustCompile(`[\s/]+([^\s"'>/=]+)(?:\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s>]+)))?`)

// mdImage matches a markdown image up to its destination, which is either
// <bracketed> or a bare run without spaces. Titles after it are left alone.
var mdImage = regexp.MustCompile(`(!\[[^\]\n]*\]\(\s*)(<[^<>\n]*>|[^\s()<>]+)`)

// Signer issues a display URL for a storage key. blob.Store satisfies it.
type Signer interface {
	Sign(ctx context.Context, key string) (blob.Signed, error)
}

type Rewriter struct {
	signer      Signer
	matcher     blob.Matcher
	logger      *zap.Logger
	concurrency int
}

func New(signer Signer, matcher blob.Matcher, logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{signer: signer, matcher: matcher, logger: logger, concurrency: DefaultConcurrency}
}

// WithConcurrency returns a copy of r that signs at most n keys at once.
func (r *Rewriter) WithConcurrency(n int) *Rewriter {
	cp := *r
	if n < 1 {
		n = 1
	}
	cp.concurrency = n
	return &cp
}

// ToCanonical replaces every <img> src that is a signed URL of the configured
// store with its storage key. Other bytes of the document are left untouched,
// and running it twice changes nothing the second time.
func (r *Rewriter) ToCanonical(content string) string {
	return r.canonical(content, false)
}

// CanonicalContent is ToCanonical for a document stored in format.
func (r *Rewriter) CanonicalContent(content, format string) string {
	return r.canonical(content, format == models.ContentFormatMarkdown)
}

// ToSigned replaces every <img> src that is a storage key with a signed URL.
// Each distinct key is signed once; keys that fail to sign are logged and left
// as they were.
func (r *Rewriter) ToSigned(ctx context.Context, content string) string {
	return r.signed(ctx, content, false)
}

// SignedContent is ToSigned for a document stored in format.
func (r *Rewriter) SignedContent(ctx context.Context, content, format string) string {
	return r.signed(ctx, content, format == models.ContentFormatMarkdown)
}

func (r *Rewriter) canonical(content string, markdown bool) string {
	fn := func(src string) (string, bool) {
		return r.matcher.Key(src)
	}
	out := rewriteSrcs(content, fn)
	if markdown {
		out = rewriteMarkdown(out, fn)
	}
	return out
}

func (r *Rewriter) signed(ctx context.Context, content string, markdown bool) string {
	refs := imgSrcs(content)
	if markdown {
		refs = append(refs, markdownDests(content)...)
	}
	keys := map[string]struct{}{}
	for _, src := range refs {
		if isKey(src) {
			keys[src] = struct{}{}
		}
	}
	if len(keys) == 0 {
		return content
	}

	signed := r.signAll(ctx, keys)
	if len(signed) == 0 {
		return content
	}
	fn := func(src string) (string, bool) {
		u, ok := signed[src]
		return u, ok
	}
	out := rewriteSrcs(content, fn)
	if markdown {
		out = rewriteMarkdown(out, fn)
	}
	return out
}

// SignKey signs a single stored key, such as a featured image path. Empty and
// absolute values come back unchanged, as does the key when signing fails.
func (r *Rewriter) SignKey(ctx context.Context, key string) string {
	if !isKey(key) {
		return key
	}
	s, err := r.signer.Sign(ctx, key)
	if err != nil {
		r.logger.Warn("failed to sign image", zap.String("key", key), zap.Error(err))
		return key
	}
	return s.URL
}

// ExtractKeys lists the storage keys an HTML document references through <img src>,
// whether written canonically or as signed URLs.
func (r *Rewriter) ExtractKeys(content string) []string {
	return r.keys(content, false)
}

// ContentKeys is ExtractKeys for a document stored in format.
func (r *Rewriter) ContentKeys(content, format string) []string {
	return r.keys(content, format == models.ContentFormatMarkdown)
}

func (r *Rewriter) keys(content string, markdown bool) []string {
	var refs []string
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
		doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			refs = append(refs, src)
		})
	}
	if markdown {
		refs = append(refs, markdownDests(content)...)
	}

	seen := map[string]struct{}{}
	var out []string
	for _, src := range refs {
		src = strings.TrimSpace(src)
		key := src
		if !isKey(src) {
			var ok bool
			if key, ok = r.matcher.Key(src); !ok {
				continue
			}
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func (r *Rewriter) signAll(ctx context.Context, keys map[string]struct{}) map[string]string {
	var (
		mu  sync.Mutex
		out = make(map[string]string, len(keys))
	)
	// failures are swallowed so one bad key never cancels the others
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for key := range keys {
		g.Go(func() error {
			s, err := r.signer.Sign(gctx, key)
			if err != nil {
				r.logger.Warn("failed to sign image", zap.String("key", key), zap.Error(err))
				return nil
			}
			mu.Lock()
			out[key] = s.URL
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// isKey reports whether src is a storage key rather than a URL: non-empty, no
// scheme, not protocol-relative.
func isKey(src string) bool {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "//") {
		return false
	}
	u, err := url.Parse(src)
	if err != nil {
		return !strings.Contains(src, "://")
	}
	return u.Scheme == ""
}

// imgSrcs returns the unescaped src of every <img> start tag.
func imgSrcs(content string) []string {
	var out []string
	z := xhtml.NewTokenizer(strings.NewReader(content))
	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			return out
		}
		if tt != xhtml.StartTagToken && tt != xhtml.SelfClosingTagToken {
			continue
		}
		if src, ok := imgSrc(z); ok {
			out = append(out, src)
		}
	}
}

func imgSrc(z *xhtml.Tokenizer) (string, bool) {
	name, hasAttr := z.TagName()
	if string(name) != "img" || !hasAttr {
		return "", false
	}
	for {
		key, val, more := z.TagAttr()
		if string(key) == "src" {
			return string(val), true
		}
		if !more {
			return "", false
		}
	}
}

// rewriteSrcs walks the document token by token and hands each <img> src to fn.
// When fn returns a replacement only the attribute value is rewritten; every other
// byte is copied from the input.
func rewriteSrcs(content string, fn func(src string) (string, bool)) string {
	var (
		buf     bytes.Buffer
		offset  int
		changed bool
	)
	buf.Grow(len(content))
	z := xhtml.NewTokenizer(strings.NewReader(content))
	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			if z.Err() != io.EOF {
				return content
			}
			break
		}
		// TagName lowercases the buffer in place, so take the raw bytes first.
		raw := append([]byte(nil), z.Raw()...)
		offset += len(raw)

		if tt == xhtml.StartTagToken || tt == xhtml.SelfClosingTagToken {
			if src, ok := imgSrc(z); ok {
				if next, ok := fn(src); ok && next != src {
					if out, ok := replaceSrc(raw, src, next); ok {
						raw = out
						changed = true
					}
				}
			}
		}
		buf.Write(raw)
	}
	if !changed {
		return content
	}
	if offset < len(content) {
		buf.WriteString(content[offset:])
	}
	return buf.String()
}

// replaceSrc swaps the value of the first src attribute in a raw tag. The value
// must decode to want, the one the tokenizer saw, or the tag is left alone.
func replaceSrc(raw []byte, want, next string) ([]byte, bool) {
	var m []int
	for _, attr := range tagAttr.FindAllSubmatchIndex(raw, -1) {
		if strings.EqualFold(string(raw[attr[2]:attr[3]]), "src") {
			m = attr
			break
		}
	}
	if m == nil {
		return nil, false
	}
	var start, end int
	quoted := true
	switch {
	case m[4] >= 0:
		start, end = m[4], m[5]
	case m[6] >= 0:
		start, end = m[6], m[7]
	case m[8] >= 0:
		start, end, quoted = m[8], m[9], false
	default:
		return nil, false
	}
	if html.UnescapeString(string(raw[start:end])) != want {
		return nil, false
	}

	var out bytes.Buffer
	out.Grow(len(raw) + len(next) + 2)
	out.Write(raw[:start])
	if !quoted {
		// signed URLs carry '=' and '&', so unquoted values gain quotes
		out.WriteByte('"')
	}
	out.WriteString(html.EscapeString(next))
	if !quoted {
		out.WriteByte('"')
	}
	out.Write(raw[end:])
	return out.Bytes(), true
}

// markdownDests returns the destination of every markdown image, with the
// angle brackets of <bracketed> destinations removed.
func markdownDests(content string) []string {
	var out []string
	for _, m := range mdImage.FindAllStringSubmatch(content, -1) {
		out = append(out, unbracket(m[2]))
	}
	return out
}

// rewriteMarkdown hands each markdown image destination to fn and splices in
// the replacement. Bracketed destinations stay bracketed, and a replacement
// containing spaces gains brackets.
func rewriteMarkdown(content string, fn func(dest string) (string, bool)) string {
	var (
		b       strings.Builder
		last    int
		changed bool
	)
	for _, m := range mdImage.FindAllStringSubmatchIndex(content, -1) {
		start, end := m[4], m[5]
		raw := content[start:end]
		dest := unbracket(raw)
		next, ok := fn(dest)
		if !ok || next == dest {
			continue
		}
		b.WriteString(content[last:start])
		if raw != dest || strings.ContainsAny(next, " \t") {
			b.WriteString("<" + next + ">")
		} else {
			b.WriteString(next)
		}
		last = end
		changed = true
	}
	if !changed {
		return content
	}
	b.WriteString(content[last:])
	return b.String()
}

func unbracket(dest string) string {
	if strings.HasPrefix(dest, "<") && strings.HasSuffix(dest, ">") {
		return dest[1 : len(dest)-1]
	}
	return dest
}
