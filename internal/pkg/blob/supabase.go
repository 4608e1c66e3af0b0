package blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
	supabase "github.com/supabase-community/supabase-go"
)

// SupabaseOptions configures the Supabase Storage backend. Key should be the
// service_role key; the anon key cannot sign private objects.
type SupabaseOptions struct {
	URL     string
	Key     string
	Bucket  string
	SignTTL time.Duration
}

// Supabase stores objects in a Supabase Storage bucket.
type Supabase struct {
	client *supabase.Client
	bucket string
	ttl    time.Duration
}

func NewSupabase(opts SupabaseOptions) (*Supabase, error) {
	if strings.TrimSpace(opts.URL) == "" || strings.TrimSpace(opts.Key) == "" || strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("incomplete supabase config: supabase_url/supabase_key/bucket are required")
	}
	client, err := supabase.NewClient(strings.TrimSpace(opts.URL), strings.TrimSpace(opts.Key), nil)
	if err != nil {
		return nil, fmt.Errorf("initialize supabase SDK: %w", err)
	}
	ttl := opts.SignTTL
	if ttl <= 0 {
		ttl = DefaultSignTTL
	}
	return &Supabase{client: client, bucket: strings.TrimSpace(opts.Bucket), ttl: ttl}, nil
}

// The storage-go client takes no context; calls are bounded by its HTTP timeout.
func (s *Supabase) Put(_ context.Context, key string, payload []byte, contentType string) (string, error) {
	key, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := false
	_, err = s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(payload), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("supabase upload %s: %w", key, err)
	}
	return key, nil
}

func (s *Supabase) Sign(_ context.Context, key string) (Signed, error) {
	key, err := NormalizeKey(key)
	if err != nil {
		return Signed{}, err
	}
	expires := time.Now().Add(s.ttl)
	resp, err := s.client.Storage.CreateSignedUrl(s.bucket, key, int(s.ttl.Seconds()))
	if err != nil {
		return Signed{}, fmt.Errorf("supabase sign %s: %w", key, err)
	}
	if resp.SignedURL == "" {
		return Signed{}, fmt.Errorf("supabase sign %s: empty signed url", key)
	}
	return Signed{URL: resp.SignedURL, ExpiresAt: expires}, nil
}

func (s *Supabase) Delete(_ context.Context, key string) error {
	key, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.Storage.RemoveFile(s.bucket, []string{key}); err != nil {
		return fmt.Errorf("supabase delete %s: %w", key, err)
	}
	return nil
}
