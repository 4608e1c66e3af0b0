package app

import (
	"os"
	"strings"
	"time"

	"github.com/mx-space/press/internal/config"
	"github.com/mx-space/press/internal/pkg/blob"
	pkgredis "github.com/mx-space/press/internal/pkg/redis"
	"go.uber.org/zap"
)

func applyRuntimeSettings(cfg *config.AppConfig, logger *zap.Logger) error {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}

	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		return nil
	}
	loc, err := config.ParseTimezone(tz)
	if err != nil {
		return err
	}
	time.Local = loc
	_ = os.Setenv("TZ", tz)
	return nil
}

// newBlobStore builds the configured backend. With Redis enabled, signed URLs
// are cached until shortly before they expire.
func newBlobStore(cfg *config.AppConfig, rc *pkgredis.Client, logger *zap.Logger) (blob.Store, error) {
	st := cfg.Storage
	var (
		store blob.Store
		err   error
	)
	switch st.Driver {
	case config.StorageSupabase:
		store, err = blob.NewSupabase(blob.SupabaseOptions{
			URL:     st.SupabaseURL,
			Key:     st.SupabaseKey,
			Bucket:  st.Bucket,
			SignTTL: cfg.SignTTL(),
		})
	case config.StorageMemory:
		logger.Warn("storage driver is memory, uploads are lost on restart")
		store = blob.NewMemory()
	default:
		store, err = blob.NewS3(blob.S3Options{
			Bucket:          st.Bucket,
			Region:          st.Region,
			Endpoint:        st.Endpoint,
			AccessKeyID:     st.AccessKeyID,
			SecretAccessKey: st.SecretAccessKey,
			PathStyle:       st.PathStyle,
			SignTTL:         cfg.SignTTL(),
		})
	}
	if err != nil {
		return nil, err
	}
	if rc != nil {
		store = blob.NewCached(store, rc, logger.Named("blob"))
	}
	return store, nil
}

// matcherFor recognises URLs signed by the configured backend. Supabase signs
// under the project host rather than amazonaws.com.
func matcherFor(st config.StorageConfig) blob.Matcher {
	m := blob.DefaultMatcher()
	m.HostMarker = st.HostMarker
	if st.Driver == config.StorageSupabase && st.HostMarker == "amazonaws.com" {
		m.HostMarker = hostOf(st.SupabaseURL)
	}
	if len(st.PrefixMarkers) > 0 {
		m.PrefixMarkers = st.PrefixMarkers
	}
	return m
}

func hostOf(raw string) string {
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		raw = raw[:i]
	}
	return raw
}
