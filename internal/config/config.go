package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	Timezone       string                `yaml:"timezone"`
	LogDir         string                `yaml:"log_dir"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Storage        StorageConfig         `yaml:"storage"`
	Auth           AuthConfig            `yaml:"auth"`
	Content        ContentConfig         `yaml:"content"`

	baseDir string
}

type DatabaseRuntimeConfig struct {
	Driver        string            `yaml:"driver"`
	DSN           string            `yaml:"dsn"`
	Host          string            `yaml:"host"`
	Port          int               `yaml:"port"`
	User          string            `yaml:"user"`
	Password      string            `yaml:"password"`
	Name          string            `yaml:"name"`
	Charset       string            `yaml:"charset"`
	ParseTime     bool              `yaml:"parse_time"`
	Loc           string            `yaml:"loc"`
	SSLMode       string            `yaml:"sslmode"`
	Params        map[string]string `yaml:"params"`
	MongoURI      string            `yaml:"mongo_uri"`
	MongoDatabase string            `yaml:"mongo_database"`
}

type RedisRuntimeConfig struct {
	Enable   bool              `yaml:"enable"`
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Params   map[string]string `yaml:"params"`
}

// StorageConfig selects the blob store and tells the rewriter which URLs are ours.
type StorageConfig struct {
	Driver          string   `yaml:"driver"`
	Bucket          string   `yaml:"bucket"`
	Region          string   `yaml:"region"`
	Endpoint        string   `yaml:"endpoint"`
	AccessKeyID     string   `yaml:"access_key_id"`
	SecretAccessKey string   `yaml:"secret_access_key"`
	PathStyle       bool     `yaml:"path_style"`
	HostMarker      string   `yaml:"host_marker"`
	PrefixMarkers   []string `yaml:"prefix_markers"`
	SignTTL         int      `yaml:"sign_ttl"` // seconds
	SupabaseURL     string   `yaml:"supabase_url"`
	SupabaseKey     string   `yaml:"supabase_key"`
}

type AuthConfig struct {
	AdminGroup string `yaml:"admin_group"`
	TokenTTL   int    `yaml:"token_ttl"` // seconds
}

// ContentConfig carries the editorial limits. Lengths count characters.
type ContentConfig struct {
	TitleMax       int    `yaml:"title_max"`
	DescriptionMax int    `yaml:"description_max"`
	TagMax         int    `yaml:"tag_max"`
	UploadMaxMB    int    `yaml:"upload_max_mb"`
	ImagePrefix    string `yaml:"image_prefix"`
	MediaPrefix    string `yaml:"media_prefix"`
}

// Load reads .env (when present) and the YAML file at configPath, applies
// BLOG_* overrides and validates the result. A missing config file is allowed
// and yields the defaults.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaultAppConfig()
	cfg.baseDir = filepath.Dir(path)
	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && configPath == "":
	case err != nil:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	default:
		if err := decode(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	applyEnv(&cfg, os.Getenv)
	normalize(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

func decode(content []byte, cfg *AppConfig) error {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	return decoder.Decode(cfg)
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Driver:    defaultDBDriver,
			Host:      defaultDBHost,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Storage: StorageConfig{
			Driver:     defaultStorageDriver,
			HostMarker: defaultHostMarker,
			SignTTL:    defaultSignTTL,
		},
		Auth: AuthConfig{
			AdminGroup: defaultAdminGroup,
			TokenTTL:   defaultTokenTTL,
		},
		Content: ContentConfig{
			TitleMax:       defaultTitleMax,
			DescriptionMax: defaultDescriptionMax,
			TagMax:         defaultTagMax,
			UploadMaxMB:    defaultUploadMaxMB,
			ImagePrefix:    defaultImagePrefix,
			MediaPrefix:    defaultMediaPrefix,
		},
	}
}

// applyEnv lets secrets stay out of the YAML file.
func applyEnv(cfg *AppConfig, getenv func(string) string) {
	set := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(envPrefix + name)); v != "" {
			*dst = v
		}
	}
	set("ENV", &cfg.Env)
	set("JWT_SECRET", &cfg.JWTSecret)
	set("DB_DRIVER", &cfg.Database.Driver)
	set("DB_DSN", &cfg.Database.DSN)
	set("DB_PASSWORD", &cfg.Database.Password)
	set("MONGO_URI", &cfg.Database.MongoURI)
	set("REDIS_URL", &cfg.Redis.URL)
	set("STORAGE_DRIVER", &cfg.Storage.Driver)
	set("S3_ACCESS_KEY_ID", &cfg.Storage.AccessKeyID)
	set("S3_SECRET_ACCESS_KEY", &cfg.Storage.SecretAccessKey)
	set("SUPABASE_URL", &cfg.Storage.SupabaseURL)
	set("SUPABASE_KEY", &cfg.Storage.SupabaseKey)
	if cfg.Redis.URL != "" {
		cfg.Redis.Enable = true
	}
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Timezone != "" {
		if _, err := ParseTimezone(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}

	db := c.Database
	switch db.Driver {
	case DriverMySQL:
		if db.Port < 1 || db.Port > 65535 {
			return fmt.Errorf("invalid database.port %d, expected 1-65535", db.Port)
		}
		if _, err := mysql.ParseDSN(db.DSNValue()); err != nil {
			return fmt.Errorf("invalid mysql dsn: %w", err)
		}
	case DriverPostgres:
		if db.Port < 1 || db.Port > 65535 {
			return fmt.Errorf("invalid database.port %d, expected 1-65535", db.Port)
		}
	case DriverMongo:
		if db.MongoDatabase == "" {
			return errors.New("database.mongo_database is required for the mongo driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database.driver %q, expected mysql, postgres, mongo or memory", db.Driver)
	}

	if c.Redis.Enable {
		if c.Redis.Port < 1 || c.Redis.Port > 65535 {
			return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
		}
	}

	st := c.Storage
	switch st.Driver {
	case StorageS3:
		if st.Bucket == "" || st.Region == "" {
			return errors.New("storage.bucket and storage.region are required for the s3 driver")
		}
	case StorageSupabase:
		if st.Bucket == "" || st.SupabaseURL == "" || st.SupabaseKey == "" {
			return errors.New("storage.bucket, storage.supabase_url and storage.supabase_key are required for the supabase driver")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q, expected s3, supabase or memory", st.Driver)
	}
	if st.SignTTL <= 0 {
		return fmt.Errorf("invalid storage.sign_ttl %d, expected > 0", st.SignTTL)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("invalid auth.token_ttl %d, expected > 0", c.Auth.TokenTTL)
	}

	ct := c.Content
	if ct.TitleMax <= 0 || ct.DescriptionMax <= 0 || ct.TagMax <= 0 || ct.UploadMaxMB <= 0 {
		return errors.New("content limits must be positive")
	}
	return nil
}

func (c *AppConfig) IsDev() bool {
	return c.Env == "development"
}

// LogFileDir is where the daily log files go; empty disables file logging.
func (c *AppConfig) LogFileDir() string {
	return resolvePath(c.baseDir, c.LogDir)
}

func (c *AppConfig) SignTTL() time.Duration {
	return time.Duration(c.Storage.SignTTL) * time.Second
}

func (c *AppConfig) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTL) * time.Second
}

func (c *AppConfig) UploadMaxBytes() int64 {
	return int64(c.Content.UploadMaxMB) << 20
}
