package config

import (
	"strings"
)

func normalize(cfg *AppConfig) {
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins)
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.Storage = normalizeStorageConfig(cfg.Storage)
	cfg.Auth.AdminGroup = strings.TrimSpace(cfg.Auth.AdminGroup)
	if cfg.Auth.AdminGroup == "" {
		cfg.Auth.AdminGroup = defaultAdminGroup
	}
	cfg.Content.ImagePrefix = normalizePrefix(cfg.Content.ImagePrefix, defaultImagePrefix)
	cfg.Content.MediaPrefix = normalizePrefix(cfg.Content.MediaPrefix, defaultMediaPrefix)
}

func normalizeDatabaseConfig(cfg DatabaseRuntimeConfig) DatabaseRuntimeConfig {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	if cfg.Driver == "" {
		cfg.Driver = defaultDBDriver
	}
	if cfg.Driver == "postgresql" || cfg.Driver == "pg" {
		cfg.Driver = DriverPostgres
	}
	if cfg.Driver == "mongodb" {
		cfg.Driver = DriverMongo
	}
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		cfg.Host = defaultDBHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultDBPort
		if cfg.Driver == DriverPostgres {
			cfg.Port = defaultPGPort
		}
	}
	cfg.User = strings.TrimSpace(cfg.User)
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		cfg.Name = defaultDBName
	}
	cfg.Charset = strings.TrimSpace(cfg.Charset)
	cfg.Loc = strings.TrimSpace(cfg.Loc)
	cfg.Params = copyStringMap(cfg.Params)
	cfg.MongoURI = strings.TrimSpace(cfg.MongoURI)
	if cfg.MongoURI == "" {
		cfg.MongoURI = defaultMongoURI
	}
	cfg.MongoDatabase = strings.TrimSpace(cfg.MongoDatabase)
	if cfg.MongoDatabase == "" && cfg.Driver == DriverMongo {
		cfg.MongoDatabase = cfg.Name
	}
	return cfg
}

func normalizeRedisConfig(cfg RedisRuntimeConfig) RedisRuntimeConfig {
	cfg.URL = normalizeRedisRawURL(cfg.URL)
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		cfg.Host = defaultRedisHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultRedisPort
	}
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Params = copyStringMap(cfg.Params)
	return cfg
}

func normalizeRedisRawURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		return "redis://" + raw
	}
	return raw
}

func normalizeStorageConfig(cfg StorageConfig) StorageConfig {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	if cfg.Driver == "" {
		cfg.Driver = defaultStorageDriver
	}
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.Region = strings.TrimSpace(cfg.Region)
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	cfg.HostMarker = strings.TrimSpace(cfg.HostMarker)
	if cfg.HostMarker == "" {
		cfg.HostMarker = defaultHostMarker
	}
	markers := make([]string, 0, len(cfg.PrefixMarkers))
	for _, m := range cfg.PrefixMarkers {
		m = strings.Trim(strings.TrimSpace(m), "/")
		if m != "" {
			markers = append(markers, "/"+m+"/")
		}
	}
	cfg.PrefixMarkers = markers
	cfg.SupabaseURL = strings.TrimRight(strings.TrimSpace(cfg.SupabaseURL), "/")
	return cfg
}

// normalizePrefix makes a storage prefix relative and slash-terminated.
func normalizePrefix(prefix, fallback string) string {
	p := strings.Trim(strings.TrimSpace(prefix), "/")
	if p == "" {
		return fallback
	}
	return p + "/"
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	env = strings.ToLower(strings.TrimSpace(env))
	switch env {
	case "", "dev":
		return defaultEnv
	case "prod":
		return "production"
	}
	return env
}

func copyStringMap(input map[string]string) map[string]string {
	if len(input) == 0 {
		return nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		out[k] = v
	}
	return out
}
