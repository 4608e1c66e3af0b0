package config

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"

	defaultDBDriver   = DriverMySQL
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultPGPort     = 5432
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "press"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultMongoURI   = "mongodb://127.0.0.1:27017"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
	defaultRedisDB   = 0

	defaultStorageDriver = StorageS3
	defaultHostMarker    = "amazonaws.com"
	defaultSignTTL       = 7 * 24 * 60 * 60 // seconds

	defaultAdminGroup = "ADMINS"
	defaultTokenTTL   = 7 * 24 * 60 * 60 // seconds

	defaultTitleMax       = 100
	defaultDescriptionMax = 160
	defaultTagMax         = 50
	defaultUploadMaxMB    = 500
	defaultImagePrefix    = "public/images/"
	defaultMediaPrefix    = "posts/"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"

	StorageS3       = "s3"
	StorageSupabase = "supabase"
	StorageMemory   = "memory"
)

// envPrefix namespaces the environment overrides, e.g. BLOG_JWT_SECRET.
const envPrefix = "BLOG_"
