package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mx-space/press/internal/config"
	"github.com/mx-space/press/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Conn holds whichever backend the config selected. SQL is set for mysql and
// postgres, Mongo for mongo; both are nil for the memory driver.
type Conn struct {
	Driver string
	SQL    *gorm.DB
	Mongo  *mongo.Database

	mongoClient *mongo.Client
}

// Connect opens the configured database and, for SQL drivers, optionally runs
// auto-migration. Mongo collections get their lookup indexes instead.
func Connect(ctx context.Context, cfg *config.AppConfig, autoMigrate bool) (*Conn, error) {
	conn := &Conn{Driver: cfg.Database.Driver}
	switch cfg.Database.Driver {
	case config.DriverMySQL, config.DriverPostgres:
		db, err := openDB(cfg, resolveLogLevel(cfg))
		if err != nil {
			return nil, err
		}
		if autoMigrate {
			if err := migrate(db); err != nil {
				return nil, fmt.Errorf("migration failed: %w", err)
			}
		}
		conn.SQL = db
	case config.DriverMongo:
		client, err := openMongo(ctx, cfg.Database.MongoURI)
		if err != nil {
			return nil, err
		}
		conn.mongoClient = client
		conn.Mongo = client.Database(cfg.Database.MongoDatabase)
		if autoMigrate {
			if err := ensureMongoIndexes(ctx, conn.Mongo); err != nil {
				_ = client.Disconnect(ctx)
				return nil, fmt.Errorf("mongo indexes: %w", err)
			}
		}
	case config.DriverMemory:
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	return conn, nil
}

// Close releases the underlying connection pool.
func (c *Conn) Close(ctx context.Context) error {
	if c.SQL != nil {
		sqlDB, err := c.SQL.DB()
		if err != nil {
			return fmt.Errorf("resolve sql db: %w", err)
		}
		return sqlDB.Close()
	}
	if c.mongoClient != nil {
		return c.mongoClient.Disconnect(ctx)
	}
	return nil
}

func resolveLogLevel(cfg *config.AppConfig) logger.LogLevel {
	if cfg.IsDev() {
		return logger.Info
	}
	return logger.Warn
}

func openDB(cfg *config.AppConfig, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.Database.DSNValue())
	default:
		dialector = mysql.New(mysql.Config{
			DSN:               cfg.Database.DSNValue(),
			DefaultStringSize: 191,
		})
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}

func openMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connection failed: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}
	return client, nil
}

// migrate runs GORM auto-migration for all models.
func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.UserModel{},
		&models.CategoryModel{},
		&models.TagModel{},
		&models.ImageModel{},
		&models.ArticleModel{},
		&models.ArticleTagModel{},
	); err != nil {
		return err
	}

	if db.Dialector.Name() == "mysql" {
		if err := db.Exec("ALTER TABLE `articles` MODIFY COLUMN `content` LONGTEXT NULL").Error; err != nil {
			return err
		}
	}
	return nil
}

// ensureMongoIndexes mirrors the SQL indexes the services filter on.
func ensureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]string{
		models.ArticleModel{}.TableName():    {"url", "published", "category_id"},
		models.CategoryModel{}.TableName():   {"url"},
		models.TagModel{}.TableName():        {"url"},
		models.ArticleTagModel{}.TableName(): {"article_id", "tag_id"},
		models.UserModel{}.TableName():       {"username"},
	}
	var errs []error
	for coll, fields := range indexes {
		specs := make([]mongo.IndexModel, 0, len(fields))
		for _, f := range fields {
			specs = append(specs, mongo.IndexModel{Keys: bson.D{{Key: f, Value: 1}}})
		}
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, specs); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", coll, err))
		}
	}
	return errors.Join(errs...)
}
