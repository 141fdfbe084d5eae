package config

import (
	"context"
	"fmt"
	"time"

	influxdb3 "github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"site_registry/pkg/logger"
)

// Database interface for operations
type Database interface {
	Close() error
	GetType() string
}

// MongoDatabase wraps MongoDB client
type MongoDatabase struct {
	Client   *mongo.Client
	Database *mongo.Database
	Sites    *mongo.Collection
	Users    *mongo.Collection
}

// MemoryDatabase marks the in-process store; repositories own the data.
type MemoryDatabase struct{}

// InfluxDatabase wraps InfluxDB v3 client
type InfluxDatabase struct {
	Client   *influxdb3.Client
	Database string
}

// InitDatabase creates appropriate database connection
func InitDatabase(cfg *Config) (Database, error) {
	switch cfg.DBType {
	case "mongo":
		return initMongo(cfg)
	case "memory":
		logger.Warn("Using in-memory store, data is lost on restart")
		return &MemoryDatabase{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}
}

// MongoDB initialization
func initMongo(cfg *Config) (*MongoDatabase, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetMaxPoolSize(50).
		SetMinPoolSize(5)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	database := client.Database(cfg.MongoDB)
	sites := database.Collection(cfg.MongoSitesCollection)
	users := database.Collection(cfg.MongoUsersCollection)

	if err := createMongoIndexes(ctx, sites, users); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Infof("MongoDB connected: %s (%s, %s)", cfg.MongoDB, cfg.MongoSitesCollection, cfg.MongoUsersCollection)

	return &MongoDatabase{
		Client:   client,
		Database: database,
		Sites:    sites,
		Users:    users,
	}, nil
}

// Site ids and usernames are unique; duplicate inserts fail at the index.
func createMongoIndexes(ctx context.Context, sites, users *mongo.Collection) error {
	siteIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		},
	}
	if _, err := sites.Indexes().CreateMany(ctx, siteIndexes); err != nil {
		return err
	}

	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := users.Indexes().CreateMany(ctx, userIndexes)
	return err
}

func (m *MongoDatabase) Close() error {
	if m.Client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return m.Client.Disconnect(ctx)
	}
	return nil
}

func (m *MongoDatabase) GetType() string {
	return "mongo"
}

func (m *MemoryDatabase) Close() error {
	return nil
}

func (m *MemoryDatabase) GetType() string {
	return "memory"
}

// InitInflux connects the status history store. It returns nil without an
// error when INFLUXDB_URL is not configured.
func InitInflux(cfg *Config) (*InfluxDatabase, error) {
	if cfg.InfluxURL == "" {
		return nil, nil
	}
	if cfg.InfluxDatabase == "" {
		return nil, fmt.Errorf("INFLUXDB_DATABASE is required")
	}

	logger.WithFields(map[string]interface{}{
		"url":      cfg.InfluxURL,
		"database": cfg.InfluxDatabase,
		"token":    maskToken(cfg.InfluxToken),
	}, "Initializing InfluxDB v3 connection")

	clientConfig := influxdb3.ClientConfig{
		Host:     cfg.InfluxURL,
		Database: cfg.InfluxDatabase,
		WriteOptions: &influxdb3.WriteOptions{
			DefaultTags: map[string]string{
				"source": "site_registry",
			},
		},
	}

	// InfluxDB v3 Core may run without auth
	if cfg.InfluxToken != "" {
		clientConfig.Token = cfg.InfluxToken
	}

	client, err := influxdb3.New(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("influx client creation failed: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("influx client is nil after creation")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	iterator, err := client.Query(ctx, "SHOW TABLES")
	if err != nil {
		logger.Warnf("InfluxDB test query failed (may be an empty database): %v", err)
	} else {
		count := 0
		for iterator.Next() {
			count++
		}
		logger.Debugf("InfluxDB has %d tables", count)
	}

	logger.Infof("InfluxDB connected: %s", cfg.InfluxDatabase)

	return &InfluxDatabase{
		Client:   client,
		Database: cfg.InfluxDatabase,
	}, nil
}

func (i *InfluxDatabase) Close() error {
	if i.Client != nil {
		i.Client.Close()
	}
	return nil
}

func (i *InfluxDatabase) GetType() string {
	return "influx"
}

// Helper to mask token in logs
func maskToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
