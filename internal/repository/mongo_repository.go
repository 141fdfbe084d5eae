// internal/repository/mongo_repository.go

package repository

import (
	"context"
	"errors"
	"fmt"

	"site_registry/internal/config"
	"site_registry/internal/domain"
	"site_registry/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSiteRepo implements SiteRepository for MongoDB
type MongoSiteRepo struct {
	db *config.MongoDatabase
}

// NewMongoSiteRepo creates a new MongoDB site repository
func NewMongoSiteRepo(db *config.MongoDatabase) *MongoSiteRepo {
	return &MongoSiteRepo{db: db}
}

// List retrieves sites, newest first
func (r *MongoSiteRepo) List(ctx context.Context, filter domain.SiteFilter) ([]domain.Site, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "id", Value: -1}})

	cursor, err := r.db.Sites.Find(ctx, query, opts)
	if err != nil {
		logger.Errorf("Site query failed: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	results := make([]domain.Site, 0)
	if err := cursor.All(ctx, &results); err != nil {
		logger.Errorf("Site cursor decode failed: %v", err)
		return nil, err
	}

	return results, nil
}

// Get retrieves one site by its id
func (r *MongoSiteRepo) Get(ctx context.Context, id int) (domain.Site, error) {
	var site domain.Site
	err := r.db.Sites.FindOne(ctx, bson.M{"id": id}).Decode(&site)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Site{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Site{}, fmt.Errorf("find site %d: %w", id, err)
	}
	return site, nil
}

// MaxID returns the highest site id
func (r *MongoSiteRepo) MaxID(ctx context.Context) (int, bool, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "id", Value: -1}}).
		SetProjection(bson.M{"id": 1})

	var doc struct {
		ID int `bson:"id"`
	}
	err := r.db.Sites.FindOne(ctx, bson.M{}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find max site id: %w", err)
	}
	return doc.ID, true, nil
}

// Insert stores a new site; the unique id index rejects duplicates
func (r *MongoSiteRepo) Insert(ctx context.Context, site domain.Site) error {
	_, err := r.db.Sites.InsertOne(ctx, site)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrDuplicateID
	}
	if err != nil {
		logger.Errorf("Site insert failed: %v", err)
		return fmt.Errorf("insert site %d: %w", site.ID, err)
	}

	logger.Debugf("Inserted site %d", site.ID)
	return nil
}

// Replace overwrites the stored document with the same id
func (r *MongoSiteRepo) Replace(ctx context.Context, site domain.Site) error {
	result, err := r.db.Sites.ReplaceOne(ctx, bson.M{"id": site.ID}, site)
	if err != nil {
		logger.Errorf("Site replace failed: %v", err)
		return fmt.Errorf("replace site %d: %w", site.ID, err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a site and returns the removed record
func (r *MongoSiteRepo) Delete(ctx context.Context, id int) (domain.Site, error) {
	var site domain.Site
	err := r.db.Sites.FindOneAndDelete(ctx, bson.M{"id": id}).Decode(&site)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Site{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Site{}, fmt.Errorf("delete site %d: %w", id, err)
	}
	return site, nil
}

// Type returns database type
func (r *MongoSiteRepo) Type() string {
	return "mongo"
}

// MongoUserRepo implements UserRepository for MongoDB
type MongoUserRepo struct {
	db *config.MongoDatabase
}

// NewMongoUserRepo creates a new MongoDB user repository
func NewMongoUserRepo(db *config.MongoDatabase) *MongoUserRepo {
	return &MongoUserRepo{db: db}
}

func (r *MongoUserRepo) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *MongoUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

func (r *MongoUserRepo) findOne(ctx context.Context, query bson.M) (domain.User, error) {
	var user domain.User
	err := r.db.Users.FindOne(ctx, query).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// Insert stores a new user; the unique username index rejects duplicates
func (r *MongoUserRepo) Insert(ctx context.Context, user domain.User) error {
	_, err := r.db.Users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrUserExists
	}
	if err != nil {
		logger.Errorf("User insert failed: %v", err)
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}
