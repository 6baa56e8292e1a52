package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docchat/internal/model"
	"docchat/internal/pkg/cache"
)

// DocumentDBRepo 文档库目录仓库
// 目录列表带可选 Redis 缓存，创建/删除时失效
type DocumentDBRepo struct {
	collection *mongo.Collection
	cache      *cache.RedisCache // 可为 nil
}

// NewDocumentDBRepo 创建文档库目录仓库
func NewDocumentDBRepo(db *mongo.Database, redisCache *cache.RedisCache) *DocumentDBRepo {
	return &DocumentDBRepo{
		collection: db.Collection("document_databases"),
		cache:      redisCache,
	}
}

// Create 注册新文档库
func (r *DocumentDBRepo) Create(ctx context.Context, name, description string) (*model.DocumentDatabase, error) {
	db := &model.DocumentDatabase{
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
	}

	result, err := r.collection.InsertOne(ctx, db)
	if err != nil {
		return nil, err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		db.ID = oid
	}

	r.invalidateCatalog(ctx)
	return db, nil
}

// List 查询文档库目录，创建时间倒序
func (r *DocumentDBRepo) List(ctx context.Context) ([]*model.DocumentDatabase, error) {
	// 先查缓存
	if r.cache != nil {
		var cached []*model.DocumentDatabase
		if err := r.cache.Get(ctx, cache.DatabaseCatalogCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var dbs []*model.DocumentDatabase
	if err := cursor.All(ctx, &dbs); err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, cache.DatabaseCatalogCacheKey, dbs, cache.DatabaseCatalogCacheTTL); err != nil {
			log.Warn().Err(err).Msg("failed to cache database catalog")
		}
	}

	return dbs, nil
}

// FindByName 根据库名查询
func (r *DocumentDBRepo) FindByName(ctx context.Context, name string) (*model.DocumentDatabase, error) {
	var db model.DocumentDatabase
	err := r.collection.FindOne(ctx, bson.M{"name": name}).Decode(&db)
	if err != nil {
		return nil, err
	}
	return &db, nil
}

// Delete 删除文档库元数据
func (r *DocumentDBRepo) Delete(ctx context.Context, name string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"name": name})
	if err != nil {
		return err
	}
	r.invalidateCatalog(ctx)
	return nil
}

func (r *DocumentDBRepo) invalidateCatalog(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, cache.DatabaseCatalogCacheKey); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate database catalog cache")
	}
}
