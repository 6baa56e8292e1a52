package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docchat/internal/model"
)

// DocumentRepo 文档仓库
type DocumentRepo struct {
	collection *mongo.Collection
}

// NewDocumentRepo 创建文档仓库
func NewDocumentRepo(db *mongo.Database) *DocumentRepo {
	return &DocumentRepo{
		collection: db.Collection("documents"),
	}
}

// Save 保存文档
func (r *DocumentRepo) Save(ctx context.Context, doc *model.Document) error {
	doc.CreatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return err
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return nil
}

// ListByDatabase 查询指定库的文档，创建时间倒序
func (r *DocumentRepo) ListByDatabase(ctx context.Context, databaseName string) ([]*model.Document, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"database_name": databaseName}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []*model.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	return docs, nil
}

// Delete 删除文档
func (r *DocumentRepo) Delete(ctx context.Context, databaseName, docID string) error {
	objectID, err := primitive.ObjectIDFromHex(docID)
	if err != nil {
		return err
	}

	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objectID, "database_name": databaseName})
	return err
}

// DeleteByDatabase 删除指定库的全部文档
func (r *DocumentRepo) DeleteByDatabase(ctx context.Context, databaseName string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"database_name": databaseName})
	return err
}
