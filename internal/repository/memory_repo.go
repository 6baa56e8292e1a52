package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docchat/internal/model"
)

// MemoryRepo 对话记忆仓库
// 智能体在对话间保留的摘要记忆，随对话删除
type MemoryRepo struct {
	collection *mongo.Collection
}

// NewMemoryRepo 创建对话记忆仓库
func NewMemoryRepo(db *mongo.Database) *MemoryRepo {
	return &MemoryRepo{
		collection: db.Collection("conversation_memory"),
	}
}

// Get 读取对话记忆，不存在时返回空记忆
func (r *MemoryRepo) Get(ctx context.Context, conversationID string) (*model.ConversationMemory, error) {
	var mem model.ConversationMemory
	err := r.collection.FindOne(ctx, bson.M{"conversation_id": conversationID}).Decode(&mem)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &model.ConversationMemory{ConversationID: conversationID}, nil
		}
		return nil, err
	}
	return &mem, nil
}

// Save 写入对话记忆（upsert）
func (r *MemoryRepo) Save(ctx context.Context, conversationID, summary string) error {
	update := bson.M{
		"$set": bson.M{
			"summary":    summary,
			"updated_at": time.Now(),
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"conversation_id": conversationID}, update, opts)
	return err
}

// DeleteByConversation 删除对话的全部记忆
func (r *MemoryRepo) DeleteByConversation(ctx context.Context, conversationID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	return err
}
