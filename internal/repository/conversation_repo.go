package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docchat/internal/model"
)

// ConversationRepo 对话仓库
// 消息单独存放在 messages 集合，删除对话时级联删除
type ConversationRepo struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

// NewConversationRepo 创建对话仓库
func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	return &ConversationRepo{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
	}
}

// Create 创建对话，返回新对话 ID
// 标题默认 "Conversación DD/MM/YYYY"
func (r *ConversationRepo) Create(ctx context.Context, title string) (string, error) {
	if title == "" {
		title = fmt.Sprintf("Conversación %s", time.Now().Format("02/01/2006"))
	}

	conv := &model.Conversation{
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	result, err := r.conversations.InsertOne(ctx, conv)
	if err != nil {
		return "", err
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}
	return oid.Hex(), nil
}

// List 查询对话列表，创建时间倒序
func (r *ConversationRepo) List(ctx context.Context) ([]*model.Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "created_at", Value: -1}})

	cursor, err := r.conversations.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var convs []*model.Conversation
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, err
	}

	return convs, nil
}

// FindByID 根据 ID 查询
func (r *ConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var conv model.Conversation
	err = r.conversations.FindOne(ctx, bson.M{"_id": objectID}).Decode(&conv)
	if err != nil {
		return nil, err
	}

	return &conv, nil
}

// SaveMessage 追加消息，内容始终为字符串
func (r *ConversationRepo) SaveMessage(ctx context.Context, conversationID, role, content string) error {
	msg := &model.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}

	if _, err := r.messages.InsertOne(ctx, msg); err != nil {
		return err
	}

	objectID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return err
	}
	_, err = r.conversations.UpdateByID(ctx, objectID, bson.M{
		"$set": bson.M{"updated_at": time.Now()},
	})
	return err
}

// GetMessages 读取对话消息，时间正序
func (r *ConversationRepo) GetMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "created_at", Value: 1}})

	cursor, err := r.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []*model.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}

	return msgs, nil
}

// Delete 删除对话及其全部消息
func (r *ConversationRepo) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	// 先删消息，再删对话
	if _, err := r.messages.DeleteMany(ctx, bson.M{"conversation_id": id}); err != nil {
		return err
	}

	_, err = r.conversations.DeleteOne(ctx, bson.M{"_id": objectID})
	return err
}
