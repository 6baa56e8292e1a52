package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation 对话实体
type Conversation struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Message 消息
// Content 始终以字符串持久化：助手的结构化回答先序列化为 JSON 字符串
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`
	Role           string             `bson:"role" json:"role"`
	Content        string             `bson:"content" json:"content"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// ConversationMemory 对话的智能体记忆（按对话保存，随对话删除）
type ConversationMemory struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`
	Summary        string             `bson:"summary" json:"summary"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// DocumentDatabase 文档库（语料库）元数据
type DocumentDatabase struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// Document 文档实体
type Document struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DatabaseName        string             `bson:"database_name" json:"database_name"`
	Title               string             `bson:"title" json:"title"`
	Content             string             `bson:"content" json:"content"`
	SemanticDescription string             `bson:"semantic_description,omitempty" json:"semantic_description,omitempty"`
	Filename            string             `bson:"filename,omitempty" json:"filename,omitempty"`
	CreatedAt           time.Time          `bson:"created_at" json:"created_at"`
}
