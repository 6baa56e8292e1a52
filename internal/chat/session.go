package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"docchat/internal/model"
)

// ErrNoDatabaseSelected 会话当前没有可用的文档库
var ErrNoDatabaseSelected = errors.New("no document database selected")

// ConversationStore 对话持久化能力
type ConversationStore interface {
	Create(ctx context.Context, title string) (string, error)
	List(ctx context.Context) ([]*model.Conversation, error)
	SaveMessage(ctx context.Context, conversationID, role, content string) error
	GetMessages(ctx context.Context, conversationID string) ([]*model.Message, error)
	Delete(ctx context.Context, id string) error
}

// MemoryDeleter 对话记忆删除能力，随对话删除级联
type MemoryDeleter interface {
	DeleteByConversation(ctx context.Context, conversationID string) error
}

// CorpusCatalog 文档库目录
type CorpusCatalog interface {
	List(ctx context.Context) ([]*model.DocumentDatabase, error)
}

// Conversationalist 对话智能体契约
type Conversationalist interface {
	SetConversationID(id string)
	ConversationID() string
	ProcessUserQuery(ctx context.Context, query string) (*model.AssistantPayload, error)
}

// CorpusRetriever 检索智能体契约
type CorpusRetriever interface {
	SetDatabase(name string)
	Database() string
}

// SessionState 会话状态
// 每个逻辑会话一个实例，持有当前对话、当前文档库与本会话的智能体
// 状态迁移后恒有：对话智能体绑定的对话 ID == currentConversationID，
// 检索智能体绑定的库 == currentDatabase
type SessionState struct {
	mu sync.Mutex

	store   ConversationStore
	memory  MemoryDeleter
	catalog CorpusCatalog

	conversational Conversationalist
	retriever      CorpusRetriever

	initialized           bool
	currentConversationID string
	currentDatabase       string
}

// NewSessionState 创建会话状态
func NewSessionState(store ConversationStore, memory MemoryDeleter, catalog CorpusCatalog, conversational Conversationalist, retriever CorpusRetriever) *SessionState {
	return &SessionState{
		store:          store,
		memory:         memory,
		catalog:        catalog,
		conversational: conversational,
		retriever:      retriever,
	}
}

// EnsureInitialized 幂等初始化
// 首次调用创建新对话并选取目录中的第一个文档库；每次调用都重新绑定对话智能体
func (s *SessionState) EnsureInitialized(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureInitializedLocked(ctx)
}

func (s *SessionState) ensureInitializedLocked(ctx context.Context) error {
	if !s.initialized {
		convID, err := s.store.Create(ctx, "")
		if err != nil {
			return err
		}
		s.currentConversationID = convID

		databases, err := s.catalog.List(ctx)
		if err != nil {
			return err
		}
		if len(databases) > 0 {
			s.currentDatabase = databases[0].Name
			s.retriever.SetDatabase(s.currentDatabase)
		}

		s.initialized = true
		log.Debug().Str("conversation_id", convID).Str("database", s.currentDatabase).Msg("session initialized")
	}

	s.conversational.SetConversationID(s.currentConversationID)
	return nil
}

// SwitchConversation 切换当前对话并重新绑定对话智能体
func (s *SessionState) SwitchConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentConversationID = id
	s.conversational.SetConversationID(id)
}

// NewConversation 创建新对话并切换过去，返回新对话 ID
func (s *SessionState) NewConversation(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newConversationLocked(ctx)
}

func (s *SessionState) newConversationLocked(ctx context.Context) (string, error) {
	convID, err := s.store.Create(ctx, "")
	if err != nil {
		return "", err
	}

	s.currentConversationID = convID
	s.conversational.SetConversationID(convID)
	return convID, nil
}

// SwitchDatabase 切换当前文档库并重新绑定检索智能体，同名切换为空操作
func (s *SessionState) SwitchDatabase(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == s.currentDatabase {
		return
	}
	s.currentDatabase = name
	s.retriever.SetDatabase(name)
}

// DeleteConversation 删除对话及其记忆
// 删除的是当前对话时，立即创建并切换到新对话，会话绝不指向已删除的对话
func (s *SessionState) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.memory.DeleteByConversation(ctx, id); err != nil {
		log.Warn().Err(err).Str("conversation_id", id).Msg("failed to delete conversation memory")
	}

	if id == s.currentConversationID {
		if _, err := s.newConversationLocked(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CurrentConversationID 当前对话 ID
func (s *SessionState) CurrentConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentConversationID
}

// CurrentDatabase 当前文档库名，无可用库时为空串
func (s *SessionState) CurrentDatabase() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentDatabase
}
