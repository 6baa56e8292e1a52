package chat

import (
	"sync"

	"docchat/internal/pkg/storage"
)

// AgentFactory 为新会话构造一对已互相链接的智能体
type AgentFactory func() (Conversationalist, CorpusRetriever)

// Manager 会话注册表
// 按会话 ID 持有各自独立的编排器，会话之间不共享可变状态
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Controller

	store     ConversationStore
	memory    MemoryDeleter
	catalog   CorpusCatalog
	storage   storage.Storage
	newAgents AgentFactory
}

// NewManager 创建会话注册表
func NewManager(store ConversationStore, memory MemoryDeleter, catalog CorpusCatalog, st storage.Storage, newAgents AgentFactory) *Manager {
	return &Manager{
		sessions:  make(map[string]*Controller),
		store:     store,
		memory:    memory,
		catalog:   catalog,
		storage:   st,
		newAgents: newAgents,
	}
}

// GetOrCreate 取得会话的编排器，不存在时创建
func (m *Manager) GetOrCreate(sessionID string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctrl, ok := m.sessions[sessionID]; ok {
		return ctrl
	}

	conversational, retriever := m.newAgents()
	state := NewSessionState(m.store, m.memory, m.catalog, conversational, retriever)
	ctrl := NewController(state, NewResolver(m.storage))

	m.sessions[sessionID] = ctrl
	return ctrl
}

// Get 取得已存在的会话编排器
func (m *Manager) Get(sessionID string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctrl, ok := m.sessions[sessionID]
	return ctrl, ok
}

// Delete 丢弃会话状态
func (m *Manager) Delete(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}
