package chat

import (
	"context"
	"fmt"
	"sync"

	"docchat/internal/model"
)

// MessageView 渲染后的单条消息
// 正文在前，其后是已解析的引用，最后是 metrics 行
type MessageView struct {
	Role        string              `json:"role"`
	Text        string              `json:"text"`
	References  []ResolvedReference `json:"references,omitempty"`
	MetricsLine string              `json:"metrics_line,omitempty"`
	CreatedAt   string              `json:"created_at,omitempty"`
}

// SessionView 一次完整渲染的会话视图
type SessionView struct {
	Databases             []string              `json:"databases"`
	CurrentDatabase       string                `json:"current_database"`
	Conversations         []*model.Conversation `json:"conversations"`
	CurrentConversationID string                `json:"current_conversation_id"`
	Messages              []MessageView         `json:"messages"`
}

// Controller 会话编排器
// 动作 -> 状态迁移 -> 渲染：每个动作完成后重新渲染整个会话视图
type Controller struct {
	submitMu sync.Mutex // 同一会话的提交串行执行

	state    *SessionState
	resolver *Resolver
}

// NewController 创建会话编排器
func NewController(state *SessionState, resolver *Resolver) *Controller {
	return &Controller{
		state:    state,
		resolver: resolver,
	}
}

// State 本会话的状态
func (c *Controller) State() *SessionState {
	return c.state
}

// Render 渲染完整会话视图
func (c *Controller) Render(ctx context.Context) (*SessionView, error) {
	if err := c.state.EnsureInitialized(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	databases, err := c.state.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list document databases: %w", err)
	}
	names := make([]string, 0, len(databases))
	for _, db := range databases {
		names = append(names, db.Name)
	}

	conversations, err := c.state.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	currentDB := c.state.CurrentDatabase()
	currentConv := c.state.CurrentConversationID()

	messages, err := c.state.store.GetMessages(ctx, currentConv)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	views := make([]MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, c.renderMessage(ctx, msg, currentDB))
	}

	return &SessionView{
		Databases:             names,
		CurrentDatabase:       currentDB,
		Conversations:         conversations,
		CurrentConversationID: currentConv,
		Messages:              views,
	}, nil
}

// renderMessage 归一化并渲染单条消息，引用逐条解析
func (c *Controller) renderMessage(ctx context.Context, msg *model.Message, corpusName string) MessageView {
	content := Normalize(msg.Content)

	view := MessageView{
		Role:        msg.Role,
		Text:        content.Response(),
		MetricsLine: content.MetricsLine(),
	}
	if !msg.CreatedAt.IsZero() {
		view.CreatedAt = msg.CreatedAt.Format("2006-01-02 15:04:05")
	}

	for _, citation := range content.References() {
		ref := c.resolver.Resolve(ctx, citation, corpusName)
		ref.Display = ref.DisplayLabel()
		view.References = append(view.References, ref)
	}

	return view
}

// Submit 提交用户输入
// 无文档库时直接拒绝，不写存储也不调用智能体；
// 用户消息先落库，智能体回答序列化后落库，最后整体重新渲染
func (c *Controller) Submit(ctx context.Context, text string) (*SessionView, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	if err := c.state.EnsureInitialized(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	if c.state.CurrentDatabase() == "" {
		return nil, ErrNoDatabaseSelected
	}

	convID := c.state.CurrentConversationID()
	if err := c.state.store.SaveMessage(ctx, convID, model.RoleUser, text); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	payload, err := c.state.conversational.ProcessUserQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to process query: %w", err)
	}

	serialized, err := payload.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize assistant payload: %w", err)
	}
	if err := c.state.store.SaveMessage(ctx, convID, model.RoleAssistant, serialized); err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	return c.Render(ctx)
}

// SwitchConversation 切换对话后重新渲染
func (c *Controller) SwitchConversation(ctx context.Context, id string) (*SessionView, error) {
	if err := c.state.EnsureInitialized(ctx); err != nil {
		return nil, err
	}
	c.state.SwitchConversation(id)
	return c.Render(ctx)
}

// NewConversation 新建对话后重新渲染
func (c *Controller) NewConversation(ctx context.Context) (*SessionView, error) {
	if err := c.state.EnsureInitialized(ctx); err != nil {
		return nil, err
	}
	if _, err := c.state.NewConversation(ctx); err != nil {
		return nil, err
	}
	return c.Render(ctx)
}

// SwitchDatabase 切换文档库后重新渲染
func (c *Controller) SwitchDatabase(ctx context.Context, name string) (*SessionView, error) {
	if err := c.state.EnsureInitialized(ctx); err != nil {
		return nil, err
	}
	c.state.SwitchDatabase(name)
	return c.Render(ctx)
}

// DeleteConversation 删除对话后重新渲染
func (c *Controller) DeleteConversation(ctx context.Context, id string) (*SessionView, error) {
	if err := c.state.EnsureInitialized(ctx); err != nil {
		return nil, err
	}
	if err := c.state.DeleteConversation(ctx, id); err != nil {
		return nil, err
	}
	return c.Render(ctx)
}
