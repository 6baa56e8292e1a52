package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat/internal/model"
)

// fakeStore 内存对话存储
type fakeStore struct {
	seq           int
	conversations []*model.Conversation
	messages      map[string][]*model.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: make(map[string][]*model.Message)}
}

func (f *fakeStore) Create(ctx context.Context, title string) (string, error) {
	f.seq++
	if title == "" {
		title = fmt.Sprintf("Conversación %s", time.Now().Format("02/01/2006"))
	}
	conv := &model.Conversation{
		ID:        primitive.NewObjectID(),
		Title:     title,
		CreatedAt: time.Now(),
	}
	f.conversations = append(f.conversations, conv)
	return conv.ID.Hex(), nil
}

func (f *fakeStore) List(ctx context.Context) ([]*model.Conversation, error) {
	return f.conversations, nil
}

func (f *fakeStore) SaveMessage(ctx context.Context, conversationID, role, content string) error {
	f.messages[conversationID] = append(f.messages[conversationID], &model.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	})
	return nil
}

func (f *fakeStore) GetMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	return f.messages[conversationID], nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	for i, conv := range f.conversations {
		if conv.ID.Hex() == id {
			f.conversations = append(f.conversations[:i], f.conversations[i+1:]...)
			delete(f.messages, id)
			return nil
		}
	}
	return errors.New("conversation not found")
}

func (f *fakeStore) has(id string) bool {
	for _, conv := range f.conversations {
		if conv.ID.Hex() == id {
			return true
		}
	}
	return false
}

// fakeMemory 内存对话记忆
type fakeMemory struct {
	deleted []string
}

func (f *fakeMemory) DeleteByConversation(ctx context.Context, conversationID string) error {
	f.deleted = append(f.deleted, conversationID)
	return nil
}

// fakeCatalog 固定文档库目录
type fakeCatalog struct {
	names []string
}

func (f *fakeCatalog) List(ctx context.Context) ([]*model.DocumentDatabase, error) {
	dbs := make([]*model.DocumentDatabase, 0, len(f.names))
	for _, name := range f.names {
		dbs = append(dbs, &model.DocumentDatabase{Name: name})
	}
	return dbs, nil
}

// fakeConversationalist 回显智能体
type fakeConversationalist struct {
	conversationID string
	queries        []string
	reply          *model.AssistantPayload
}

func (f *fakeConversationalist) SetConversationID(id string) { f.conversationID = id }
func (f *fakeConversationalist) ConversationID() string      { return f.conversationID }

func (f *fakeConversationalist) ProcessUserQuery(ctx context.Context, query string) (*model.AssistantPayload, error) {
	f.queries = append(f.queries, query)
	if f.reply != nil {
		return f.reply, nil
	}
	return &model.AssistantPayload{Response: "eco: " + query}, nil
}

// fakeRetriever 仅记录绑定库名
type fakeRetriever struct {
	database string
}

func (f *fakeRetriever) SetDatabase(name string) { f.database = name }
func (f *fakeRetriever) Database() string        { return f.database }

type sessionFixture struct {
	store     *fakeStore
	memory    *fakeMemory
	catalog   *fakeCatalog
	agent     *fakeConversationalist
	retriever *fakeRetriever
	state     *SessionState
	ctrl      *Controller
}

func newSessionFixture(databases ...string) *sessionFixture {
	f := &sessionFixture{
		store:     newFakeStore(),
		memory:    &fakeMemory{},
		catalog:   &fakeCatalog{names: databases},
		agent:     &fakeConversationalist{},
		retriever: &fakeRetriever{},
	}
	f.state = NewSessionState(f.store, f.memory, f.catalog, f.agent, f.retriever)
	f.ctrl = NewController(f.state, NewResolver(newFakeStorage()))
	return f
}

// TestSessionStateInitialization 测试会话初始化
func TestSessionStateInitialization(t *testing.T) {
	Convey("会话初始化测试", t, func() {
		ctx := context.Background()

		Convey("首次初始化创建对话并选取第一个文档库", func() {
			f := newSessionFixture("docs", "legal")
			So(f.state.EnsureInitialized(ctx), ShouldBeNil)

			So(f.state.CurrentConversationID(), ShouldNotBeEmpty)
			So(f.state.CurrentDatabase(), ShouldEqual, "docs")
			So(f.retriever.Database(), ShouldEqual, "docs")
			So(f.agent.ConversationID(), ShouldEqual, f.state.CurrentConversationID())
		})

		Convey("重复初始化是幂等的", func() {
			f := newSessionFixture("docs")
			So(f.state.EnsureInitialized(ctx), ShouldBeNil)
			convID := f.state.CurrentConversationID()

			So(f.state.EnsureInitialized(ctx), ShouldBeNil)
			So(f.state.CurrentConversationID(), ShouldEqual, convID)
			So(len(f.store.conversations), ShouldEqual, 1)
		})

		Convey("目录为空时当前文档库为空", func() {
			f := newSessionFixture()
			So(f.state.EnsureInitialized(ctx), ShouldBeNil)
			So(f.state.CurrentDatabase(), ShouldBeEmpty)
			So(f.retriever.Database(), ShouldBeEmpty)
		})

		Convey("每次状态迁移后对话智能体绑定保持一致", func() {
			f := newSessionFixture("docs")
			So(f.state.EnsureInitialized(ctx), ShouldBeNil)

			newID, err := f.state.NewConversation(ctx)
			So(err, ShouldBeNil)
			So(f.agent.ConversationID(), ShouldEqual, newID)
			So(f.agent.ConversationID(), ShouldEqual, f.state.CurrentConversationID())

			f.state.SwitchConversation(newID)
			So(f.agent.ConversationID(), ShouldEqual, f.state.CurrentConversationID())
		})
	})
}

// TestSessionStateTransitions 测试会话状态迁移
func TestSessionStateTransitions(t *testing.T) {
	Convey("会话状态迁移测试", t, func() {
		ctx := context.Background()

		Convey("切换对话重新绑定智能体且不改动存储", func() {
			f := newSessionFixture("docs")
			So(f.state.EnsureInitialized(ctx), ShouldBeNil)

			otherID, err := f.store.Create(ctx, "otra")
			So(err, ShouldBeNil)
			total := len(f.store.conversations)

			f.state.SwitchConversation(otherID)
			So(f.state.CurrentConversationID(), ShouldEqual, otherID)
			So(f.agent.ConversationID(), ShouldEqual, otherID)
			So(len(f.store.conversations), ShouldEqual, total)
		})

		Convey("切换文档库重新绑定检索智能体", func() {
			f := newSessionFixture("docs", "legal")
			So(f.state.EnsureInitialized(ctx), ShouldBeNil)

			f.state.SwitchDatabase("legal")
			So(f.state.CurrentDatabase(), ShouldEqual, "legal")
			So(f.retriever.Database(), ShouldEqual, "legal")

			// 同名切换为空操作
			f.state.SwitchDatabase("legal")
			So(f.retriever.Database(), ShouldEqual, "legal")
		})

		Convey("删除非当前对话不影响当前指向", func() {
			f := newSessionFixture("docs")
			So(f.state.EnsureInitialized(ctx), ShouldBeNil)
			current := f.state.CurrentConversationID()

			otherID, err := f.store.Create(ctx, "otra")
			So(err, ShouldBeNil)

			So(f.state.DeleteConversation(ctx, otherID), ShouldBeNil)
			So(f.state.CurrentConversationID(), ShouldEqual, current)
			So(f.memory.deleted, ShouldContain, otherID)
		})

		Convey("删除当前对话后立即切换到新建对话", func() {
			f := newSessionFixture("docs")
			So(f.state.EnsureInitialized(ctx), ShouldBeNil)
			deleted := f.state.CurrentConversationID()

			So(f.state.DeleteConversation(ctx, deleted), ShouldBeNil)

			current := f.state.CurrentConversationID()
			So(current, ShouldNotBeEmpty)
			So(current, ShouldNotEqual, deleted)
			So(f.store.has(current), ShouldBeTrue)
			So(f.store.has(deleted), ShouldBeFalse)
			So(f.agent.ConversationID(), ShouldEqual, current)
		})
	})
}

// TestControllerSubmit 测试提交流程
func TestControllerSubmit(t *testing.T) {
	Convey("提交流程测试", t, func() {
		ctx := context.Background()

		Convey("无文档库时拒绝提交，不写存储也不调用智能体", func() {
			f := newSessionFixture()
			_, err := f.ctrl.Submit(ctx, "hola")

			So(errors.Is(err, ErrNoDatabaseSelected), ShouldBeTrue)
			So(f.agent.queries, ShouldBeEmpty)
			convID := f.state.CurrentConversationID()
			So(f.store.messages[convID], ShouldBeEmpty)
		})

		Convey("正常提交先存用户消息，再存序列化后的助手回答", func() {
			f := newSessionFixture("docs")
			f.agent.reply = &model.AssistantPayload{
				Response:   "respuesta del agente",
				References: []string{"[1] doc.txt"},
				Metrics:    map[string]any{"tipo": "cag", "documentos": 1},
			}

			view, err := f.ctrl.Submit(ctx, "hello")
			So(err, ShouldBeNil)
			So(f.agent.queries, ShouldResemble, []string{"hello"})

			convID := f.state.CurrentConversationID()
			stored := f.store.messages[convID]
			So(len(stored), ShouldEqual, 2)
			So(stored[0].Role, ShouldEqual, model.RoleUser)
			So(stored[0].Content, ShouldEqual, "hello")
			So(stored[1].Role, ShouldEqual, model.RoleAssistant)

			normalized := Normalize(stored[1].Content)
			So(normalized.IsPlain, ShouldBeFalse)
			So(normalized.Response(), ShouldEqual, "respuesta del agente")

			So(len(view.Messages), ShouldEqual, 2)
			So(view.Messages[1].Text, ShouldEqual, "respuesta del agente")
			So(view.Messages[1].MetricsLine, ShouldEqual, "documentos: 1 | cag")
		})

		Convey("首次会话提交场景", func() {
			f := newSessionFixture("docs")

			view, err := f.ctrl.Submit(ctx, "hello")
			So(err, ShouldBeNil)
			So(view.CurrentDatabase, ShouldEqual, "docs")
			So(view.Messages[0].Role, ShouldEqual, model.RoleUser)
			So(view.Messages[0].Text, ShouldEqual, "hello")
			So(view.Messages[1].Text, ShouldEqual, "eco: hello")
		})
	})
}

// TestControllerRender 测试会话渲染
func TestControllerRender(t *testing.T) {
	Convey("会话渲染测试", t, func() {
		ctx := context.Background()

		Convey("视图包含目录、对话列表与当前指向", func() {
			f := newSessionFixture("docs", "legal")

			view, err := f.ctrl.Render(ctx)
			So(err, ShouldBeNil)
			So(view.Databases, ShouldResemble, []string{"docs", "legal"})
			So(view.CurrentDatabase, ShouldEqual, "docs")
			So(view.CurrentConversationID, ShouldEqual, f.state.CurrentConversationID())
			So(len(view.Conversations), ShouldEqual, 1)
		})

		Convey("切换对话后只渲染目标对话的消息", func() {
			f := newSessionFixture("docs")
			So(f.state.EnsureInitialized(ctx), ShouldBeNil)
			convA := f.state.CurrentConversationID()
			So(f.store.SaveMessage(ctx, convA, model.RoleUser, "mensaje A"), ShouldBeNil)

			convB, err := f.store.Create(ctx, "B")
			So(err, ShouldBeNil)
			So(f.store.SaveMessage(ctx, convB, model.RoleUser, "mensaje B"), ShouldBeNil)

			view, err := f.ctrl.SwitchConversation(ctx, convB)
			So(err, ShouldBeNil)
			So(view.CurrentConversationID, ShouldEqual, convB)
			So(len(view.Messages), ShouldEqual, 1)
			So(view.Messages[0].Text, ShouldEqual, "mensaje B")
		})

		Convey("历史中的结构化回答经归一化与引用解析渲染", func() {
			f := newSessionFixture("docs")
			So(f.state.EnsureInitialized(ctx), ShouldBeNil)
			convID := f.state.CurrentConversationID()

			payload := &model.AssistantPayload{
				Response:   "ver fuentes",
				References: []string{"[1] informe.pdf - resumen", "[2] faltante.txt"},
			}
			serialized, err := payload.Serialize()
			So(err, ShouldBeNil)
			So(f.store.SaveMessage(ctx, convID, model.RoleAssistant, serialized), ShouldBeNil)

			st := newFakeStorage()
			st.files["docs/informe.pdf"] = []byte("contenido")
			f.ctrl.resolver = NewResolver(st)

			view, err := f.ctrl.Render(ctx)
			So(err, ShouldBeNil)
			So(len(view.Messages), ShouldEqual, 1)

			refs := view.Messages[0].References
			So(len(refs), ShouldEqual, 2)
			So(refs[0].Found, ShouldBeTrue)
			So(refs[0].Label, ShouldEqual, "[1] informe.pdf - resumen")
			So(refs[1].Found, ShouldBeFalse)
			So(refs[1].Filename, ShouldEqual, "faltante.txt")
		})
	})
}

// TestManagerSessions 测试会话注册表
func TestManagerSessions(t *testing.T) {
	Convey("会话注册表测试", t, func() {
		ctx := context.Background()
		store := newFakeStore()
		catalog := &fakeCatalog{names: []string{"docs"}}

		manager := NewManager(store, &fakeMemory{}, catalog, newFakeStorage(), func() (Conversationalist, CorpusRetriever) {
			return &fakeConversationalist{}, &fakeRetriever{}
		})

		Convey("同一会话 ID 复用同一编排器", func() {
			first := manager.GetOrCreate("s1")
			So(manager.GetOrCreate("s1"), ShouldEqual, first)
		})

		Convey("不同会话互不共享状态", func() {
			c1 := manager.GetOrCreate("s1")
			c2 := manager.GetOrCreate("s2")
			So(c1, ShouldNotPointTo, c2)

			So(c1.State().EnsureInitialized(ctx), ShouldBeNil)
			So(c2.State().EnsureInitialized(ctx), ShouldBeNil)
			So(c1.State().CurrentConversationID(), ShouldNotEqual, c2.State().CurrentConversationID())

			c1.State().SwitchDatabase("otra")
			So(c2.State().CurrentDatabase(), ShouldEqual, "docs")
		})

		Convey("删除会话后重新创建全新状态", func() {
			c1 := manager.GetOrCreate("s1")
			manager.Delete("s1")

			_, ok := manager.Get("s1")
			So(ok, ShouldBeFalse)
			So(manager.GetOrCreate("s1"), ShouldNotPointTo, c1)
		})
	})
}
