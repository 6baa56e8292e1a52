package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	. "github.com/smartystreets/goconvey/convey"

	docmodel "docchat/internal/model"
)

// fakeChatModel 固定回复的模型
type fakeChatModel struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	for _, msg := range in {
		f.prompts = append(f.prompts, msg.Content)
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

// fakeRetriever 固定上下文的检索智能体
type fakeRetriever struct {
	chunks []ContextChunk
	err    error
}

func (f *fakeRetriever) GetRelevantContext(ctx context.Context, query string) ([]ContextChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

// fakeMemoryStore 内存对话记忆
type fakeMemoryStore struct {
	summaries map[string]string
}

func newFakeMemoryStore() *fakeMemoryStore {
	return &fakeMemoryStore{summaries: make(map[string]string)}
}

func (f *fakeMemoryStore) Get(ctx context.Context, conversationID string) (*docmodel.ConversationMemory, error) {
	return &docmodel.ConversationMemory{
		ConversationID: conversationID,
		Summary:        f.summaries[conversationID],
	}, nil
}

func (f *fakeMemoryStore) Save(ctx context.Context, conversationID, summary string) error {
	f.summaries[conversationID] = summary
	return nil
}

// TestProcessUserQuery 测试用户查询处理
func TestProcessUserQuery(t *testing.T) {
	Convey("用户查询处理测试", t, func() {
		ctx := context.Background()

		Convey("无结果占位时返回固定道歉回答，不调用模型", func() {
			chatModel := &fakeChatModel{reply: "no debería llamarse"}
			agent := NewConversationalAgent(chatModel, nil)
			agent.SetRetriever(&fakeRetriever{chunks: []ContextChunk{{
				DocID: NoResultDocID,
				Title: "Sin resultados",
			}}})

			payload, err := agent.ProcessUserQuery(ctx, "¿qué es esto?")
			So(err, ShouldBeNil)
			So(payload.Response, ShouldContainSubstring, "no encontré información relevante")
			So(payload.References, ShouldBeEmpty)
			So(payload.Metrics, ShouldBeNil)
			So(chatModel.prompts, ShouldBeEmpty)
		})

		Convey("正常流程生成回答并构造 [n] 引用", func() {
			chatModel := &fakeChatModel{reply: "Según [1], la respuesta es sí."}
			agent := NewConversationalAgent(chatModel, nil)
			agent.SetRetriever(&fakeRetriever{chunks: []ContextChunk{
				{DocID: "a", Title: "Informe Anual", Content: "contenido A"},
				{DocID: "b", Title: "Manual Técnico", Content: "contenido B"},
			}})

			payload, err := agent.ProcessUserQuery(ctx, "¿es viable?")
			So(err, ShouldBeNil)
			So(payload.Response, ShouldEqual, "Según [1], la respuesta es sí.")
			So(payload.References, ShouldResemble, []string{"[1] Informe Anual", "[2] Manual Técnico"})
			So(payload.Metrics[MetricType], ShouldEqual, "cag")
			So(payload.Metrics[MetricDocuments], ShouldEqual, 2)
			So(payload.Metrics[MetricPreparation], ShouldNotBeNil)

			// prompt 带上了文档内容与用户查询
			joined := strings.Join(chatModel.prompts, "\n")
			So(joined, ShouldContainSubstring, "contenido A")
			So(joined, ShouldContainSubstring, "¿es viable?")
		})

		Convey("模型失败时降级为道歉回答而非错误", func() {
			chatModel := &fakeChatModel{err: errors.New("rate limited")}
			agent := NewConversationalAgent(chatModel, nil)
			agent.SetRetriever(&fakeRetriever{chunks: []ContextChunk{
				{DocID: "a", Title: "Doc", Content: "x"},
			}})

			payload, err := agent.ProcessUserQuery(ctx, "consulta")
			So(err, ShouldBeNil)
			So(payload.Response, ShouldContainSubstring, "ocurrió un error")
			So(payload.References, ShouldBeEmpty)
		})

		Convey("检索失败时透传错误", func() {
			agent := NewConversationalAgent(&fakeChatModel{}, nil)
			agent.SetRetriever(&fakeRetriever{err: errors.New("mongo down")})

			_, err := agent.ProcessUserQuery(ctx, "consulta")
			So(err, ShouldNotBeNil)
		})

		Convey("对话记忆随问答更新并注入后续 prompt", func() {
			memory := newFakeMemoryStore()
			chatModel := &fakeChatModel{reply: "primera respuesta"}
			agent := NewConversationalAgent(chatModel, memory)
			agent.SetConversationID("conv-1")
			agent.SetRetriever(&fakeRetriever{chunks: []ContextChunk{
				{DocID: "a", Title: "Doc", Content: "x"},
			}})

			_, err := agent.ProcessUserQuery(ctx, "primera consulta")
			So(err, ShouldBeNil)
			So(memory.summaries["conv-1"], ShouldContainSubstring, "primera consulta")
			So(memory.summaries["conv-1"], ShouldContainSubstring, "primera respuesta")

			chatModel.prompts = nil
			_, err = agent.ProcessUserQuery(ctx, "segunda consulta")
			So(err, ShouldBeNil)
			So(strings.Join(chatModel.prompts, "\n"), ShouldContainSubstring, "CONTEXTO DE LA CONVERSACIÓN")
		})

		Convey("SetConversationID 绑定对话", func() {
			agent := NewConversationalAgent(&fakeChatModel{}, nil)
			agent.SetConversationID("conv-9")
			So(agent.ConversationID(), ShouldEqual, "conv-9")
		})
	})
}
