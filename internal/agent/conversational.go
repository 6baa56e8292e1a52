package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	docmodel "docchat/internal/model"
)

// 回答 metrics 的保留键
const (
	MetricPreparation = "preparación" // 检索与组装耗时，仅记录不展示
	MetricType        = "tipo"        // 回答类型，展示时置于行尾
	MetricDocuments   = "documentos"  // 引用文档数
)

// memorySummaryLimit 对话记忆摘要的最大长度
const memorySummaryLimit = 500

// MemoryStore 对话记忆存取
type MemoryStore interface {
	Get(ctx context.Context, conversationID string) (*docmodel.ConversationMemory, error)
	Save(ctx context.Context, conversationID, summary string) error
}

// Retriever 上下文检索能力（由 CAG agent 提供）
type Retriever interface {
	GetRelevantContext(ctx context.Context, query string) ([]ContextChunk, error)
}

// ConversationalAgent 对话智能体
// 持有检索智能体引用，基于检索到的文档生成带 [n] 引用的回答
type ConversationalAgent struct {
	chatModel      model.BaseChatModel
	retriever      Retriever
	memory         MemoryStore // 可为 nil
	conversationID string
}

// NewConversationalAgent 创建对话智能体
func NewConversationalAgent(chatModel model.BaseChatModel, memory MemoryStore) *ConversationalAgent {
	return &ConversationalAgent{
		chatModel: chatModel,
		memory:    memory,
	}
}

// SetRetriever 设置检索智能体引用
func (a *ConversationalAgent) SetRetriever(r Retriever) {
	a.retriever = r
}

// SetConversationID 绑定当前对话
func (a *ConversationalAgent) SetConversationID(id string) {
	a.conversationID = id
}

// ConversationID 当前绑定的对话 ID
func (a *ConversationalAgent) ConversationID() string {
	return a.conversationID
}

// ProcessUserQuery 处理用户查询
// 流程：检索上下文 -> 组装 prompt -> 生成回答；模型调用失败时返回降级回答而非错误
func (a *ConversationalAgent) ProcessUserQuery(ctx context.Context, query string) (*docmodel.AssistantPayload, error) {
	start := time.Now()

	contexts, err := a.retriever.GetRelevantContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	// 无结果占位：直接返回固定回答
	if len(contexts) == 1 && contexts[0].DocID == NoResultDocID {
		return &docmodel.AssistantPayload{
			Response:   "Lo siento, no encontré información relevante en los documentos disponibles para responder tu consulta. ¿Podrías reformular tu pregunta o intentar con otra consulta?",
			References: []string{},
		}, nil
	}

	// 组装引用与上下文
	var combined strings.Builder
	references := make([]string, 0, len(contexts))
	for i, chunk := range contexts {
		title := chunk.Title
		if title == "" {
			title = "Sin título"
		}
		references = append(references, fmt.Sprintf("[%d] %s", i+1, title))
		fmt.Fprintf(&combined, "\nDocumento [%d] - %s:\n%s\n", i+1, title, chunk.Content)
	}

	prompt := fmt.Sprintf(`Basándote en los siguientes documentos, responde a la consulta del usuario.

DOCUMENTOS DE REFERENCIA:
%s
%s
CONSULTA DEL USUARIO:
%s

INSTRUCCIONES:
1. Analiza cuidadosamente los documentos proporcionados
2. Responde la consulta del usuario de manera clara y detallada
3. Incluye referencias a los documentos usando el formato [1], [2], etc.
4. Si la información no está en los documentos, indícalo claramente
5. Cita el documento relevante cada vez que menciones información específica`,
		combined.String(), a.memoryContext(ctx), query)

	messages := []*schema.Message{
		schema.SystemMessage("Eres un asistente experto que proporciona respuestas detalladas y precisas basadas en documentos, siempre citando las fuentes con [n]."),
		schema.UserMessage(prompt),
	}

	if a.chatModel == nil {
		return &docmodel.AssistantPayload{
			Response:   "Lo siento, el servicio de respuestas no está disponible en este momento.",
			References: []string{},
		}, nil
	}

	response, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		// 模型错误降级为道歉回答，与正常回答走同一条渲染路径
		log.Error().Err(err).Str("conversation_id", a.conversationID).Msg("answer generation failed")
		return &docmodel.AssistantPayload{
			Response:   fmt.Sprintf("Lo siento, ocurrió un error al procesar tu consulta: %v", err),
			References: []string{},
		}, nil
	}

	a.rememberExchange(ctx, query, response.Content)

	return &docmodel.AssistantPayload{
		Response:   response.Content,
		References: references,
		Metrics: map[string]any{
			MetricPreparation: time.Since(start).Round(time.Millisecond).String(),
			MetricDocuments:   len(contexts),
			MetricType:        "cag",
		},
	}, nil
}

// memoryContext 取出当前对话的记忆摘要，拼入 prompt
func (a *ConversationalAgent) memoryContext(ctx context.Context) string {
	if a.memory == nil || a.conversationID == "" {
		return ""
	}

	mem, err := a.memory.Get(ctx, a.conversationID)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", a.conversationID).Msg("failed to load conversation memory")
		return ""
	}
	if mem.Summary == "" {
		return ""
	}
	return fmt.Sprintf("\nCONTEXTO DE LA CONVERSACIÓN:\n%s\n", mem.Summary)
}

// rememberExchange 记录最近一轮问答作为对话记忆
func (a *ConversationalAgent) rememberExchange(ctx context.Context, query, answer string) {
	if a.memory == nil || a.conversationID == "" {
		return
	}

	summary := fmt.Sprintf("Última consulta: %s\nÚltima respuesta: %s", query, answer)
	if len(summary) > memorySummaryLimit {
		summary = summary[:memorySummaryLimit]
	}

	if err := a.memory.Save(ctx, a.conversationID, summary); err != nil {
		log.Warn().Err(err).Str("conversation_id", a.conversationID).Msg("failed to save conversation memory")
	}
}
