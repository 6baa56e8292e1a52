package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// SemanticAgent 文档语义分析智能体
// 为上传的文档生成语义描述，供检索排序使用
type SemanticAgent struct {
	chatModel model.BaseChatModel
}

// NewSemanticAgent 创建语义分析智能体
func NewSemanticAgent(chatModel model.BaseChatModel) *SemanticAgent {
	return &SemanticAgent{chatModel: chatModel}
}

// GenerateDescription 生成文档的语义描述
func (a *SemanticAgent) GenerateDescription(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(`Analiza el siguiente texto y genera una descripción semántica detallada que incluya:
1. Tema principal del documento
2. Conceptos clave
3. Palabras clave relevantes
4. Resumen estructurado del contenido

Texto a analizar:
%s

Genera una descripción que ayude a futuros agentes a entender el contenido y contexto del documento.`, text)

	messages := []*schema.Message{
		schema.SystemMessage("Eres un agente especializado en análisis y catalogación de documentos. Tu tarea es generar descripciones semánticas detalladas y estructuradas."),
		schema.UserMessage(prompt),
	}

	response, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to generate semantic description: %w", err)
	}

	return response.Content, nil
}
