package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-ego/gse"
	"github.com/rs/zerolog/log"

	docmodel "docchat/internal/model"
)

// ErrNoDatabaseSelected 未选择文档库
var ErrNoDatabaseSelected = errors.New("no document database selected")

// NoResultDocID 无结果占位 chunk 的 doc_id
const NoResultDocID = "0"

// minRelevanceScore 文档入选的最低相关性分数
const minRelevanceScore = 0.6

// DocumentSource 文档来源
type DocumentSource interface {
	ListByDatabase(ctx context.Context, databaseName string) ([]*docmodel.Document, error)
}

// ContextChunk 检索到的上下文片段
type ContextChunk struct {
	DocID          string
	Content        string
	RelevanceScore float64
	Title          string
}

// docRanking LLM 排序结果的 wire 格式
type docRanking struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// CAGAgent 文档检索智能体
// 用 LLM 对库内文档的语义描述做相关性排序，失败时降级为关键词打分
type CAGAgent struct {
	chatModel model.BaseChatModel
	docs      DocumentSource
	currentDB string
	segmenter *gse.Segmenter // 降级打分用分词器，可为 nil
}

// NewCAGAgent 创建文档检索智能体
func NewCAGAgent(chatModel model.BaseChatModel, docs DocumentSource) *CAGAgent {
	var segmenter *gse.Segmenter
	if seg, err := gse.New(); err == nil {
		segmenter = &seg
	}

	return &CAGAgent{
		chatModel: chatModel,
		docs:      docs,
		segmenter: segmenter,
	}
}

// SetDatabase 设置当前文档库
func (a *CAGAgent) SetDatabase(name string) {
	a.currentDB = name
	log.Debug().Str("database", name).Msg("cag agent database selected")
}

// Database 当前文档库名
func (a *CAGAgent) Database() string {
	return a.currentDB
}

// GetRelevantContext 检索与查询最相关的上下文片段
// 无文档时返回单个 doc_id=0 的占位 chunk，不视为错误
func (a *CAGAgent) GetRelevantContext(ctx context.Context, query string) ([]ContextChunk, error) {
	if a.currentDB == "" {
		return nil, ErrNoDatabaseSelected
	}

	documents, err := a.docs.ListByDatabase(ctx, a.currentDB)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	log.Debug().Int("count", len(documents)).Str("database", a.currentDB).Msg("documents found")

	if len(documents) == 0 {
		return []ContextChunk{{
			DocID:   NoResultDocID,
			Content: "Lo siento, no encontré documentos relevantes para responder tu consulta.",
			Title:   "Sin resultados",
		}}, nil
	}

	byID := make(map[string]*docmodel.Document, len(documents))
	for _, doc := range documents {
		byID[doc.ID.Hex()] = doc
	}

	selected := a.selectBestDocuments(ctx, query, documents)

	chunks := make([]ContextChunk, 0, len(selected))
	for _, sel := range selected {
		doc, ok := byID[sel.DocID]
		if !ok {
			continue
		}
		chunks = append(chunks, ContextChunk{
			DocID:          sel.DocID,
			Content:        doc.Content,
			RelevanceScore: sel.Score,
			Title:          doc.Title,
		})
	}

	return chunks, nil
}

// selectBestDocuments 用 LLM 评估语义描述并排序，失败时降级为关键词打分
func (a *CAGAgent) selectBestDocuments(ctx context.Context, query string, documents []*docmodel.Document) []docRanking {
	if a.chatModel == nil {
		return a.fallbackSelection(query, documents)
	}

	prompt := fmt.Sprintf(`Actúa como un experto en recuperación de información que debe rankear y seleccionar los documentos más relevantes.

CONSULTA DEL USUARIO:
"%s"

DOCUMENTOS DISPONIBLES:
%s

TAREA:
Selecciona y rankea TODOS los documentos relevantes para la consulta del usuario.
Asigna scores de relevancia entre 0.3 y 1.0 y ordénalos de mayor a menor.

DEBES RESPONDER EXACTAMENTE EN ESTE FORMATO JSON:
[
    {"doc_id": "1", "score": 0.9},
    {"doc_id": "2", "score": 0.7}
]

NO INCLUYAS NADA MÁS EN TU RESPUESTA, SOLO EL JSON.`, query, formatDescriptions(documents))

	messages := []*schema.Message{
		schema.SystemMessage("Eres un sistema experto en selección y ranking de documentos. Debes seleccionar TODOS los documentos que tengan alguna relevancia con la consulta."),
		schema.UserMessage(prompt),
	}

	response, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		log.Warn().Err(err).Msg("document ranking model call failed, using fallback selection")
		return a.fallbackSelection(query, documents)
	}

	rankings, err := parseRankings(response.Content)
	if err != nil {
		log.Warn().Err(err).Msg("failed to parse ranking response, using fallback selection")
		return a.fallbackSelection(query, documents)
	}

	byID := make(map[string]bool, len(documents))
	for _, doc := range documents {
		byID[doc.ID.Hex()] = true
	}

	results := make([]docRanking, 0, len(rankings))
	for _, r := range rankings {
		if r.DocID == "" || !byID[r.DocID] || r.Score < minRelevanceScore {
			continue
		}
		results = append(results, docRanking{
			DocID: r.DocID,
			Score: clampScore(r.Score),
		})
	}

	if len(results) == 0 {
		return a.fallbackSelection(query, documents)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// parseRankings 解析 LLM 返回的 JSON 排序结果，容忍 JSON 前后的杂散文本
func parseRankings(text string) ([]docRanking, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "[") {
		start := strings.Index(text, "[")
		end := strings.LastIndex(text, "]")
		if start == -1 || end <= start {
			return nil, errors.New("no JSON array in response")
		}
		text = text[start : end+1]
	}

	var rankings []docRanking
	if err := json.Unmarshal([]byte(text), &rankings); err != nil {
		return nil, err
	}
	if len(rankings) == 0 {
		return nil, errors.New("empty ranking list")
	}
	return rankings, nil
}

// fallbackSelection 降级选择：按查询词与内容/语义描述的匹配度打分
func (a *CAGAgent) fallbackSelection(query string, documents []*docmodel.Document) []docRanking {
	queryWords := a.segment(query)

	var results []docRanking
	for _, doc := range documents {
		content := strings.ToLower(doc.Content)
		semanticDesc := strings.ToLower(doc.SemanticDescription)

		contentMatches := 0
		semanticMatches := 0
		for _, word := range queryWords {
			if strings.Contains(content, word) {
				contentMatches++
			}
			if strings.Contains(semanticDesc, word) {
				semanticMatches++
			}
		}

		// 完整短语命中加权
		phraseBonus := 0.0
		if strings.Contains(content, strings.ToLower(query)) {
			phraseBonus = 0.3
		}

		relevance := float64(contentMatches)*0.15 + float64(semanticMatches)*0.1 + phraseBonus
		score := clampScore(0.5 + relevance)
		if score < minRelevanceScore {
			continue
		}

		results = append(results, docRanking{
			DocID: doc.ID.Hex(),
			Score: score,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// segment 查询分词，分词器不可用时按空白切分
func (a *CAGAgent) segment(query string) []string {
	query = strings.ToLower(query)
	if a.segmenter != nil {
		var words []string
		for _, word := range a.segmenter.Cut(query, false) {
			if w := strings.TrimSpace(word); w != "" {
				words = append(words, w)
			}
		}
		if len(words) > 0 {
			return words
		}
	}
	return strings.Fields(query)
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// formatDescriptions 为排序 prompt 格式化语义描述
func formatDescriptions(documents []*docmodel.Document) string {
	var sb strings.Builder
	for _, doc := range documents {
		fmt.Fprintf(&sb, "DOCUMENTO %s:\nTítulo: %s\n\nDescripción Semántica:\n%s\n------------------------\n",
			doc.ID.Hex(), doc.Title, doc.SemanticDescription)
	}
	return sb.String()
}
