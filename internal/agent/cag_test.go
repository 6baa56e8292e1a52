package agent

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson/primitive"

	docmodel "docchat/internal/model"
)

// fakeDocumentSource 固定文档来源
type fakeDocumentSource struct {
	docs []*docmodel.Document
	err  error
}

func (f *fakeDocumentSource) ListByDatabase(ctx context.Context, databaseName string) ([]*docmodel.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func newTestDocument(title, content, semanticDesc string) *docmodel.Document {
	return &docmodel.Document{
		ID:                  primitive.NewObjectID(),
		Title:               title,
		Content:             content,
		SemanticDescription: semanticDesc,
	}
}

// TestParseRankings 测试 LLM 排序结果解析
func TestParseRankings(t *testing.T) {
	Convey("排序结果解析测试", t, func() {
		Convey("纯 JSON 数组直接解析", func() {
			rankings, err := parseRankings(`[{"doc_id":"1","score":0.9},{"doc_id":"2","score":0.7}]`)

			So(err, ShouldBeNil)
			So(len(rankings), ShouldEqual, 2)
			So(rankings[0].DocID, ShouldEqual, "1")
			So(rankings[0].Score, ShouldEqual, 0.9)
		})

		Convey("容忍 JSON 前后的杂散文本", func() {
			text := "Aquí está el ranking:\n[{\"doc_id\": \"abc\", \"score\": 0.8}]\nEspero que ayude."
			rankings, err := parseRankings(text)

			So(err, ShouldBeNil)
			So(len(rankings), ShouldEqual, 1)
			So(rankings[0].DocID, ShouldEqual, "abc")
		})

		Convey("没有 JSON 数组时报错", func() {
			_, err := parseRankings("no puedo rankear estos documentos")
			So(err, ShouldNotBeNil)
		})

		Convey("空数组视为解析失败", func() {
			_, err := parseRankings("[]")
			So(err, ShouldNotBeNil)
		})

		Convey("非法 JSON 报错", func() {
			_, err := parseRankings(`[{"doc_id": }]`)
			So(err, ShouldNotBeNil)
		})
	})
}

// TestClampScore 测试分数裁剪
func TestClampScore(t *testing.T) {
	Convey("分数裁剪测试", t, func() {
		So(clampScore(-0.5), ShouldEqual, 0.0)
		So(clampScore(0.75), ShouldEqual, 0.75)
		So(clampScore(1.4), ShouldEqual, 1.0)
	})
}

// TestFallbackSelection 测试关键词降级打分
func TestFallbackSelection(t *testing.T) {
	Convey("关键词降级打分测试", t, func() {
		agent := NewCAGAgent(nil, nil)
		agent.segmenter = nil // 按空白切分，结果与词典无关

		Convey("完整短语命中的文档得分最高", func() {
			matched := newTestDocument("Energía", "guía completa de energía solar para hogares", "energía renovable")
			unrelated := newTestDocument("Cocina", "recetas de cocina italiana", "gastronomía")

			results := agent.fallbackSelection("energía solar", []*docmodel.Document{unrelated, matched})

			So(len(results), ShouldEqual, 1)
			So(results[0].DocID, ShouldEqual, matched.ID.Hex())
			So(results[0].Score, ShouldBeGreaterThanOrEqualTo, minRelevanceScore)
		})

		Convey("无匹配的文档被过滤", func() {
			doc := newTestDocument("Otro", "contenido sin relación alguna", "tema distinto")

			results := agent.fallbackSelection("energía solar", []*docmodel.Document{doc})
			So(results, ShouldBeEmpty)
		})

		Convey("结果按分数降序排列", func() {
			strong := newTestDocument("A", "energía solar fotovoltaica, paneles de energía solar", "energía solar")
			weak := newTestDocument("B", "la energía es importante", "recursos")

			results := agent.fallbackSelection("energía solar", []*docmodel.Document{weak, strong})

			So(len(results), ShouldBeGreaterThanOrEqualTo, 1)
			So(results[0].DocID, ShouldEqual, strong.ID.Hex())
			for i := 1; i < len(results); i++ {
				So(results[i-1].Score, ShouldBeGreaterThanOrEqualTo, results[i].Score)
			}
		})
	})
}

// TestGetRelevantContext 测试上下文检索
func TestGetRelevantContext(t *testing.T) {
	Convey("上下文检索测试", t, func() {
		ctx := context.Background()

		Convey("未选择文档库时报错", func() {
			agent := NewCAGAgent(nil, &fakeDocumentSource{})

			_, err := agent.GetRelevantContext(ctx, "consulta")
			So(errors.Is(err, ErrNoDatabaseSelected), ShouldBeTrue)
		})

		Convey("库为空时返回无结果占位而非错误", func() {
			agent := NewCAGAgent(nil, &fakeDocumentSource{})
			agent.SetDatabase("docs")

			chunks, err := agent.GetRelevantContext(ctx, "consulta")
			So(err, ShouldBeNil)
			So(len(chunks), ShouldEqual, 1)
			So(chunks[0].DocID, ShouldEqual, NoResultDocID)
			So(chunks[0].Title, ShouldEqual, "Sin resultados")
		})

		Convey("文档来源出错时透传错误", func() {
			agent := NewCAGAgent(nil, &fakeDocumentSource{err: errors.New("mongo down")})
			agent.SetDatabase("docs")

			_, err := agent.GetRelevantContext(ctx, "consulta")
			So(err, ShouldNotBeNil)
		})

		Convey("无模型时走降级打分并带回文档内容", func() {
			doc := newTestDocument("Guía Solar", "todo sobre energía solar residencial", "energía solar")
			agent := NewCAGAgent(nil, &fakeDocumentSource{docs: []*docmodel.Document{doc}})
			agent.segmenter = nil
			agent.SetDatabase("docs")

			chunks, err := agent.GetRelevantContext(ctx, "energía solar")
			So(err, ShouldBeNil)
			So(len(chunks), ShouldEqual, 1)
			So(chunks[0].DocID, ShouldEqual, doc.ID.Hex())
			So(chunks[0].Title, ShouldEqual, "Guía Solar")
			So(chunks[0].Content, ShouldEqual, doc.Content)
			So(chunks[0].RelevanceScore, ShouldBeGreaterThanOrEqualTo, minRelevanceScore)
		})

		Convey("SetDatabase 绑定当前库", func() {
			agent := NewCAGAgent(nil, &fakeDocumentSource{})
			So(agent.Database(), ShouldBeEmpty)

			agent.SetDatabase("legal")
			So(agent.Database(), ShouldEqual, "legal")
		})
	})
}
