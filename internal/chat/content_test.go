package chat

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"docchat/internal/model"
)

// TestNormalize 测试消息内容归一化
func TestNormalize(t *testing.T) {
	Convey("消息内容归一化测试", t, func() {
		Convey("结构化回答 JSON 归一化为结构化内容", func() {
			raw := `{"response":"La respuesta","references":["[1] doc.txt"],"metrics":{"tokens":340}}`
			content := Normalize(raw)

			So(content.IsPlain, ShouldBeFalse)
			So(content.Structured, ShouldNotBeNil)
			So(content.Response(), ShouldEqual, "La respuesta")
			So(content.References(), ShouldResemble, []string{"[1] doc.txt"})
		})

		Convey("纯文本原样保留", func() {
			content := Normalize("hola, ¿cómo estás?")

			So(content.IsPlain, ShouldBeTrue)
			So(content.Response(), ShouldEqual, "hola, ¿cómo estás?")
			So(content.References(), ShouldBeNil)
			So(content.MetricsLine(), ShouldBeEmpty)
		})

		Convey("无 response 键的 JSON 对象按纯文本处理", func() {
			raw := `{"answer":"texto","foo":1}`
			content := Normalize(raw)

			So(content.IsPlain, ShouldBeTrue)
			So(content.Response(), ShouldEqual, raw)
		})

		Convey("非法 JSON 按纯文本处理", func() {
			content := Normalize(`{"response": broken`)

			So(content.IsPlain, ShouldBeTrue)
		})

		Convey("归一化是幂等的", func() {
			structured := Normalize(`{"response":"x","references":["[1] a.txt"]}`)
			plain := Normalize("solo texto")

			So(NormalizeContent(structured), ShouldResemble, structured)
			So(NormalizeContent(plain), ShouldResemble, plain)
		})
	})
}

// TestPayloadRoundTrip 测试结构化回答的无损往返
func TestPayloadRoundTrip(t *testing.T) {
	Convey("结构化回答序列化往返测试", t, func() {
		Convey("完整字段往返无损", func() {
			payload := &model.AssistantPayload{
				Response:   "respuesta completa",
				References: []string{"[1] informe.pdf - página 2", "[2] notas.txt"},
				Metrics:    map[string]any{"tokens": "340", "tipo": "cag"},
			}

			serialized, err := payload.Serialize()
			So(err, ShouldBeNil)

			var restored model.AssistantPayload
			So(json.Unmarshal([]byte(serialized), &restored), ShouldBeNil)
			So(restored.Response, ShouldEqual, payload.Response)
			So(restored.References, ShouldResemble, payload.References)
			So(restored.Metrics["tokens"], ShouldEqual, "340")
			So(restored.Metrics["tipo"], ShouldEqual, "cag")
		})

		Convey("缺省字段往返后仍然缺省", func() {
			payload := &model.AssistantPayload{Response: "sin extras"}

			serialized, err := payload.Serialize()
			So(err, ShouldBeNil)
			So(serialized, ShouldNotContainSubstring, "references")
			So(serialized, ShouldNotContainSubstring, "metrics")

			var restored model.AssistantPayload
			So(json.Unmarshal([]byte(serialized), &restored), ShouldBeNil)
			So(restored.References, ShouldBeNil)
			So(restored.Metrics, ShouldBeNil)
		})

		Convey("序列化结果经归一化后与原回答一致", func() {
			payload := &model.AssistantPayload{
				Response:   "con referencias",
				References: []string{"[1] a.txt"},
			}

			serialized, err := payload.Serialize()
			So(err, ShouldBeNil)

			content := Normalize(serialized)
			So(content.IsPlain, ShouldBeFalse)
			So(content.Structured, ShouldResemble, payload)
		})
	})
}

// TestFormatMetricsLine 测试 metrics 行格式化
func TestFormatMetricsLine(t *testing.T) {
	Convey("metrics 行格式化测试", t, func() {
		Convey("preparación 不展示，tipo 的值移至行尾", func() {
			line := FormatMetricsLine(map[string]any{
				"preparación": "1.2s",
				"tokens":      340,
				"tipo":        "retrieval",
			})

			So(line, ShouldEqual, "tokens: 340 | retrieval")
			So(line, ShouldNotContainSubstring, "preparación")
		})

		Convey("普通键按字母序排列", func() {
			line := FormatMetricsLine(map[string]any{
				"documentos": 3,
				"tipo":       "cag",
				"costo":      "0.01",
			})

			So(line, ShouldEqual, "costo: 0.01 | documentos: 3 | cag")
		})

		Convey("只有保留键时行可为空", func() {
			So(FormatMetricsLine(map[string]any{"preparación": "2s"}), ShouldBeEmpty)
		})
	})
}
