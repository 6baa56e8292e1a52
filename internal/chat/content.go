package chat

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"docchat/internal/model"
)

// metrics 保留键：展示时 preparación 始终省略，tipo 的值移至行尾
const (
	metricKeyPreparation = "preparación"
	metricKeyType        = "tipo"
)

// metricsSeparator metrics 行的键值对分隔符
const metricsSeparator = " | "

// MessageContent 消息内容的归一化形式
// 历史消息可能是纯文本，也可能是序列化后的结构化回答，读取时只分类一次
type MessageContent struct {
	IsPlain    bool
	Text       string
	Structured *model.AssistantPayload
}

// Normalize 归一化原始存储内容
// 能解析为含 response 键的 JSON 对象则视为结构化回答，否则按纯文本处理
func Normalize(raw string) MessageContent {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return MessageContent{IsPlain: true, Text: raw}
	}
	if _, ok := fields["response"]; !ok {
		return MessageContent{IsPlain: true, Text: raw}
	}

	var payload model.AssistantPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return MessageContent{IsPlain: true, Text: raw}
	}

	return MessageContent{Structured: &payload}
}

// NormalizeContent 对已归一化的内容幂等
func NormalizeContent(c MessageContent) MessageContent {
	return c
}

// Response 结构化回答的正文，纯文本时即原文
func (c MessageContent) Response() string {
	if c.IsPlain || c.Structured == nil {
		return c.Text
	}
	return c.Structured.Response
}

// References 结构化回答的引用列表，纯文本时为空
func (c MessageContent) References() []string {
	if c.IsPlain || c.Structured == nil {
		return nil
	}
	return c.Structured.References
}

// MetricsLine 渲染 metrics 行
// 非保留键按字母序以 "key: value" 拼接，tipo 的值置于行尾，preparación 不展示
func (c MessageContent) MetricsLine() string {
	if c.IsPlain || c.Structured == nil || len(c.Structured.Metrics) == 0 {
		return ""
	}
	return FormatMetricsLine(c.Structured.Metrics)
}

// FormatMetricsLine 格式化 metrics 行
func FormatMetricsLine(metrics map[string]any) string {
	keys := make([]string, 0, len(metrics))
	for key := range metrics {
		if key == metricKeyPreparation || key == metricKeyType {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", key, metrics[key]))
	}
	if typeValue, ok := metrics[metricKeyType]; ok {
		parts = append(parts, fmt.Sprintf("%v", typeValue))
	}

	return strings.Join(parts, metricsSeparator)
}
