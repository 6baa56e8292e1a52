package model

import "encoding/json"

// AssistantPayload 助手结构化回答
// 持久化与传输的 wire 格式：{response, references?, metrics?}，必须无损往返
type AssistantPayload struct {
	Response   string         `json:"response"`
	References []string       `json:"references,omitempty"`
	Metrics    map[string]any `json:"metrics,omitempty"`
}

// Serialize 序列化为存储用的 JSON 字符串
func (p *AssistantPayload) Serialize() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
