package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConfigured 表示没有可用的推理提供方。
	ErrNotConfigured = errors.New("inference provider not configured")
	// ErrEmptyResponse 表示模型返回了空内容。
	ErrEmptyResponse = errors.New("inference provider returned empty response")
	// ErrNoJSON 表示模型输出中找不到 JSON 对象。
	ErrNoJSON = errors.New("missing json object")
)

// Prompt 是一次模板化的推理请求。
type Prompt struct {
	Name   string
	System string
	User   string
}

// Completer sends one instruction to a hosted model and returns the raw reply.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// ExtractJSON 解析模型回复中首个 "{" 到最后一个 "}" 之间的 JSON。
func ExtractJSON(content string, v any) error {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return ErrNoJSON
	}

	if err := json.Unmarshal([]byte(trimmed[start:end+1]), v); err != nil {
		return fmt.Errorf("decode model json: %w", err)
	}
	return nil
}

// ExtractJSONBytes returns the JSON object slice of content without decoding it.
func ExtractJSONBytes(content string) ([]byte, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, ErrNoJSON
	}
	return []byte(trimmed[start : end+1]), nil
}
