package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ArkCompleter runs prompts through an eino chain backed by an Ark chat model.
type ArkCompleter struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkCompleter 编译 "模板 -> 模型" 调用链。
func NewArkCompleter(ctx context.Context, chatModel model.ChatModel) (*ArkCompleter, error) {
	if chatModel == nil {
		return nil, ErrNotConfigured
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return &ArkCompleter{chain: runnable}, nil
}

// Complete implements Completer.
func (c *ArkCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	msg, err := c.chain.Invoke(ctx, map[string]any{
		"system": p.System,
		"query":  p.User,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if msg == nil {
		return "", ErrEmptyResponse
	}
	return msg.Content, nil
}
