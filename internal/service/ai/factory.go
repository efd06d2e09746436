package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/config"
)

// New 根据配置选择推理提供方并包装超时与重试。没有任何凭证时返回 ErrNotConfigured。
func New(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*Invoker, error) {
	opts := Options{Timeout: cfg.Timeout, MaxRetries: cfg.MaxRetries}

	var (
		completer Completer
		err       error
	)
	switch provider := cfg.ResolvedProvider(); provider {
	case config.ProviderArk:
		chatModel, modelErr := cfg.NewChatModel(ctx)
		if modelErr != nil {
			return NewInvoker(nil, opts, logger), fmt.Errorf("failed to create chat model: %w", modelErr)
		}
		completer, err = NewArkCompleter(ctx, chatModel)
	case config.ProviderOpenAI:
		completer, err = NewOpenAICompleter(cfg)
	case config.ProviderGemini:
		completer, err = NewGeminiCompleter(ctx, cfg)
	default:
		return NewInvoker(nil, opts, logger), ErrNotConfigured
	}
	if err != nil {
		return NewInvoker(nil, opts, logger), err
	}

	return NewInvoker(completer, opts, logger), nil
}
