package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	analysis "github.com/campusmind/portal/backend/internal/analysis/triage"
	"github.com/campusmind/portal/backend/internal/logging"
	model "github.com/campusmind/portal/backend/internal/model/triage"
	"github.com/campusmind/portal/backend/internal/service/ai"
)

// ErrEmptyInput 表示用户输入为空。
var ErrEmptyInput = errors.New("message text is required")

// Config 控制分诊服务的行为。
type Config struct {
	SchemaVersion string
	HelpChannel   string
}

// Service 调用大模型完成分诊，失败时回退到固定文案与本地启发式分类。
type Service struct {
	completer   ai.Completer
	version     model.Version
	helpChannel string
	classify    func(text string) analysis.Decision
	logger      *zap.Logger
}

// NewService 创建分诊服务。completer 可以为 nil，此时所有请求都走回退路径。
func NewService(completer ai.Completer, cfg Config, logger *zap.Logger) (*Service, error) {
	version, err := model.ParseVersion(cfg.SchemaVersion)
	if err != nil {
		return nil, err
	}

	return &Service{
		completer:   completer,
		version:     version,
		helpChannel: strings.TrimSpace(cfg.HelpChannel),
		classify:    analysis.Classify,
		logger:      logging.OrNop(logger).Named("triage"),
	}, nil
}

// Version returns the configured output schema version.
func (s *Service) Version() model.Version {
	return s.version
}

// HelpChannel returns the help channel text referenced on escalation.
func (s *Service) HelpChannel() string {
	return s.helpChannel
}

// Triage classifies input and produces a reply. The only error it returns is
// ErrEmptyInput; provider problems yield a fallback result instead.
func (s *Service) Triage(ctx context.Context, input string) (model.Result, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return model.Result{}, ErrEmptyInput
	}

	local := s.classify(text)

	if s.completer == nil {
		return s.fallback(local), nil
	}

	system, user := buildPrompt(s.version, s.helpChannel, text)
	raw, err := s.completer.Complete(ctx, ai.Prompt{Name: "triage." + string(s.version), System: system, User: user})
	if err != nil {
		s.logger.Error("triage inference failed, using fallback", zap.Error(err))
		return s.fallback(local), nil
	}

	result, err := s.parse(raw)
	if err != nil {
		s.logger.Error("triage output rejected, using fallback", zap.Error(err))
		return s.fallback(local), nil
	}

	return s.enforce(result, local), nil
}

type envelope struct {
	Category string `json:"category"`
	Escalate bool   `json:"escalateToProfessional"`
}

func (s *Service) parse(raw string) (model.Result, error) {
	body, err := ai.ExtractJSONBytes(raw)
	if err != nil {
		return model.Result{}, fmt.Errorf("%w: %v", model.ErrShapeMismatch, err)
	}

	var env envelope
	if err := ai.ExtractJSON(raw, &env); err != nil {
		return model.Result{}, fmt.Errorf("%w: %v", model.ErrShapeMismatch, err)
	}

	payload, err := model.DecodePayload(s.version, body)
	if err != nil {
		return model.Result{}, err
	}

	result := model.Result{
		Version:  s.version,
		Escalate: env.Escalate,
		Payload:  payload,
	}
	if env.Category != "" {
		result.Category = model.ParseCategory(env.Category)
	}
	return result, nil
}

// enforce 在模型输出之上执行不可让步的规则：危机必升级，问候不附带建议。
func (s *Service) enforce(result model.Result, local analysis.Decision) model.Result {
	if result.Category == "" {
		result.Category = local.Category
	}
	if local.Crisis {
		result.Category = model.CategoryCrisis
	}

	if p, ok := result.Payload.(model.Assessment); ok && p.EscalateToProfessional {
		result.Escalate = true
	}
	if result.Category == model.CategoryCrisis {
		result.Escalate = true
	}

	// 本地分类或模型分类任一判定为问候/积极，都不附带建议
	allows := result.Category.AllowsStrategies() && local.Category.AllowsStrategies()
	if !result.Escalate && !allows {
		switch p := result.Payload.(type) {
		case model.Coping:
			p.CopingStrategies = ""
			result.Payload = p
		case model.Assessment:
			p.SuggestedResources = nil
			result.Payload = p
		}
	}

	if p, ok := result.Payload.(model.Assessment); ok && result.Escalate {
		p.EscalateToProfessional = true
		result.Payload = p
	}

	result.HelpChannel = s.helpChannel
	if result.Escalate {
		s.logger.Warn("conversation escalated", zap.String("category", string(result.Category)))
	}
	return result
}

func (s *Service) fallback(local analysis.Decision) model.Result {
	return model.Result{
		Version:     s.version,
		Category:    local.Category,
		Escalate:    local.Crisis,
		Fallback:    true,
		HelpChannel: s.helpChannel,
	}
}
