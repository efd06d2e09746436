package triage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Version 标识分诊输出的结构版本。
type Version string

const (
	// VersionCoping 同理回复 + 固定附带的应对策略。
	VersionCoping Version = "coping.v1"
	// VersionAssessment 分诊摘要 + 推荐资源 + 升级标记。
	VersionAssessment Version = "triage.v2"
	// VersionConversational 单一的对话式回复。
	VersionConversational Version = "conversational.v3"
)

// DefaultVersion is the variant used when configuration does not pick one.
const DefaultVersion = VersionConversational

// FallbackText is returned verbatim whenever the model cannot produce a usable reply.
const FallbackText = "I'm sorry, but I'm having trouble connecting right now. Please try again in a moment."

var (
	// ErrUnknownVersion 表示未识别的版本标签。
	ErrUnknownVersion = errors.New("unknown triage schema version")
	// ErrShapeMismatch 表示模型输出缺少该版本要求的字段。
	ErrShapeMismatch = errors.New("triage output does not match schema")
)

// ParseVersion 解析配置中的版本标签。
func ParseVersion(raw string) (Version, error) {
	switch v := Version(strings.ToLower(strings.TrimSpace(raw))); v {
	case VersionCoping, VersionAssessment, VersionConversational:
		return v, nil
	case "":
		return DefaultVersion, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVersion, raw)
	}
}

// Category 是对用户情绪状态的分类。
type Category string

const (
	CategoryGreeting      Category = "greeting"
	CategoryAmbiguous     Category = "ambiguous"
	CategoryMildDistress  Category = "mild_distress"
	CategoryAdviceRequest Category = "advice_request"
	CategoryLoneliness    Category = "loneliness"
	CategoryPositive      Category = "positive"
	CategoryCrisis        Category = "crisis"
)

// ParseCategory normalises a model-provided label. Unknown labels map to ambiguous.
func ParseCategory(raw string) Category {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	switch c := Category(normalized); c {
	case CategoryGreeting, CategoryAmbiguous, CategoryMildDistress, CategoryAdviceRequest,
		CategoryLoneliness, CategoryPositive, CategoryCrisis:
		return c
	default:
		return CategoryAmbiguous
	}
}

// AllowsStrategies reports whether coping strategies may accompany a reply in this category.
func (c Category) AllowsStrategies() bool {
	return c != CategoryGreeting && c != CategoryPositive
}

// Payload is implemented only by the three versioned variants in this package.
type Payload interface {
	Version() Version
	Narrative() string
	validate() error
}

// Coping is the coping.v1 variant.
type Coping struct {
	InitialResponse  string `json:"initialResponse"`
	CopingStrategies string `json:"copingStrategies"`
}

func (Coping) Version() Version    { return VersionCoping }
func (p Coping) Narrative() string { return p.InitialResponse }

func (p Coping) validate() error {
	if strings.TrimSpace(p.InitialResponse) == "" {
		return fmt.Errorf("%w: initialResponse is required", ErrShapeMismatch)
	}
	return nil
}

// Assessment is the triage.v2 variant.
type Assessment struct {
	TriageResult           string   `json:"triageResult"`
	SuggestedResources     []string `json:"suggestedResources"`
	EscalateToProfessional bool     `json:"escalateToProfessional"`
}

func (Assessment) Version() Version    { return VersionAssessment }
func (p Assessment) Narrative() string { return p.TriageResult }

func (p Assessment) validate() error {
	if strings.TrimSpace(p.TriageResult) == "" {
		return fmt.Errorf("%w: triageResult is required", ErrShapeMismatch)
	}
	return nil
}

// Conversational is the conversational.v3 variant.
type Conversational struct {
	Response string `json:"response"`
}

func (Conversational) Version() Version    { return VersionConversational }
func (p Conversational) Narrative() string { return p.Response }

func (p Conversational) validate() error {
	if strings.TrimSpace(p.Response) == "" {
		return fmt.Errorf("%w: response is required", ErrShapeMismatch)
	}
	return nil
}

// DecodePayload 按版本解码并校验 JSON 负载。
func DecodePayload(version Version, raw []byte) (Payload, error) {
	var (
		payload Payload
		err     error
	)
	switch version {
	case VersionCoping:
		var p Coping
		err = json.Unmarshal(raw, &p)
		payload = p
	case VersionAssessment:
		var p Assessment
		err = json.Unmarshal(raw, &p)
		payload = p
	case VersionConversational:
		var p Conversational
		err = json.Unmarshal(raw, &p)
		payload = p
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, version)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	if err := payload.validate(); err != nil {
		return nil, err
	}
	return payload, nil
}

// Result 是一次分诊的完整结果，仅在请求内存在，以 Text() 的形式落库。
type Result struct {
	Version     Version
	Category    Category
	Escalate    bool
	Fallback    bool
	Payload     Payload
	HelpChannel string
}

// Narrative returns the primary reply, or the fixed fallback text.
func (r Result) Narrative() string {
	if r.Fallback || r.Payload == nil {
		return FallbackText
	}
	return r.Payload.Narrative()
}

// CopingStrategies returns the strategies carried by a coping.v1 payload.
func (r Result) CopingStrategies() string {
	if p, ok := r.Payload.(Coping); ok && !r.Fallback {
		return p.CopingStrategies
	}
	return ""
}

// Resources returns the suggested resources carried by a triage.v2 payload.
func (r Result) Resources() []string {
	if p, ok := r.Payload.(Assessment); ok && !r.Fallback {
		return p.SuggestedResources
	}
	return nil
}

// Text 拼接为一条可展示、可持久化的 AI 消息。
func (r Result) Text() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(r.Narrative()))

	if strategies := strings.TrimSpace(r.CopingStrategies()); strategies != "" {
		b.WriteString("\n\n")
		b.WriteString(strategies)
	}

	if resources := r.Resources(); len(resources) > 0 {
		b.WriteString("\n\nSuggested resources:")
		for _, res := range resources {
			if res = strings.TrimSpace(res); res != "" {
				b.WriteString("\n- ")
				b.WriteString(res)
			}
		}
	}

	if r.Escalate && r.HelpChannel != "" && !strings.Contains(b.String(), r.HelpChannel) {
		b.WriteString("\n\n")
		b.WriteString(r.HelpChannel)
	}
	return b.String()
}

type resultJSON struct {
	Version          Version         `json:"version"`
	Category         Category        `json:"category"`
	Escalate         bool            `json:"escalateToProfessional"`
	Fallback         bool            `json:"fallback"`
	Text             string          `json:"text"`
	CopingStrategies string          `json:"copingStrategies,omitempty"`
	Resources        []string        `json:"suggestedResources,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON 输出带版本标签的信封，payload 字段保留原始变体结构。
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Version:          r.Version,
		Category:         r.Category,
		Escalate:         r.Escalate,
		Fallback:         r.Fallback,
		Text:             r.Text(),
		CopingStrategies: r.CopingStrategies(),
		Resources:        r.Resources(),
	}
	if r.Payload != nil && !r.Fallback {
		raw, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, err
		}
		out.Payload = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a result from its tagged envelope.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Result{
		Version:  in.Version,
		Category: in.Category,
		Escalate: in.Escalate,
		Fallback: in.Fallback,
	}
	if len(in.Payload) == 0 || in.Fallback {
		return nil
	}
	payload, err := DecodePayload(in.Version, in.Payload)
	if err != nil {
		return err
	}
	r.Payload = payload
	return nil
}
