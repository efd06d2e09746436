package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	AI     AIConfig     `mapstructure:"ai"`
	Triage TriageConfig `mapstructure:"triage"`
	Store  StoreConfig  `mapstructure:"store"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Mail   MailConfig   `mapstructure:"mail"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Addr           string   `mapstructure:"-"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig 控制 zap 日志输出。
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AIConfig 描述大模型相关配置。Provider 为空时按凭证自动选择。
type AIConfig struct {
	Provider    string        `mapstructure:"provider"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Ark         ArkConfig     `mapstructure:"ark"`
	OpenAI      OpenAIConfig  `mapstructure:"openai"`
	Gemini      GeminiConfig  `mapstructure:"gemini"`
}

// ArkConfig 描述火山方舟模型凭证。
type ArkConfig struct {
	APIKey    string `mapstructure:"api_key"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	Region    string `mapstructure:"region"`
}

// OpenAIConfig describes an OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// GeminiConfig describes the Gemini API credentials.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// TriageConfig 控制分诊策略。
type TriageConfig struct {
	SchemaVersion string `mapstructure:"schema_version"`
	HelpChannel   string `mapstructure:"help_channel"`
}

// StoreConfig 选择对话存储后端。
type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	DSN      string         `mapstructure:"dsn"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
}

// DynamoDBConfig describes the DynamoDB conversation table.
type DynamoDBConfig struct {
	Table           string `mapstructure:"table"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	CreateTable     bool   `mapstructure:"create_table"`
}

// AuthConfig 描述身份提供方、会话与管理员种子。
type AuthConfig struct {
	Provider         string         `mapstructure:"provider"`
	AdminEmail       string         `mapstructure:"admin_email"`
	AdminPassword    string         `mapstructure:"admin_password"`
	AdminDisplayName string         `mapstructure:"admin_display_name"`
	SessionTTL       time.Duration  `mapstructure:"session_ttl"`
	CookieSecure     bool           `mapstructure:"cookie_secure"`
	Firebase         FirebaseConfig `mapstructure:"firebase"`
}

// FirebaseConfig describes the Identity Toolkit REST endpoint.
type FirebaseConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	RequestURI string `mapstructure:"request_uri"`
}

// MailConfig 描述 SMTP 发信配置。
type MailConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	SenderName   string `mapstructure:"sender_name"`
	EscalationTo string `mapstructure:"escalation_to"`
	SupportTo    string `mapstructure:"support_to"`
}

// Configured 表示 SMTP 必需字段是否齐全。
func (c MailConfig) Configured() bool {
	return c.Host != "" && c.User != "" && c.Password != ""
}

const defaultHelpChannel = "If you are thinking about harming yourself, please reach out right now: you can contact a campus counselor anonymously through CampusMind support, or call your local emergency number if you are in immediate danger."

// bindings 把配置键映射到环境变量，第一个变量名优先。
var bindings = map[string][]string{
	"server.port":                      {"PORT"},
	"server.allowed_origins":           {"CORS_ALLOWED_ORIGINS"},
	"log.level":                        {"LOG_LEVEL"},
	"log.format":                       {"LOG_FORMAT"},
	"ai.provider":                      {"AI_PROVIDER"},
	"ai.timeout":                       {"AI_TIMEOUT"},
	"ai.max_retries":                   {"AI_MAX_RETRIES"},
	"ai.temperature":                   {"AI_TEMPERATURE"},
	"ai.max_tokens":                    {"AI_MAX_TOKENS"},
	"ai.ark.api_key":                   {"ARK_API_KEY"},
	"ai.ark.access_key":                {"ARK_ACCESS_KEY"},
	"ai.ark.secret_key":                {"ARK_SECRET_KEY"},
	"ai.ark.model":                     {"ARK_MODEL", "Model"},
	"ai.ark.base_url":                  {"ARK_BASE_URL"},
	"ai.ark.region":                    {"ARK_REGION"},
	"ai.openai.api_key":                {"OPENAI_API_KEY"},
	"ai.openai.model":                  {"OPENAI_MODEL"},
	"ai.openai.base_url":               {"OPENAI_BASE_URL"},
	"ai.gemini.api_key":                {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"ai.gemini.model":                  {"GEMINI_MODEL"},
	"triage.schema_version":            {"TRIAGE_SCHEMA_VERSION"},
	"triage.help_channel":              {"TRIAGE_HELP_CHANNEL"},
	"store.driver":                     {"STORE_DRIVER"},
	"store.dsn":                        {"DATABASE_URL"},
	"store.dynamodb.table":             {"DYNAMODB_TABLE"},
	"store.dynamodb.region":            {"AWS_REGION"},
	"store.dynamodb.endpoint":          {"DYNAMODB_ENDPOINT"},
	"store.dynamodb.access_key_id":     {"AWS_ACCESS_KEY_ID"},
	"store.dynamodb.secret_access_key": {"AWS_SECRET_ACCESS_KEY"},
	"store.dynamodb.create_table":      {"DYNAMODB_CREATE_TABLE"},
	"auth.provider":                    {"AUTH_PROVIDER"},
	"auth.admin_email":                 {"ADMIN_EMAIL"},
	"auth.admin_password":              {"ADMIN_BOOTSTRAP_PASSWORD"},
	"auth.admin_display_name":          {"ADMIN_DISPLAY_NAME"},
	"auth.session_ttl":                 {"SESSION_TTL"},
	"auth.cookie_secure":               {"SESSION_COOKIE_SECURE"},
	"auth.firebase.api_key":            {"FIREBASE_API_KEY"},
	"auth.firebase.base_url":           {"FIREBASE_AUTH_BASE_URL"},
	"auth.firebase.request_uri":        {"FIREBASE_REQUEST_URI"},
	"mail.host":                        {"SMTP_HOST"},
	"mail.port":                        {"SMTP_PORT"},
	"mail.user":                        {"SMTP_USER"},
	"mail.password":                    {"SMTP_PASS", "SMTP_PASSWORD"},
	"mail.sender_name":                 {"SMTP_SENDER_NAME"},
	"mail.escalation_to":               {"SUPPORT_ESCALATION_EMAIL"},
	"mail.support_to":                  {"SUPPORT_EMAIL_TO"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ai.provider", "")
	v.SetDefault("ai.timeout", "20s")
	v.SetDefault("ai.max_retries", 1)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.ark.base_url", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ai.ark.region", "cn-beijing")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.gemini.model", "gemini-2.0-flash")
	v.SetDefault("triage.schema_version", "conversational.v3")
	v.SetDefault("triage.help_channel", defaultHelpChannel)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dynamodb.table", "Conversations")
	v.SetDefault("store.dynamodb.region", "us-east-1")
	v.SetDefault("store.dynamodb.create_table", false)
	v.SetDefault("auth.provider", "local")
	v.SetDefault("auth.admin_email", "admin@campusmind.app")
	v.SetDefault("auth.admin_display_name", "Admin")
	v.SetDefault("auth.session_ttl", "24h")
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.firebase.base_url", "https://identitytoolkit.googleapis.com/v1")
	v.SetDefault("auth.firebase.request_uri", "http://localhost")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.sender_name", "CampusMind Support")
	v.SetDefault("mail.support_to", "support@campus.test")
}

// Load 从环境变量以及可选的 CONFIG_FILE 加载配置。
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	addr, err := resolveAddr(c.Server.Port)
	if err != nil {
		return err
	}
	c.Server.Addr = addr
	c.Server.AllowedOrigins = splitList(c.Server.AllowedOrigins)

	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	switch c.AI.Provider {
	case "", ProviderArk, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("invalid AI_PROVIDER value %q", c.AI.Provider)
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 20 * time.Second
	}
	// 最多重试一次。
	if c.AI.MaxRetries < 0 {
		c.AI.MaxRetries = 0
	}
	if c.AI.MaxRetries > 1 {
		c.AI.MaxRetries = 1
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "memory":
	case "postgres", "sqlite":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=%s", c.Store.Driver)
		}
	case "dynamodb":
		if c.Store.DynamoDB.Table == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for STORE_DRIVER=dynamodb")
		}
	default:
		return fmt.Errorf("invalid STORE_DRIVER value %q", c.Store.Driver)
	}

	c.Auth.Provider = strings.ToLower(strings.TrimSpace(c.Auth.Provider))
	switch c.Auth.Provider {
	case "local":
	case "firebase":
		if c.Auth.Firebase.APIKey == "" {
			return fmt.Errorf("FIREBASE_API_KEY is required for AUTH_PROVIDER=firebase")
		}
	default:
		return fmt.Errorf("invalid AUTH_PROVIDER value %q", c.Auth.Provider)
	}
	c.Auth.AdminEmail = strings.ToLower(strings.TrimSpace(c.Auth.AdminEmail))
	if c.Auth.SessionTTL <= 0 {
		c.Auth.SessionTTL = 24 * time.Hour
	}

	if c.Mail.Port <= 0 {
		c.Mail.Port = 587
	}
	return nil
}

// resolveAddr 解析服务器监听地址。
func resolveAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// splitList 兼容环境变量里的逗号分隔写法。
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, raw := range values {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// 推理提供方名称。
const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ResolvedProvider 返回实际使用的推理提供方，未配置任何凭证时返回空串。
func (c AIConfig) ResolvedProvider() string {
	if c.Provider != "" {
		return c.Provider
	}
	switch {
	case c.Ark.Enabled():
		return ProviderArk
	case c.OpenAI.APIKey != "":
		return ProviderOpenAI
	case c.Gemini.APIKey != "":
		return ProviderGemini
	default:
		return ""
	}
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个方舟模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Ark.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	temperature := float32(c.Temperature)
	cfg := &ark.ChatModelConfig{
		BaseURL:     c.Ark.BaseURL,
		Region:      c.Ark.Region,
		APIKey:      c.Ark.APIKey,
		AccessKey:   c.Ark.AccessKey,
		SecretKey:   c.Ark.SecretKey,
		Model:       c.Ark.Model,
		Temperature: &temperature,
	}
	if c.MaxTokens > 0 {
		maxTokens := c.MaxTokens
		cfg.MaxTokens = &maxTokens
	}

	return ark.NewChatModel(ctx, cfg)
}
