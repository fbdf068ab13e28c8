package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config はサービス全体の設定をまとめる。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Session SessionConfig
	Storage StorageConfig
}

// Load は環境変数から設定を読み込む。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Session: session,
		Storage: StorageConfig{DataDir: getEnvOrDefault("DATA_DIR", "./data")},
	}, nil
}

// ServerConfig は HTTP サーバの設定。
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// ":8080" や "127.0.0.1:8080" をそのまま渡せるようにする。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// SessionConfig bounds one reflection session.
type SessionConfig struct {
	Duration time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	seconds := 120
	if override, err := parseOptionalIntEnv("SESSION_DURATION_SECONDS"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return SessionConfig{}, fmt.Errorf("SESSION_DURATION_SECONDS must be positive, got %d", *override)
		}
		seconds = *override
	}
	return SessionConfig{Duration: time.Duration(seconds) * time.Second}, nil
}

// StorageConfig locates the local key-value files.
type StorageConfig struct {
	DataDir string
}

// AIConfig は大規模言語モデル関連の設定。The conversation and summary calls
// use two differently tuned instances of the same model: natural dialogue
// wants randomness, structured extraction wants determinism.
type AIConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string

	ConversationTemperature float64
	ConversationMaxTokens   int
	SummaryTemperature      float64
	SummaryMaxTokens        int

	StreamResponse bool
}

// Enabled は必須の認証情報が揃っているかを返す。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewConversationModel builds the moderate-randomness dialogue model.
func (c AIConfig) NewConversationModel(ctx context.Context) (model.ChatModel, error) {
	return c.newChatModel(ctx, c.ConversationTemperature, c.ConversationMaxTokens)
}

// NewSummaryModel builds the low-randomness extraction model.
func (c AIConfig) NewSummaryModel(ctx context.Context) (model.ChatModel, error) {
	return c.newChatModel(ctx, c.SummaryTemperature, c.SummaryMaxTokens)
}

func (c AIConfig) newChatModel(ctx context.Context, temperature float64, maxTokens int) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark の認証情報が不足しています。ARK_API_KEY + ARK_MODEL か AK/SK の組み合わせを設定してください")
	}

	temp := float32(temperature)
	tokens := maxTokens

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   &tokens,
		Temperature: &temp,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	convTemp, err := parseFloatEnv("AI_CONVERSATION_TEMPERATURE", 0.7)
	if err != nil {
		return AIConfig{}, err
	}

	summaryTemp, err := parseFloatEnv("AI_SUMMARY_TEMPERATURE", 0.3)
	if err != nil {
		return AIConfig{}, err
	}

	convTokens, err := parseIntEnv("AI_CONVERSATION_MAX_TOKENS", 200)
	if err != nil {
		return AIConfig{}, err
	}

	summaryTokens, err := parseIntEnv("AI_SUMMARY_MAX_TOKENS", 800)
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("ARK_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:                  strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:               strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:               strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:                   strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:                 getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:                  getEnvOrDefault("ARK_REGION", "cn-beijing"),
		ConversationTemperature: convTemp,
		ConversationMaxTokens:   convTokens,
		SummaryTemperature:      summaryTemp,
		SummaryMaxTokens:        summaryTokens,
		StreamResponse:          stream,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
