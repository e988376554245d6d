package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Providers  []ProviderConfig `json:"providers"`
	Interview  InterviewConfig  `json:"interview"`
	Agent      AgentConfig      `json:"agent"`
	Gateway    GatewayConfig    `json:"gateway"`
	Database   DatabaseConfig   `json:"database"`
	Embedding  EmbeddingConfig  `json:"embedding"`
	Connectors ConnectorsConfig `json:"connectors"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type ProviderConfig struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Models   []string          `json:"models,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// InterviewConfig centralizes the conversational constraint constants.
// The time limit and engagement threshold are the hard/soft constraints
// applied by the topic state machine; the confidence threshold gates the
// oracle tier of the intent classifier.
type InterviewConfig struct {
	TopicTimeLimitMin       int     `json:"topic_time_limit_min"`
	EngagementTurnThreshold int     `json:"engagement_turn_threshold"`
	IntentConfidence        float64 `json:"intent_confidence"`
	ReportTimeoutSec        int     `json:"report_timeout_sec"`
	SessionTTLMin           int     `json:"session_ttl_min"`
	FeedbackPoolSize        int     `json:"feedback_pool_size"`
}

// TopicTimeLimit returns the hard per-topic time limit.
func (c InterviewConfig) TopicTimeLimit() time.Duration {
	if c.TopicTimeLimitMin <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.TopicTimeLimitMin) * time.Minute
}

// ReportTimeout returns the secondary timeout for end-of-session
// recommendation generation.
func (c InterviewConfig) ReportTimeout() time.Duration {
	if c.ReportTimeoutSec <= 0 {
		return 8 * time.Second
	}
	return time.Duration(c.ReportTimeoutSec) * time.Second
}

// SessionTTL returns how long an idle session survives in the live store.
func (c InterviewConfig) SessionTTL() time.Duration {
	if c.SessionTTLMin <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(c.SessionTTLMin) * time.Minute
}

// TurnThreshold returns the user-turn count after which high engagement
// surfaces the engaged status.
func (c InterviewConfig) TurnThreshold() int {
	if c.EngagementTurnThreshold <= 0 {
		return 5
	}
	return c.EngagementTurnThreshold
}

// ConfidenceGate returns the minimum confidence for the oracle tier of the
// intent classifier to override the default continue intent.
func (c InterviewConfig) ConfidenceGate() float64 {
	if c.IntentConfidence <= 0 {
		return 0.7
	}
	return c.IntentConfidence
}

// PoolSize returns the bounded worker pool size for parallel feedback
// generation at session end.
func (c InterviewConfig) PoolSize() int {
	if c.FeedbackPoolSize <= 0 {
		return 4
	}
	return c.FeedbackPoolSize
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	MaxSteps       int `json:"max_steps"`
	MaxTimeSec     int `json:"max_time_sec"`
	StepTimeoutSec int `json:"step_timeout_sec"`
}

// MaxTime returns the total time budget for one agent run.
func (c AgentConfig) MaxTime() time.Duration {
	if c.MaxTimeSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.MaxTimeSec) * time.Second
}

// StepTimeout returns the per-step oracle call timeout.
func (c AgentConfig) StepTimeout() time.Duration {
	if c.StepTimeoutSec <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.StepTimeoutSec) * time.Second
}

// Steps returns the step cap for one agent run.
func (c AgentConfig) Steps() int {
	if c.MaxSteps <= 0 {
		return 8
	}
	return c.MaxSteps
}

type GatewayConfig struct {
	Slack   SlackGatewayConfig   `json:"slack"`
	Discord DiscordGatewayConfig `json:"discord"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	AppToken string `json:"app_token"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
	Qdrant   QdrantConfig   `json:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type EmbeddingConfig struct {
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}

// ConnectorsConfig points at the external search services exposed to the
// agent loop as tools.
type ConnectorsConfig struct {
	JobBoardEndpoint string `json:"job_board_endpoint"`
	ReviewEndpoint   string `json:"review_endpoint"`
	APIKey           string `json:"api_key"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
