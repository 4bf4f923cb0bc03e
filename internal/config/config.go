package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of the backend.
type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Vector    VectorConfig
	Wallet    WalletConfig
	Twilio    TwilioConfig

	DemoMode bool `yaml:"demo_mode" env:"USE_DEMO_MODE" env-default:"false"`
}

type ServerConfig struct {
	Port        string        `yaml:"port" env:"PORT" env-default:"8000"`
	Env         string        `yaml:"env" env:"APP_ENV" env-default:"development"`
	Debug       bool          `yaml:"debug" env:"DEBUG" env-default:"false"`
	LogLevel    string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	BodyLimit   int           `yaml:"body_limit" env:"BODY_LIMIT" env-default:"1048576"`
	CORSOrigins string        `yaml:"cors_origins" env:"CORS_ORIGINS" env-default:"*"`
	RateLimit   int           `yaml:"rate_limit" env:"RATE_LIMIT" env-default:"60"`
	RateWindow  time.Duration `yaml:"rate_window" env:"RATE_WINDOW" env-default:"1m"`
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" env-default:"30s"`
}

type SessionConfig struct {
	TTL             time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"1h"`
	MaxPerIP        int           `yaml:"max_per_ip" env:"MAX_SESSIONS_PER_IP" env-default:"10"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"SESSION_CLEANUP_INTERVAL" env-default:"5m"`
	HistoryLimit    int           `yaml:"history_limit" env:"SESSION_HISTORY_LIMIT" env-default:"10"`
	FollowUpWindow  time.Duration `yaml:"follow_up_window" env:"FOLLOW_UP_WINDOW" env-default:"2m"`
}

type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL"`
}

type DatabaseConfig struct {
	URL             string `yaml:"url" env:"DATABASE_URL"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	AutoMigrate     bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
	SlowQueryMillis int    `yaml:"slow_query_ms" env:"DB_SLOW_QUERY_MS" env-default:"200"`
}

type LLMConfig struct {
	Provider      string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	UseGemini     bool          `yaml:"use_gemini" env:"USE_GEMINI" env-default:"false"`
	OpenAIKey     string        `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	GoogleKey     string        `yaml:"google_api_key" env:"GOOGLE_API_KEY"`
	OllamaHost    string        `yaml:"ollama_host" env:"OLLAMA_HOST" env-default:"http://127.0.0.1:11434"`
	IntentModel   string        `yaml:"intent_model" env:"INTENT_MODEL"`
	QueryModel    string        `yaml:"query_model" env:"QUERY_MODEL"`
	ActionModel   string        `yaml:"action_model" env:"ACTION_MODEL"`
	FallbackModel string        `yaml:"fallback_model" env:"FALLBACK_MODEL"`
	Temperature   float32       `yaml:"temperature" env:"DEFAULT_TEMPERATURE" env-default:"0"`
	MaxTokens     int           `yaml:"max_tokens" env:"MAX_TOKENS" env-default:"1024"`
	Timeout       time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"30s"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider" env:"EMBEDDING_PROVIDER"`
	Model     string `yaml:"model" env:"EMBEDDING_MODEL"`
	Dimension int    `yaml:"dimension" env:"EMBEDDING_DIMENSION" env-default:"384"`
}

type VectorConfig struct {
	PineconeKey     string  `yaml:"pinecone_api_key" env:"PINECONE_API_KEY"`
	Index           string  `yaml:"index" env:"PINECONE_INDEX" env-default:"defi-queries"`
	Namespace       string  `yaml:"namespace" env:"PINECONE_NAMESPACE"`
	TopK            int     `yaml:"top_k" env:"VECTOR_TOP_K" env-default:"3"`
	DirectThreshold float64 `yaml:"direct_threshold" env:"VECTOR_DIRECT_THRESHOLD" env-default:"0.98"`
	RefineThreshold float64 `yaml:"refine_threshold" env:"VECTOR_REFINE_THRESHOLD" env-default:"0.90"`
}

type WalletConfig struct {
	EncryptionKey string `yaml:"encryption_key" env:"WALLET_ENCRYPTION_KEY"`
	Network       string `yaml:"network" env:"WALLET_NETWORK" env-default:"base-sepolia"`
	RPCURL        string `yaml:"rpc_url" env:"ETH_RPC_URL"`
}

type TwilioConfig struct {
	AccountSID    string `yaml:"account_sid" env:"TWILIO_ACCOUNT_SID"`
	AuthToken     string `yaml:"auth_token" env:"TWILIO_AUTH_TOKEN"`
	WhatsAppFrom  string `yaml:"whatsapp_from" env:"TWILIO_WHATSAPP_FROM"`
	ValidateHooks bool   `yaml:"validate_webhooks" env:"TWILIO_VALIDATE_WEBHOOKS" env-default:"true"`
	PublicBaseURL string `yaml:"public_base_url" env:"PUBLIC_BASE_URL"`
}

// Load reads .env (when present), an optional YAML file named by CONFIG_PATH,
// and finally the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	var err error
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.UseGemini {
		c.LLM.Provider = ProviderGemini
	}
	if c.DemoMode {
		c.LLM.Provider = ProviderMock
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = c.LLM.Provider
	}
	c.Embedding.Provider = strings.ToLower(c.Embedding.Provider)
	if c.DemoMode {
		c.Embedding.Provider = ProviderMock
	}
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// Validate reports configuration combinations that cannot start.
func (c *Config) Validate() error {
	var errs []error

	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.OpenAIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case ProviderGemini:
		if c.LLM.GoogleKey == "" {
			errs = append(errs, errors.New("GOOGLE_API_KEY is required for the gemini provider"))
		}
	case ProviderOllama, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider))
	}

	if !c.DemoMode && c.Vector.PineconeKey == "" {
		errs = append(errs, errors.New("PINECONE_API_KEY is required outside demo mode"))
	}
	if c.Vector.TopK < 1 || c.Vector.TopK > 100 {
		errs = append(errs, errors.New("VECTOR_TOP_K must be between 1 and 100"))
	}
	if c.Vector.RefineThreshold > c.Vector.DirectThreshold {
		errs = append(errs, errors.New("VECTOR_REFINE_THRESHOLD must not exceed VECTOR_DIRECT_THRESHOLD"))
	}
	if c.Wallet.EncryptionKey != "" && len(c.Wallet.EncryptionKey) < 32 {
		errs = append(errs, errors.New("WALLET_ENCRYPTION_KEY must be at least 32 characters"))
	}
	if c.Session.MaxPerIP < 1 {
		errs = append(errs, errors.New("MAX_SESSIONS_PER_IP must be positive"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the server runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Mode is the human readable runtime mode exposed on /health/mode.
func (c *Config) Mode() string {
	if c.DemoMode {
		return "DEMO"
	}
	return "PRODUCTION"
}

// TwilioEnabled reports whether outbound WhatsApp messages can be sent.
func (c *Config) TwilioEnabled() bool {
	return c.Twilio.AccountSID != "" && c.Twilio.AuthToken != "" && c.Twilio.WhatsAppFrom != ""
}
