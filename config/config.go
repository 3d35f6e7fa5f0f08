package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	Port    int
	BaseURL string // public hostname calls and callbacks are routed to, no scheme

	ACSConnectionString string

	AzureOpenAIEndpoint string // hostname of the Azure OpenAI resource
	AzureOpenAIAPIKey   string
	Model               string
	TranscriptionModel  string
	Voice               string

	AgentDir string

	RedisURL       string
	RedisPassword  string
	MaxSessions    int
	SessionTimeout time.Duration
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:               8080,
		Model:              "gpt-realtime",
		TranscriptionModel: "gpt-4o-mini-transcribe",
		Voice:              "alloy",
		AgentDir:           "agents",
		RedisURL:           "localhost:6379",
		RedisPassword:      "",
		MaxSessions:        100,
		SessionTimeout:     30 * time.Minute,
	}

	// Required: ACS_CONNECTION_STRING
	config.ACSConnectionString = os.Getenv("ACS_CONNECTION_STRING")
	if config.ACSConnectionString == "" {
		return nil, fmt.Errorf("ACS_CONNECTION_STRING environment variable is required")
	}

	// Required: AZURE_OPENAI_ENDPOINT
	config.AzureOpenAIEndpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
	if config.AzureOpenAIEndpoint == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT environment variable is required")
	}

	// Required: AZURE_OPENAI_API_KEY
	config.AzureOpenAIAPIKey = os.Getenv("AZURE_OPENAI_API_KEY")
	if config.AzureOpenAIAPIKey == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_API_KEY environment variable is required")
	}

	// Required: BASE_URL
	config.BaseURL = os.Getenv("BASE_URL")
	if config.BaseURL == "" {
		return nil, fmt.Errorf("BASE_URL environment variable is required")
	}

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	// Optional: MODEL
	if model := os.Getenv("MODEL"); model != "" {
		config.Model = model
	}

	// Optional: TRANSCRIPTION_MODEL
	if model := os.Getenv("TRANSCRIPTION_MODEL"); model != "" {
		config.TranscriptionModel = model
	}

	// Optional: VOICE
	if voice := os.Getenv("VOICE"); voice != "" {
		config.Voice = voice
	}

	// Optional: AGENT_DIR
	if dir := os.Getenv("AGENT_DIR"); dir != "" {
		config.AgentDir = dir
	}

	// Optional: REDIS_URL
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}

	// Optional: REDIS_PASSWORD
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	// Optional: MAX_SESSIONS
	if maxSessions := os.Getenv("MAX_SESSIONS"); maxSessions != "" {
		m, err := strconv.Atoi(maxSessions)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
		}
		config.MaxSessions = m
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	return config, nil
}
