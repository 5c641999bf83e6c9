package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LogLevel string

	// transcription server
	ServerAddr    string
	GRPCAddr      string
	ServerToken   string
	OpenAIAPIKey  string
	GroqAPIKey    string
	GeminiAPIKey  string
	OllamaBaseURL string

	// desktop agent
	AgentHTTPAddr   string
	ITOServerAddr   string
	ITOToken        string
	ShortcutsFile   string
	MicDevice       string
	Grammar         bool
	CursorContext   bool
	ContextLength   int
	TypingCharDelay time.Duration

	ASRProvider         string
	ASRModel            string
	ASRPrompt           string
	LLMProvider         string
	LLMModel            string
	LLMTemperature      float64
	TranscriptionPrompt string
	EditingPrompt       string
	NoSpeechThreshold   float64
	LowQualityThreshold float64

	KeyListenerBin   string
	AudioRecorderBin string
	TextReaderBin    string
	TextWriterBin    string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func LoadConfig() *Config {
	return &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ServerAddr:    getEnv("SERVER_ADDR", ":8080"),
		GRPCAddr:      getEnv("GRPC_ADDR", ":50051"),
		ServerToken:   getEnv("SERVER_TOKEN", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		GroqAPIKey:    getEnv("GROQ_API_KEY", ""),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", ""),

		AgentHTTPAddr:   getEnv("AGENT_HTTP_ADDR", "127.0.0.1:7345"),
		ITOServerAddr:   getEnv("ITO_SERVER_ADDR", "localhost:50051"),
		ITOToken:        getEnv("ITO_TOKEN", ""),
		ShortcutsFile:   getEnv("ITO_SHORTCUTS_FILE", ""),
		MicDevice:       getEnv("ITO_MIC_DEVICE", ""),
		Grammar:         getEnvBool("ITO_GRAMMAR", true),
		CursorContext:   getEnvBool("ITO_CONTEXT", true),
		ContextLength:   getEnvInt("ITO_CONTEXT_LENGTH", 0),
		TypingCharDelay: getEnvDuration("ITO_TYPING_CHAR_DELAY", 0),

		ASRProvider:         getEnv("ITO_ASR_PROVIDER", "groq"),
		ASRModel:            getEnv("ITO_ASR_MODEL", "whisper-large-v3"),
		ASRPrompt:           getEnv("ITO_ASR_PROMPT", ""),
		LLMProvider:         getEnv("ITO_LLM_PROVIDER", "groq"),
		LLMModel:            getEnv("ITO_LLM_MODEL", "llama-3.3-70b-versatile"),
		LLMTemperature:      getEnvFloat("ITO_LLM_TEMPERATURE", 0.1),
		TranscriptionPrompt: getEnv("ITO_TRANSCRIPTION_PROMPT", ""),
		EditingPrompt:       getEnv("ITO_EDITING_PROMPT", ""),
		NoSpeechThreshold:   getEnvFloat("ITO_NO_SPEECH_THRESHOLD", 0.6),
		LowQualityThreshold: getEnvFloat("ITO_LOW_QUALITY_THRESHOLD", -0.55),

		KeyListenerBin:   getEnv("ITO_KEY_LISTENER_BIN", "global-key-listener"),
		AudioRecorderBin: getEnv("ITO_AUDIO_RECORDER_BIN", "audio-recorder"),
		TextReaderBin:    getEnv("ITO_TEXT_READER_BIN", "selected-text-reader"),
		TextWriterBin:    getEnv("ITO_TEXT_WRITER_BIN", "text-writer"),

		DatabaseDSN: getEnv("DATABASE_DSN", "ito.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}
