package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/git-sakshii/RealPrep-AI-App/internal/utils"
)

// Config carries everything the server reads from the environment.
type Config struct {
	Addr string

	// Persistence. Empty SQLitePath selects the in-memory store.
	SQLitePath    string
	MigrationsDir string

	// Frontend serving: static build dir, or a dev server to proxy to.
	StaticDir      string
	DevFrontendURL string

	// Azure OpenAI (chat completion + whisper + speech synthesis).
	AzureEndpoint     string
	AzureAPIKey       string
	ChatDeployment    string
	WhisperDeployment string
	APIVersion        string
	TTSModel          string
	TTSVoice          string

	// Hume facial-emotion batch API.
	HumeAPIKey string
	HumeURL    string

	// Local retrieval service used after five main questions.
	RetrievalURL string

	// Audio clip spool.
	RecordingsDir string

	// UseMockAI swaps every cloud adapter for deterministic fakes.
	UseMockAI bool

	DefaultQuestionCount int
	DefaultDurationMin   int
}

// Load reads the environment (honoring a local .env file) and builds the
// config with development defaults.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Addr: utils.SafeEnv("REALPREP_ADDR", ":8080"),

		SQLitePath:    os.Getenv("REALPREP_SQLITE_PATH"),
		MigrationsDir: os.Getenv("REALPREP_MIGRATIONS_DIR"),

		StaticDir:      os.Getenv("REALPREP_STATIC_DIR"),
		DevFrontendURL: os.Getenv("REALPREP_DEV_FRONTEND_URL"),

		AzureEndpoint:     os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureAPIKey:       os.Getenv("AZURE_OPENAI_API_KEY"),
		ChatDeployment:    utils.SafeEnv("AZURE_CHAT_DEPLOYMENT", "gpt-4o"),
		WhisperDeployment: utils.SafeEnv("AZURE_WHISPER_DEPLOYMENT", "whisper-1"),
		APIVersion:        utils.SafeEnv("AZURE_OPENAI_API_VERSION", "2025-01-01-preview"),
		TTSModel:          utils.SafeEnv("REALPREP_TTS_MODEL", "tts-1"),
		TTSVoice:          utils.SafeEnv("REALPREP_TTS_VOICE", "alloy"),

		HumeAPIKey: os.Getenv("HUME_API_KEY"),
		HumeURL:    utils.SafeEnv("HUME_API_URL", "https://api.hume.ai/v0/batch/jobs"),

		RetrievalURL: utils.SafeEnv("REALPREP_RETRIEVAL_URL", "http://127.0.0.1:8000"),

		RecordingsDir: utils.SafeEnv("REALPREP_RECORDINGS_DIR", "recordings"),

		UseMockAI: boolEnv("REALPREP_USE_MOCK_AI", false),

		DefaultQuestionCount: intEnv("REALPREP_QUESTION_COUNT", 10),
		DefaultDurationMin:   intEnv("REALPREP_DURATION_MIN", 20),
	}
}

func boolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "TRUE"
}

func intEnv(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
