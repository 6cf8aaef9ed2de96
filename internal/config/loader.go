package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables, optionally
// overlaid by a local .env file. Local .env values win over
// already-exported environment variables, matching the teacher's
// godotenv.Overload() posture for deterministic local development.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Defaults()

	if v := strings.TrimSpace(os.Getenv("MAX_FILE_SIZE_BYTES")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxFileSizeBytes = n
		}
	}
	cfg.FileStorageBasePath = strings.TrimSpace(os.Getenv("FILE_STORAGE_BASE_PATH"))
	cfg.PostgresConnectionString = strings.TrimSpace(os.Getenv("POSTGRES_CONNECTION_STRING"))
	cfg.JWTSigningSecret = strings.TrimSpace(os.Getenv("JWT_SIGNING_SECRET"))

	cfg.Ollama.BaseURL = strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL"))
	cfg.Ollama.APIKey = strings.TrimSpace(os.Getenv("OLLAMA_API_KEY"))
	cfg.Ollama.EmbeddingModel = strings.TrimSpace(os.Getenv("OLLAMA_EMBEDDING_MODEL"))
	cfg.Ollama.ChatModel = strings.TrimSpace(os.Getenv("OLLAMA_CHAT_MODEL"))

	if v := strings.TrimSpace(os.Getenv("S3_BUCKET")); v != "" {
		cfg.S3.Enabled = true
		cfg.S3.Bucket = v
	}
	cfg.S3.Region = firstNonEmpty(os.Getenv("S3_REGION"), "us-east-1")
	cfg.S3.Endpoint = strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
	cfg.S3.AccessKey = strings.TrimSpace(os.Getenv("S3_ACCESS_KEY"))
	cfg.S3.SecretKey = strings.TrimSpace(os.Getenv("S3_SECRET_KEY"))
	cfg.S3.UsePathStyle = parseBool(os.Getenv("S3_USE_PATH_STYLE"))

	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = v
	}
	cfg.Redis.Password = strings.TrimSpace(os.Getenv("REDIS_PASSWORD"))
	if v := strings.TrimSpace(os.Getenv("REDIS_DB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("UPLOAD_SESSION_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Upload.SessionTTL = d
		}
	}

	applyIntEnv(&cfg.Section.MaxTokensPerSection, "SECTION_MAX_TOKENS")
	applyIntEnv(&cfg.Section.LookaheadBufferSize, "SECTION_LOOKAHEAD_BUFFER_SIZE")
	applyFloatEnv(&cfg.Section.StdDevMultiplier, "SECTION_STD_DEV_MULTIPLIER")
	applyFloatEnv(&cfg.Section.MinimumSimilarityThreshold, "SECTION_MIN_SIMILARITY_THRESHOLD")
	applyFloatEnv(&cfg.Section.TokenStrictnessThreshold, "SECTION_TOKEN_STRICTNESS_THRESHOLD")
	applyIntEnv(&cfg.Section.MinimumChunksPerSection, "SECTION_MIN_CHUNKS")
	applyIntEnv(&cfg.Section.MinimumTokensPerSection, "SECTION_MIN_TOKENS")
	applyIntEnv(&cfg.Chunk.MaxTokensPerChunk, "CHUNK_MAX_TOKENS")

	cfg.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	cfg.LogPath = strings.TrimSpace(os.Getenv("LOG_PATH"))

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}

func parseBool(v string) bool {
	v = strings.TrimSpace(v)
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func applyIntEnv(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func applyFloatEnv(dst *float64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
