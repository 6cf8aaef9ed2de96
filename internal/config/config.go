// Package config builds a startup-phase configuration struct from the
// process environment. It is constructed once (in main) and passed by
// reference to every collaborator that needs it — there is no package
// level singleton.
package config

import "time"

// SectionConfig holds the tuning constants for the section reader
// (spec §4.3).
type SectionConfig struct {
	MaxTokensPerSection         int
	LookaheadBufferSize         int
	StdDevMultiplier            float64
	MinimumSimilarityThreshold  float64
	TokenStrictnessThreshold    float64
	MinimumChunksPerSection     int
	MinimumTokensPerSection     int
}

// ChunkConfig holds the tuning constants for the chunk reader (spec §4.2).
type ChunkConfig struct {
	MaxTokensPerChunk int
	StopSignals       []string
}

// OllamaConfig configures the embedding/chat model ports.
type OllamaConfig struct {
	BaseURL        string
	APIKey         string
	EmbeddingModel string
	ChatModel      string
}

// S3Config configures the S3-compatible blob filesystem adapter.
type S3Config struct {
	Enabled      bool
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// RedisConfig configures the ephemeral upload-session cache.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// UploadConfig holds the chunked-upload state machine's tunables (spec §4.7).
type UploadConfig struct {
	SessionTTL        time.Duration
	MaxChunkSizeBytes int64
}

// Config is the fully-resolved, immutable-after-load configuration for
// one process.
type Config struct {
	MaxFileSizeBytes        int64
	FileStorageBasePath     string
	PostgresConnectionString string
	JWTSigningSecret        string

	Ollama  OllamaConfig
	S3      S3Config
	Redis   RedisConfig
	Upload  UploadConfig
	Section SectionConfig
	Chunk   ChunkConfig

	LogLevel string
	LogPath  string
}

// MaxUploadChunkSize is the hard ceiling from spec §3/§4.7: chunk_size
// must never exceed 50 MiB regardless of total_size.
const MaxUploadChunkSize int64 = 50 * 1024 * 1024

// DefaultUploadSessionTTL is the default time a chunked-upload session
// stays valid before it expires (spec §4.7). No background janitor
// runs: an expired session's temp blob is deleted only if the session
// is read while still cached past its deadline.
const DefaultUploadSessionTTL = 24 * time.Hour

// Default section-reader tuning (spec §4.3).
const (
	DefaultLookaheadBufferSize        = 150
	DefaultStdDevMultiplier            = 1.0
	DefaultMinimumSimilarityThreshold  = 0.65
	DefaultTokenStrictnessThreshold    = 0.75
	DefaultMinimumChunksPerSection     = 2
)

// markdownStopSignals are the structural substrings that force a chunk
// boundary before the segment containing them (spec §4.2).
var markdownStopSignals = []string{"\n# ", "```", "**"}

// Defaults returns a Config with every tunable set to the spec's
// documented defaults, for callers that only need to override a few
// environment-specific fields (e.g. in tests).
func Defaults() Config {
	return Config{
		MaxFileSizeBytes: 512 * 1024 * 1024,
		Upload: UploadConfig{
			SessionTTL:        DefaultUploadSessionTTL,
			MaxChunkSizeBytes: MaxUploadChunkSize,
		},
		Section: SectionConfig{
			MaxTokensPerSection:        2000,
			LookaheadBufferSize:        DefaultLookaheadBufferSize,
			StdDevMultiplier:           DefaultStdDevMultiplier,
			MinimumSimilarityThreshold: DefaultMinimumSimilarityThreshold,
			TokenStrictnessThreshold:   DefaultTokenStrictnessThreshold,
			MinimumChunksPerSection:    DefaultMinimumChunksPerSection,
			MinimumTokensPerSection:    100,
		},
		Chunk: ChunkConfig{
			MaxTokensPerChunk: 400,
			StopSignals:       append([]string(nil), markdownStopSignals...),
		},
	}
}
