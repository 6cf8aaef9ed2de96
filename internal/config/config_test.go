package config

import "testing"

func TestLoadAppliesDefaultsWithoutEnv(t *testing.T) {
	t.Setenv("MAX_FILE_SIZE_BYTES", "")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Section.MinimumSimilarityThreshold != DefaultMinimumSimilarityThreshold {
		t.Fatalf("expected default similarity threshold, got %v", cfg.Section.MinimumSimilarityThreshold)
	}
	if cfg.Upload.MaxChunkSizeBytes != MaxUploadChunkSize {
		t.Fatalf("expected default max chunk size, got %v", cfg.Upload.MaxChunkSizeBytes)
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("MAX_FILE_SIZE_BYTES", "1024")
	t.Setenv("SECTION_MIN_CHUNKS", "5")
	t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxFileSizeBytes != 1024 {
		t.Fatalf("expected overridden max file size, got %d", cfg.MaxFileSizeBytes)
	}
	if cfg.Section.MinimumChunksPerSection != 5 {
		t.Fatalf("expected overridden min chunks, got %d", cfg.Section.MinimumChunksPerSection)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Fatalf("expected overridden ollama base url, got %q", cfg.Ollama.BaseURL)
	}
}
