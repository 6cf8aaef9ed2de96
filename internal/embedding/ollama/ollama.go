// Package ollama implements the embedding.Embedder port against an
// Ollama (or OpenAI-compatible) embeddings endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kbasehq/knowledge-engine/internal/kberrors"
)

const (
	maxRetries  = 3
	retryBase   = 200 * time.Millisecond
	defaultPath = "/v1/embeddings"
)

// Client is an HTTP-backed Embedder talking to an Ollama embeddings
// endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
}

// New builds a Client. dimensions is the model's known output width,
// used only for Dimensions() and not validated against responses.
func New(baseURL, apiKey, model string, dimensions int) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) ModelName() string { return c.model }
func (c *Client) Dimensions() int   { return c.dimensions }

type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format"`
}

type embeddingDatum struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Data []embeddingDatum `json:"data"`
}

// Embed requests embeddings for every text in one batched call,
// retrying transient failures with bounded quadratic backoff
// (3 attempts, 200ms base) before surfacing an EmbeddingError.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{
		Input:          texts,
		Model:          c.model,
		EncodingFormat: "float",
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, kberrors.Wrap(kberrors.EmbeddingError, "marshal embedding request", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, kberrors.Wrap(kberrors.Cancelled, "embedding retry cancelled", ctx.Err())
			case <-time.After(retryBase * time.Duration(attempt*attempt+1)):
			}
		}

		vectors, err := c.doRequest(ctx, payload)
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, kberrors.New(kberrors.EmbeddingError, fmt.Sprintf(
					"embedding count mismatch: got %d for %d inputs", len(vectors), len(texts)))
			}
			return vectors, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, kberrors.Wrap(kberrors.Cancelled, "embedding retry cancelled", ctx.Err())
		default:
		}
	}
	return nil, kberrors.Wrap(kberrors.EmbeddingError, "embedding request failed after retries", lastErr)
}

func (c *Client) doRequest(ctx context.Context, payload []byte) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+defaultPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding endpoint returned status %d", resp.StatusCode)
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}

	out := make([][]float32, len(decoded.Data))
	for _, d := range decoded.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
