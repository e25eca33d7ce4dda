package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"github.com/wadjakorntonsri/go-collections/pkg/monitoring"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
	"go.uber.org/zap"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.5-flash"
)

type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// GeminiClient calls the generateContent REST endpoint through a circuit breaker.
type GeminiClient struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewGeminiClient(cfg GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is required", domain.ErrLLMConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GeminiClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    newBreaker("gemini", logger),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}, nil
}

func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"systemInstruction"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// statusError is a non-200 reply from the API.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gemini api error %d: %s", e.code, e.body)
}

func (c *GeminiClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (text string, err error) {
	start := time.Now()
	defer func() {
		monitoring.LLMRequests.WithLabelValues("gemini", c.model, monitoring.Outcome(err)).Inc()
		monitoring.LLMRequestDuration.WithLabelValues("gemini", c.model).Observe(time.Since(start).Seconds())
	}()

	req := geminiRequest{
		SystemInstruction: geminiContent{Role: "system", Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: userPrompt}}}},
	}
	req.GenerationConfig.Temperature = 0.1
	req.GenerationConfig.MaxOutputTokens = 1000

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	raw, err := c.callWithRetry(ctx, body)
	if err != nil {
		return "", c.classify(err)
	}

	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrLLMResponse, err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in gemini response", domain.ErrLLMResponse)
	}
	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no parts in gemini response", domain.ErrLLMResponse)
	}
	text = strings.TrimSpace(parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty text in gemini response", domain.ErrLLMResponse)
	}
	return text, nil
}

func (c *GeminiClient) callWithRetry(ctx context.Context, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryDelay << (attempt - 1)
			if backoff > 5*time.Second {
				backoff = 5 * time.Second
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.do(ctx, body)
		})
		if err == nil {
			return result.([]byte), nil
		}
		lastErr = err
		if !shouldRetry(err) {
			break
		}
		c.logger.Warn("retrying gemini request", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, lastErr
}

func (c *GeminiClient) do(ctx context.Context, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: string(respBody)}
	}
	return respBody, nil
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

func (c *GeminiClient) classify(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", domain.ErrLLMTimeout, err)
	}
	c.logger.Error("gemini request failed", zap.Error(err))
	return fmt.Errorf("%w: %v", domain.ErrLLMResponse, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

var _ ports.LLMProvider = (*GeminiClient)(nil)
