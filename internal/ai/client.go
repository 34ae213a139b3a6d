package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"document-vector-platform/internal/config"
	"document-vector-platform/internal/logger"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// Client wraps the Gemini API for embeddings and chunk summarization.
// All outbound calls go through a circuit breaker and a client-side rate
// limiter sized for the configured API tier.
type Client struct {
	client         *genai.Client
	breaker        *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	embeddingModel string
	summaryModel   string
}

type RateLimits struct {
	RPM int // Requests per minute
	RPD int // Requests per day
}

func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(cfg.GeminiTier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10+1)

	return &Client{
		client:         client,
		breaker:        breaker,
		rateLimiter:    rateLimiter,
		embeddingModel: cfg.EmbeddingModel,
		summaryModel:   cfg.SummaryModel,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, RPD: 250}
	}
}

// Embed returns the embedding vector for the given text. Empty or
// whitespace-only input is replaced with a single space so the API call
// always carries content.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.embed_content",
		oteltrace.WithSpanKind(oteltrace.SpanKindClient))
	defer span.End()

	if strings.TrimSpace(text) == "" {
		text = " "
	}

	span.SetAttributes(
		attribute.String("gemini.model", c.embeddingModel),
		attribute.Int("gemini.input_chars", len(text)),
	)

	if err := c.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		model := c.client.EmbeddingModel(c.embeddingModel)
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, err
	}

	return result.([]float32), nil
}

// Summarize asks the model for a summary of text within the given
// character range. Callers decide how to degrade on error; this method
// never substitutes a fallback of its own.
func (c *Client) Summarize(ctx context.Context, text string, minChars, maxChars int) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.summarize",
		oteltrace.WithSpanKind(oteltrace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", c.summaryModel),
		attribute.Int("gemini.input_chars", len(text)),
	)

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`Write a concise summary (%d-%d characters) of the following content.
Extract the key information and main points, keep important data and conclusions, and ignore formatting noise.
Output the summary only, with no preamble.

Content:
%s`, minChars, maxChars, text)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		model := c.client.GenerativeModel(c.summaryModel)
		model.SetTemperature(0.3)
		model.SetMaxOutputTokens(512)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}

		summary := extractResponseText(resp)
		if summary == "" {
			return nil, fmt.Errorf("empty summary returned")
		}
		return summary, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}

	return strings.TrimSpace(result.(string)), nil
}

func extractResponseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}

// Close the underlying API client
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
