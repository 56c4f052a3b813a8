package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"conta-luz-chatbot/internal/logger"
	"conta-luz-chatbot/internal/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// ErrGeracao marks a failed call to the external generation service.
// Retry-safe: no partial answer is ever returned.
var ErrGeracao = errors.New("falha no provedor de geracao")

// Generator produces an answer from a question plus retrieved context.
type Generator interface {
	Generate(ctx context.Context, pergunta string, contexto []string) (string, error)
}

// GeminiClient wraps Google Generative AI with a circuit breaker, a
// client-side rate limiter and request tracing.
type GeminiClient struct {
	breaker      *gobreaker.CircuitBreaker
	rateLimiter  *rate.Limiter
	tokenCounter *TokenCounter
	client       *genai.Client
	modelo       string
	limits       RateLimits
	metrics      *telemetry.Metrics
}

type TokenCounter struct {
	mu              sync.Mutex
	minuteTokens    int
	dailyTokens     int
	minuteRequests  int
	dailyRequests   int
	lastMinuteReset time.Time
	lastDayReset    time.Time
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

// NewGeminiClient connects to the Generative AI API. metrics may be nil;
// token usage is then only tracked by the local quota counter.
func NewGeminiClient(apiKey, modelo, tier string, metrics *telemetry.Metrics) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(tier)

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
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10+1)

	return &GeminiClient{
		breaker:      breaker,
		rateLimiter:  rateLimiter,
		tokenCounter: &TokenCounter{},
		client:       client,
		modelo:       modelo,
		limits:       limits,
		metrics:      metrics,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// Generate answers a billing question grounded on the retrieved context
// documents. The caller owns the deadline on ctx.
func (gc *GeminiClient) Generate(ctx context.Context, pergunta string, contexto []string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate")
	defer span.End()

	estimatedTokens := estimateTokens(pergunta, contexto)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.Int("gemini.context_docs", len(contexto)),
		attribute.String("gemini.model", gc.modelo),
	)

	if !gc.tokenCounter.CanConsume(estimatedTokens, 1, gc.limits) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", fmt.Errorf("%w: rate limit exceeded", ErrGeracao)
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.modelo)
		model.SetTemperature(0.4)
		model.SetMaxOutputTokens(1024)

		prompt := buildPrompt(pergunta, contexto)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.error", true))
			return nil, err
		}

		gc.registrarConsumo(extractTokenUsage(resp))
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		if err == gobreaker.ErrOpenState {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		return "", fmt.Errorf("%w: %w", ErrGeracao, err)
	}

	texto := extractText(result.(*genai.GenerateContentResponse))
	if texto == "" {
		return "", fmt.Errorf("%w: empty response", ErrGeracao)
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return texto, nil
}

// registrarConsumo feeds the actual token usage of a completed call into
// the local quota counter and the exported meter.
func (gc *GeminiClient) registrarConsumo(tokens int) {
	gc.tokenCounter.RecordUsage(tokens, 1)
	if gc.metrics != nil {
		gc.metrics.RecordTokensUsed(int64(tokens), gc.modelo)
	}
}

func (gc *GeminiClient) Close() error { return gc.client.Close() }

// buildPrompt assembles the Portuguese assistant prompt with the
// retrieved billing records as grounding context.
func buildPrompt(pergunta string, contexto []string) string {
	var b strings.Builder
	b.WriteString("Você é um assistente virtual especializado em consultas de contas de luz.\n")
	b.WriteString("Responda de forma concisa, cite o período da fatura usada como fonte ")
	b.WriteString("(por exemplo, \"Segundo sua fatura de Março/2024...\") e evite termos técnicos sem explicação.\n")
	b.WriteString("Se o contexto abaixo não contém a informação pedida, diga isso claramente em vez de inventar valores.\n\n")

	if len(contexto) > 0 {
		b.WriteString("Faturas relevantes:\n")
		for _, doc := range contexto {
			b.WriteString("- ")
			b.WriteString(doc)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Nenhuma fatura relevante foi encontrada para esta pergunta.\n\n")
	}

	b.WriteString("Pergunta: ")
	b.WriteString(pergunta)
	return b.String()
}

func (tc *TokenCounter) CanConsume(tokens, requests int, limits RateLimits) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()

	// Reset counters if time windows expired
	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}

	if now.Sub(tc.lastDayReset) >= 24*time.Hour {
		tc.dailyTokens = 0
		tc.dailyRequests = 0
		tc.lastDayReset = now
	}

	if tc.minuteRequests+requests > limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > limits.TPM {
		return false
	}
	if tc.dailyRequests+requests > limits.RPD {
		return false
	}

	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
	tc.dailyTokens += tokens
	tc.dailyRequests += requests
}

// Rough estimation: 1 token ≈ 4 characters.
func estimateTokens(pergunta string, contexto []string) int {
	total := len(pergunta)
	for _, doc := range contexto {
		total += len(doc) + 1
	}
	return total / 4
}

func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	return len(extractText(resp)) / 4
}

func extractText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}
