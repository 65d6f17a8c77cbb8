package rank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"jobfinder-engine/internal/domain"
)

type LLMConfig struct {
	APIKey      string
	BaseURL     string // any OpenAI-compatible endpoint
	Model       string
	Temperature float64
	MaxRetries  int
}

// LLMScorer asks a chat model to pick the relevant jobs.
type LLMScorer struct {
	client      openai.Client
	model       string
	temperature float64
	configured  bool
}

func NewLLMScorer(cfg LLMConfig) *LLMScorer {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	return &LLMScorer{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
		configured:  strings.TrimSpace(cfg.APIKey) != "",
	}
}

func (s *LLMScorer) Name() string { return "llm:" + s.model }

type relevantJobs struct {
	RelevantJobs []domain.Job `json:"relevant_jobs" jsonschema_description:"Postings that strongly match every given criterion, copied unchanged from the input"`
}

var responseSchema = generateSchema[relevantJobs]()

func generateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

const systemPrompt = `You are an expert job matching assistant. You analyze a list of job postings and keep only those that match the user's search criteria.

Rules:
1. Review each job against every provided criterion. For position and keyword criteria consider both job_title and description.
2. Keep only jobs that are a strong and direct match to ALL provided criteria.
3. The description is the most important signal when matching position and skills.
4. Respond with a single JSON object with one top-level key "relevant_jobs" holding a list of job objects.
5. Each job object must be identical to the input object, with every original field (job_title, company, location, salary, description, apply_link, source).
6. If nothing matches strongly, "relevant_jobs" is an empty list.
7. Output only the JSON object, with no explanation around it.`

func buildUserPrompt(req Request) (string, error) {
	crit, err := json.MarshalIndent(req.Criteria, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("User's search criteria:\n")
	b.Write(crit)
	b.WriteString("\n\nJob listings:\n")
	for i, j := range req.Jobs {
		enc, err := json.Marshal(j)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "Job %d: %s\n", i+1, enc)
	}
	return b.String(), nil
}

func (s *LLMScorer) Score(ctx context.Context, req Request) ([]byte, error) {
	if !s.configured {
		return nil, fmt.Errorf("%w: no API key for %s", domain.ErrCapabilityUnavailable, s.model)
	}

	user, err := buildUserPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	params := openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(s.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "relevant_jobs",
					Description: openai.String("Jobs matching the search criteria"),
					Schema:      responseSchema,
					Strict:      openai.Bool(true),
				},
			},
		},
	}

	start := time.Now()
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %s rejected credentials (status %d)", domain.ErrCapabilityUnavailable, s.model, apiErr.StatusCode)
		}
		return nil, fmt.Errorf("llm chat: %w", err)
	}

	slog.DebugContext(ctx, "llm relevance call completed",
		"model", s.model,
		"jobs", len(req.Jobs),
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", domain.ErrMalformedResponse)
	}
	return []byte(resp.Choices[0].Message.Content), nil
}
