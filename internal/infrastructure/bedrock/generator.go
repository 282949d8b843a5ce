package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
	"github.com/mzwaMoj/bedrock-rag/internal/infrastructure/resilience"
)

const anthropicVersion = "bedrock-2023-05-31"

// Generator invokes an Anthropic model on Bedrock. It is mode-agnostic:
// whether the prompt carries retrieved context is the caller's decision.
type Generator struct {
	api       InvokeAPI
	modelID   string
	executor  *resilience.Executor
	maxTokens int
	topP      float64
}

func NewGenerator(api InvokeAPI, modelID string, executor *resilience.Executor, maxTokens int, topP float64) *Generator {
	return &Generator{
		api:       api,
		modelID:   modelID,
		executor:  executor,
		maxTokens: maxTokens,
		topP:      topP,
	}
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type claudeRequest struct {
	Messages         []claudeMessage `json:"messages"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	TopP             float64         `json:"top_p"`
	AnthropicVersion string          `json:"anthropic_version"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  *int `json:"input_tokens"`
		OutputTokens *int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate sends the role instruction and user prompt to the model and
// returns the generated text with token accounting. A response missing
// the expected content or usage fields is a malformed-response error,
// distinct from connectivity failures; neither is retried past the
// configured attempt budget and there is no degraded fallback for
// generation.
func (g *Generator) Generate(ctx context.Context, prompt, role string, temperature float64) (domain.GenerationResult, error) {
	reqBody := claudeRequest{
		Messages: []claudeMessage{
			{Role: "assistant", Content: role},
			{Role: "user", Content: []claudeContentBlock{{Type: "text", Text: prompt}}},
		},
		MaxTokens:        g.maxTokens,
		Temperature:      temperature,
		TopP:             g.topP,
		AnthropicVersion: anthropicVersion,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("marshal generate request: %w", err)
	}

	var result domain.GenerationResult
	call := func(callCtx context.Context) error {
		resp, err := g.api.InvokeModel(callCtx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(g.modelID),
			Body:        body,
			Accept:      aws.String(contentTypeJSON),
			ContentType: aws.String(contentTypeJSON),
		})
		if err != nil {
			return err
		}

		parsed, err := parseClaudeResponse(resp.Body)
		if err != nil {
			return err
		}
		result = parsed
		return nil
	}

	if err := g.executor.Execute(ctx, "bedrock.generate", call, classifyBedrockError); err != nil {
		return domain.GenerationResult{}, wrapConnectivity("generate response", err)
	}
	return result, nil
}

func parseClaudeResponse(raw []byte) (domain.GenerationResult, error) {
	var resp claudeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.GenerationResult{}, domain.WrapError(domain.ErrMalformedResponse, "decode generate response", err)
	}
	if len(resp.Content) == 0 {
		return domain.GenerationResult{}, domain.WrapError(domain.ErrMalformedResponse, "decode generate response", errors.New("response has no content blocks"))
	}
	if resp.Usage == nil || resp.Usage.InputTokens == nil || resp.Usage.OutputTokens == nil {
		return domain.GenerationResult{}, domain.WrapError(domain.ErrMalformedResponse, "decode generate response", errors.New("response has no usage accounting"))
	}

	promptTokens := *resp.Usage.InputTokens
	responseTokens := *resp.Usage.OutputTokens
	return domain.GenerationResult{
		Text:           resp.Content[0].Text,
		PromptTokens:   promptTokens,
		ResponseTokens: responseTokens,
		TotalTokens:    promptTokens + responseTokens,
	}, nil
}
