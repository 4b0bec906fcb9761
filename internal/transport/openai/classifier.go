package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/findex-kr/findex/internal/domain"
)

const classifierSystemPrompt = `You classify Korean tax-audit search keywords into two roles.
"context" keywords describe the taxpayer or setting: industry, entity size, transaction environment.
"target" keywords name what the auditor looks for: accounts, adjustment items, specific transactions.
Reply with JSON only: {"context_keywords": [...], "target_keywords": [...], "confidence": 0.0-1.0}.
Every input keyword must appear in exactly one list.`

// Classifier assigns retrieval roles to keywords the dictionary does not
// know, via a chat completion.
type Classifier struct {
	client *openai.Client
	model  string
	user   string
}

// NewClassifier creates a chat-based keyword classifier.
func NewClassifier(cfg *Config) *Classifier {
	return &Classifier{
		client: newClient(cfg),
		model:  cfg.Model,
		user:   cfg.User,
	}
}

// Classify partitions keywords into context and target roles. A reply that
// cannot be parsed yields domain.ErrMalformedClassifierResponse.
func (c *Classifier) Classify(ctx context.Context, keywords []string) (domain.ClassifierResult, error) {
	if len(keywords) == 0 {
		return domain.ClassifierResult{Confidence: 1}, nil
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: strings.Join(keywords, ", ")},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
		User:        c.user,
	})
	if err != nil {
		return domain.ClassifierResult{}, fmt.Errorf("classify keywords: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.ClassifierResult{}, fmt.Errorf("empty choices: %w", domain.ErrMalformedClassifierResponse)
	}

	return parseClassifierReply(resp.Choices[0].Message.Content)
}

func parseClassifierReply(content string) (domain.ClassifierResult, error) {
	var parsed struct {
		ContextKeywords []string `json:"context_keywords"`
		TargetKeywords  []string `json:"target_keywords"`
		Confidence      float64  `json:"confidence"`
	}

	if err := json.Unmarshal([]byte(stripCodeFence(content)), &parsed); err != nil {
		return domain.ClassifierResult{}, fmt.Errorf("parse reply: %v: %w", err, domain.ErrMalformedClassifierResponse)
	}

	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return domain.ClassifierResult{}, fmt.Errorf("confidence %f out of range: %w",
			parsed.Confidence, domain.ErrMalformedClassifierResponse)
	}

	return domain.ClassifierResult{
		ContextKeywords: parsed.ContextKeywords,
		TargetKeywords:  parsed.TargetKeywords,
		Confidence:      parsed.Confidence,
	}, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add despite
// the JSON response format.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
