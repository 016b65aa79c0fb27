package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	cascade "github.com/FrenchMajesty/pattern-cascade"
	"github.com/FrenchMajesty/pattern-cascade/clients/groq"
)

var defaultFallbackModel = string(groq.ModelLlama3370bVersatile)

// The provider self-reports how confident it is that the answer is correct,
// complete and reusable for the same question later. The learning loop only
// caches answers above its confidence threshold, so an over-eager model
// inflates the cache and an under-confident one merely learns slower.
const defaultFallbackSystemPrompt = `You are a helpful voice assistant answering a caller's question.

Respond with ONLY a JSON object of this exact shape:
{"response": "<what to say to the caller>", "confidence": <0.0-1.0>}

Rules:
- "response" is one or two short spoken sentences
- "confidence" is how certain you are the answer is correct and would be
  reusable verbatim for the same question asked again
- If context is missing or the question is ambiguous, answer as best you can
  with low confidence`

// GroqFallbackAdapter implements the generative fallback on the Groq Chat
// API
type GroqFallbackAdapter struct {
	client interface {
		ChatCompletion(ctx context.Context, req groq.ChatCompletionRequest) (*groq.ChatCompletionResponse, error)
	}
	model        string
	systemPrompt string
}

// NewGroqFallbackAdapter creates a fallback adapter with the API key from
// the environment when none is given
func NewGroqFallbackAdapter(apiKey *string, model string) (*GroqFallbackAdapter, error) {
	key, err := loadEnvVar(apiKey, "GROQ_API_KEY")
	if err != nil {
		return nil, err
	}

	instance := &GroqFallbackAdapter{
		client:       groq.NewGroqClient(*key),
		model:        defaultFallbackModel,
		systemPrompt: defaultFallbackSystemPrompt,
	}
	if model != "" {
		instance.model = model
	}
	return instance, nil
}

// Respond implements cascade.FallbackClient
func (a *GroqFallbackAdapter) Respond(ctx context.Context, utterance string, conv cascade.Conversation) (cascade.FallbackResult, error) {
	messages := make([]groq.ChatMessage, 0, len(conv.Turns)+2)
	prompt := a.systemPrompt
	messages = append(messages, groq.ChatMessage{Role: groq.MessageRoleSystem, Content: &prompt})

	for i := range conv.Turns {
		turn := conv.Turns[i]
		role := groq.MessageRoleUser
		if turn.Role == "assistant" {
			role = groq.MessageRoleAssistant
		}
		messages = append(messages, groq.ChatMessage{Role: role, Content: &turn.Text})
	}
	messages = append(messages, groq.ChatMessage{Role: groq.MessageRoleUser, Content: &utterance})

	resp, err := a.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model:               a.model,
		User:                conv.SessionID,
		Messages:            messages,
		MaxCompletionTokens: 300,
		ResponseFormat:      &groq.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return cascade.FallbackResult{}, fmt.Errorf("fallback completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return cascade.FallbackResult{}, fmt.Errorf("fallback returned no choices")
	}

	raw := strings.TrimSpace(*resp.Choices[0].Message.Content)
	text := gjson.Get(raw, "response").String()
	confidence := float32(gjson.Get(raw, "confidence").Float())

	// A model that ignored the JSON instruction still produced an answer;
	// use it verbatim with zero confidence so it is never cached
	if text == "" {
		text = raw
		confidence = 0
	}
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	return cascade.FallbackResult{Text: text, Confidence: confidence}, nil
}
