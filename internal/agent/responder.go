package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"

	"github.com/username/deskchat/internal/domain/entities"
	"github.com/username/deskchat/internal/pkg/logutil"
	"github.com/username/deskchat/pkg/config"
)

// fallbackEncoding is used when the configured model has no registered
// tokenizer (local models served through an OpenAI-compatible API)
const fallbackEncoding = "cl100k_base"

// Responder produces assistant replies. With no LLM configured it answers
// deterministically so the system stays usable offline.
type Responder struct {
	client        *openai.Client
	model         string
	maxTokens     int
	temperature   float64
	contextBudget int
	logger        *logutil.Logger
}

// NewResponder creates a responder from LLM configuration. A nil client
// (empty base URL and API key) selects the canned-reply path.
func NewResponder(cfg config.LLMConfig, logger *logutil.Logger) *Responder {
	if logger == nil {
		logger = logutil.NewDefault()
	}

	var client *openai.Client
	if cfg.BaseURL != "" || cfg.APIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
		}
		client = openai.NewClientWithConfig(clientConfig)
	}

	return &Responder{
		client:        client,
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		contextBudget: cfg.ContextBudget,
		logger:        logger.WithFields(logutil.Fields{"component": "agent.responder"}),
	}
}

// Enabled reports whether a real model is configured
func (r *Responder) Enabled() bool {
	return r.client != nil
}

// GenerateReply produces the assistant reply for a conversation turn. The
// history must already contain the new user message as its last element.
func (r *Responder) GenerateReply(ctx context.Context, agent Agent, history []entities.Message) (string, error) {
	if r.client == nil {
		return r.cannedReply(agent, history), nil
	}

	messages := r.buildChatMessages(agent, history)

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    messages,
		MaxTokens:   r.maxTokens,
		Temperature: float32(r.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from model")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("model returned an empty reply")
	}
	return reply, nil
}

// buildChatMessages converts history into the chat format, keeping only
// user and assistant turns and trimming the oldest turns to the token
// budget. The newest message is always kept.
func (r *Responder) buildChatMessages(agent Agent, history []entities.Message) []openai.ChatCompletionMessage {
	trimmed := r.trimToBudget(history)

	messages := make([]openai.ChatCompletionMessage, 0, len(trimmed)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: r.systemPrompt(agent),
	})
	for _, m := range trimmed {
		switch m.Role {
		case entities.RoleUser:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Content,
			})
		case entities.RoleAssistant:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			})
		}
	}
	return messages
}

// trimToBudget drops the oldest turns until the history fits the
// configured token budget
func (r *Responder) trimToBudget(history []entities.Message) []entities.Message {
	if r.contextBudget <= 0 || len(history) == 0 {
		return history
	}

	encoding, err := tiktoken.EncodingForModel(r.model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			r.logger.Warn("tokenizer unavailable, sending full history", logutil.Fields{"error": err.Error()})
			return history
		}
	}

	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		count := len(encoding.Encode(history[i].Content, nil, nil))
		if total+count > r.contextBudget && start < len(history) {
			break
		}
		total += count
		start = i
	}
	if start > 0 {
		r.logger.Debug("trimmed conversation history", logutil.Fields{
			"dropped": start,
			"kept":    len(history) - start,
			"tokens":  total,
		})
	}
	return history[start:]
}

func (r *Responder) systemPrompt(agent Agent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an assistant on a project workspace team.", agent.Name)
	if agent.Responsibility != "" {
		fmt.Fprintf(&b, " Your focus is %s.", agent.Responsibility)
	}
	b.WriteString(" Answer the user's questions clearly and ask concise follow-up questions when information is missing.")
	return b.String()
}

// cannedReply is the offline answer: deterministic, references the agent
// and acknowledges the user's message
func (r *Responder) cannedReply(agent Agent, history []entities.Message) string {
	last := ""
	if len(history) > 0 {
		last = strings.TrimSpace(history[len(history)-1].Content)
	}
	if len(last) > 120 {
		last = last[:120] + "..."
	}
	return fmt.Sprintf("%s here. I received your message: %q. No language model is configured on this server, so this is a placeholder reply.", agent.Name, last)
}
