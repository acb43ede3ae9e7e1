// Package assistant proxies chat requests from school admins to the
// hosted LLM, serializing messages per conversation and exposing a fixed
// catalog of read-only database tools.
package assistant

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Request actions
const (
	ActionChat          = "chat"
	ActionQueryDatabase = "query_database"
)

// Conversation history kept per conversation; older turns are dropped
const maxHistoryMessages = 20

// Tool-call round trips allowed per request
const maxToolIterations = 3

const systemPrompt = "You are the EduDash Pro school finance assistant. " +
	"You help school administrators understand fees, payments and proof-of-payment uploads. " +
	"Answer concisely. Use the provided tools for any question about amounts or records; " +
	"never invent figures."

// Request is one outgoing assistant message
type Request struct {
	ConversationID string
	OrganizationID string
	Action         string
	Message        string
}

// Service sends conversation messages to the LLM backend. Messages of one
// conversation go out strictly in order with at most one in flight.
type Service struct {
	client *openai.Client
	model  string
	tools  *Tools
	queue  *Queue
	logger *zap.Logger

	mu        sync.Mutex
	histories map[string][]openai.ChatCompletionMessage
}

// NewService creates the assistant service
func NewService(apiKey, model string, tools *Tools, logger *zap.Logger) *Service {
	s := &Service{
		client:    openai.NewClient(apiKey),
		model:     model,
		tools:     tools,
		logger:    logger,
		histories: make(map[string][]openai.ChatCompletionMessage),
	}
	s.queue = NewQueue(s.process, logger)
	return s
}

// Send enqueues the message on its conversation's queue and blocks until
// the reply arrives or ctx is done.
func (s *Service) Send(ctx context.Context, req *Request) (string, error) {
	if req.Message == "" {
		return "", fmt.Errorf("message is required")
	}
	switch req.Action {
	case ActionChat, ActionQueryDatabase:
	case "":
		req.Action = ActionChat
	default:
		return "", fmt.Errorf("unsupported action: %s", req.Action)
	}
	return s.queue.Submit(ctx, req)
}

// process performs one backend round trip, including tool-call follow-ups
func (s *Service) process(ctx context.Context, req *Request) (string, error) {
	messages := append(s.history(req.ConversationID), openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.2,
		Messages: append([]openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		}}, messages...),
	}
	if req.Action == ActionQueryDatabase {
		chatReq.Tools = Catalog()
	}

	for iteration := 0; ; iteration++ {
		resp, err := s.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return "", fmt.Errorf("assistant request failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no response from assistant backend")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			s.remember(req.ConversationID, messages, msg.Content)
			return msg.Content, nil
		}
		if iteration >= maxToolIterations {
			return "", fmt.Errorf("tool call limit exceeded")
		}

		chatReq.Messages = append(chatReq.Messages, msg)
		for _, call := range msg.ToolCalls {
			result, err := s.tools.Execute(req.OrganizationID, call.Function.Name, call.Function.Arguments)
			if err != nil {
				s.logger.Warn("Assistant tool call failed",
					zap.String("tool", call.Function.Name),
					zap.Error(err))
				result = fmt.Sprintf(`{"error": %q}`, err.Error())
			}
			chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}
}

// history returns a copy of the conversation's message history
func (s *Service) history(conversationID string) []openai.ChatCompletionMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.histories[conversationID]
	messages := make([]openai.ChatCompletionMessage, len(stored))
	copy(messages, stored)
	return messages
}

// remember appends the exchanged turn to the conversation history
func (s *Service) remember(conversationID string, messages []openai.ChatCompletionMessage, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	s.histories[conversationID] = history
}
