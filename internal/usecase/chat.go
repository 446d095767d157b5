package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"unicode/utf8"

	"portfolio-chat-proxy/internal/domain"
)

const (
	DefaultModel         = "claude-sonnet-4-20250514"
	DefaultMaxTokens     = 300
	DefaultMaxMessageLen = 500
	DefaultHistoryWindow = 10
)

type LLMClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type ChatService struct {
	llm           LLMClient
	model         string
	maxTokens     int
	maxMessageLen int
	historyWindow int
}

type ChatInput struct {
	Message string
	// History is the caller's conversation as raw JSON entries. Entries
	// are not validated; they are forwarded upstream as sent.
	History []json.RawMessage
}

type ChatOutput struct {
	Reply string
	// History is window ++ [user turn, assistant turn]. It can hold two
	// more entries than the window; callers re-slice on the next request.
	History      []json.RawMessage
	WindowSize   int
	Model        string
	InputTokens  int
	OutputTokens int
}

func NewChatService(llm LLMClient, model string, maxTokens, maxMessageLen, historyWindow int) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if maxMessageLen <= 0 {
		maxMessageLen = DefaultMaxMessageLen
	}
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &ChatService{
		llm:           llm,
		model:         model,
		maxTokens:     maxTokens,
		maxMessageLen: maxMessageLen,
		historyWindow: historyWindow,
	}, nil
}

func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	if in.Message == "" {
		return ChatOutput{}, NewError(ErrorMessageRequired, "empty_message", nil)
	}
	// Raw length, not tokens.
	if utf8.RuneCountInString(in.Message) > s.maxMessageLen {
		return ChatOutput{}, NewError(ErrorMessageTooLong, "message_too_long", nil)
	}

	window := historyWindow(in.History, s.historyWindow)
	messages, err := buildPromptMessages(window, in.Message)
	if err != nil {
		return ChatOutput{}, NewError(ErrorInternal, "prompt_assembly_error", err)
	}

	completion, err := s.llm.Complete(ctx, domain.CompletionRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    systemPrompt,
		Messages:  messages,
	})
	if err != nil {
		if _, ok := upstreamStatusCode(err); ok {
			return ChatOutput{}, NewError(ErrorUpstream, "anthropic_error", err)
		}
		return ChatOutput{}, NewError(ErrorInternal, "anthropic_request_failed", err)
	}

	reply, ok := firstText(completion)
	if !ok {
		return ChatOutput{}, NewError(ErrorInternal, "anthropic_malformed_response", nil)
	}
	assistantTurn, err := encodeTurn(domain.RoleAssistant, reply)
	if err != nil {
		return ChatOutput{}, NewError(ErrorInternal, "response_assembly_error", err)
	}

	model := completion.Model
	if model == "" {
		model = s.model
	}
	return ChatOutput{
		Reply:        reply,
		History:      append(messages, assistantTurn),
		WindowSize:   len(window),
		Model:        model,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
	}, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
