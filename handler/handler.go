package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"portfolio-chat-proxy/internal/domain"
	"portfolio-chat-proxy/internal/repository"
	"portfolio-chat-proxy/internal/usecase"
)

const (
	headerOrigin        = "Origin"
	headerCorrelationID = "X-Correlation-Id"
	outcomeOK           = "OK"
)

type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

// UsageRecorder stores invocation metadata. Implementations must not
// need message content.
type UsageRecorder interface {
	RecordInvocation(ctx context.Context, inv domain.Invocation) error
}

type chatRequest struct {
	Message             json.RawMessage   `json:"message"`
	ConversationHistory []json.RawMessage `json:"conversationHistory"`
}

type chatResponse struct {
	Response            string            `json:"response"`
	ConversationHistory []json.RawMessage `json:"conversationHistory"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type clientError struct {
	status  int
	message string
}

// clientErrors is the only source of client-facing error text.
var clientErrors = map[usecase.ErrorCode]clientError{
	usecase.ErrorMessageRequired:  {status: http.StatusBadRequest, message: "Message is required"},
	usecase.ErrorMessageTooLong:   {status: http.StatusBadRequest, message: "Message too long"},
	usecase.ErrorMethodNotAllowed: {status: http.StatusMethodNotAllowed, message: "Method not allowed"},
	usecase.ErrorUpstream:         {status: http.StatusInternalServerError, message: "AI service temporarily unavailable"},
	usecase.ErrorInternal:         {status: http.StatusInternalServerError, message: "Something went wrong"},
}

type Handler struct {
	chat           ChatUseCase
	allowedOrigins map[string]struct{}
	usage          UsageRecorder
	logger         *slog.Logger
	now            func() time.Time
}

type Option func(*Handler)

func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		for _, o := range origins {
			h.allowedOrigins[o] = struct{}{}
		}
	}
}

func WithUsageRecorder(r UsageRecorder) Option {
	return func(h *Handler) {
		h.usage = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(chat ChatUseCase, opts ...Option) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	h := &Handler{
		chat:           chat,
		allowedOrigins: map[string]struct{}{},
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle serves one API Gateway proxy request. The returned error is
// always nil; every failure is answered with a JSON error body.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := h.now()
	origin := headerValue(req.Headers, headerOrigin)
	correlationID := headerValue(req.Headers, headerCorrelationID)
	if correlationID == "" {
		correlationID = newCorrelationID()
	}
	logger := h.logger.With("correlation_id", correlationID)

	headers := h.corsHeaders(origin)
	headers[headerCorrelationID] = correlationID

	if req.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: headers}, nil
	}

	inv := repository.NewInvocation(correlationID, start)
	inv.Origin = origin

	var resp events.APIGatewayProxyResponse
	if req.HTTPMethod != http.MethodPost {
		err := usecase.NewError(usecase.ErrorMethodNotAllowed, "method_"+strings.ToLower(req.HTTPMethod), nil)
		resp = h.errorResponse(logger, headers, err, &inv)
	} else {
		resp = h.handleChat(ctx, logger, headers, req, &inv)
	}

	inv.StatusCode = resp.StatusCode
	inv.LatencyMs = h.now().Sub(start).Milliseconds()
	h.recordUsage(ctx, logger, inv)
	return resp, nil
}

func (h *Handler) handleChat(ctx context.Context, logger *slog.Logger, headers map[string]string, req events.APIGatewayProxyRequest, inv *domain.Invocation) events.APIGatewayProxyResponse {
	in, err := decodeChatRequest(req)
	if err != nil {
		return h.errorResponse(logger, headers, err, inv)
	}

	out, err := h.chat.Chat(ctx, in)
	if err != nil {
		return h.errorResponse(logger, headers, err, inv)
	}
	inv.Model = out.Model
	inv.InputTokens = out.InputTokens
	inv.OutputTokens = out.OutputTokens
	inv.HistoryTurns = out.WindowSize

	body, err := json.Marshal(chatResponse{Response: out.Reply, ConversationHistory: out.History})
	if err != nil {
		return h.errorResponse(logger, headers, usecase.NewError(usecase.ErrorInternal, "encode_response", err), inv)
	}
	inv.Outcome = outcomeOK
	logger.Info("chat completed",
		"history_turns", out.WindowSize,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
	)
	return jsonResponse(http.StatusOK, headers, body)
}

func decodeChatRequest(req events.APIGatewayProxyRequest) (usecase.ChatInput, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return usecase.ChatInput{}, usecase.NewError(usecase.ErrorInternal, "invalid_request_body", fmt.Errorf("handler: decode base64 body: %w", err))
		}
		body = decoded
	}

	var r chatRequest
	if err := json.Unmarshal(body, &r); err != nil {
		return usecase.ChatInput{}, usecase.NewError(usecase.ErrorInternal, "invalid_request_body", fmt.Errorf("handler: decode body: %w", err))
	}
	return usecase.ChatInput{
		Message: messageText(r.Message),
		History: r.ConversationHistory,
	}, nil
}

// messageText returns the message when it is a JSON string and "" otherwise,
// so absent, null and non-string messages all fail as "required".
func messageText(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func (h *Handler) errorResponse(logger *slog.Logger, headers map[string]string, err error, inv *domain.Invocation) events.APIGatewayProxyResponse {
	code := usecase.ErrorInternal
	reason := "unexpected_error"
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		if _, ok := clientErrors[ucErr.Code]; ok {
			code = ucErr.Code
		}
		reason = ucErr.Reason
	}
	mapped := clientErrors[code]
	inv.Outcome = string(code)

	if mapped.status >= http.StatusInternalServerError {
		logger.Error("chat request failed", "code", code, "reason", reason, "err", err)
	} else {
		logger.Warn("chat request rejected", "code", code, "reason", reason)
	}

	body, marshalErr := json.Marshal(errorResponse{Error: mapped.message})
	if marshalErr != nil {
		body = []byte(`{"error":"Something went wrong"}`)
	}
	return jsonResponse(mapped.status, headers, body)
}

func (h *Handler) recordUsage(ctx context.Context, logger *slog.Logger, inv domain.Invocation) {
	if h.usage == nil {
		return
	}
	if err := h.usage.RecordInvocation(ctx, inv); err != nil {
		logger.Warn("usage record failed", "err", err)
	}
}

func (h *Handler) corsHeaders(origin string) map[string]string {
	headers := map[string]string{
		"Access-Control-Allow-Methods": "POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
	}
	if _, ok := h.allowedOrigins[origin]; ok && origin != "" {
		headers["Access-Control-Allow-Origin"] = origin
	}
	return headers
}

func jsonResponse(status int, headers map[string]string, body []byte) events.APIGatewayProxyResponse {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out["Content-Type"] = "application/json"
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: out, Body: string(body)}
}

// headerValue looks a header up case-insensitively; API Gateway passes
// header names through as the client sent them.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

var newCorrelationID = func() string {
	return uuid.NewString()
}
