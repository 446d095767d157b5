package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"portfolio-chat-proxy/handler"
	appconfig "portfolio-chat-proxy/internal/config"
	"portfolio-chat-proxy/internal/integrations/anthropic"
	"portfolio-chat-proxy/internal/integrations/paramstore"
	"portfolio-chat-proxy/internal/repository"
	"portfolio-chat-proxy/internal/usecase"
)

// NewHandler builds the chat handler and its dependencies from cfg.
// AWS clients are created only when a component needs them.
func NewHandler(ctx context.Context, cfg appconfig.Config, logger *slog.Logger) (*handler.Handler, error) {
	var (
		keys  anthropic.KeySource = anthropic.StaticKey(cfg.APIKey)
		usage handler.UsageRecorder
	)

	if cfg.NeedsAWS() {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load AWS config: %w", err)
		}

		if cfg.APIKey == "" {
			ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				return nil, fmt.Errorf("app: create SSM client: %w", err)
			}
			tokens, err := paramstore.NewTokenSource(ssmClient, cfg.TokenParameterName())
			if err != nil {
				return nil, fmt.Errorf("app: create token source: %w", err)
			}
			keys = tokens
		}

		if cfg.UsageTable != "" {
			ledger, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.UsageTable)
			if err != nil {
				return nil, fmt.Errorf("app: create usage ledger: %w", err)
			}
			usage = ledger
		}
	}

	client, err := anthropic.NewClient(keys,
		anthropic.WithBaseURL(cfg.AnthropicBaseURL),
		anthropic.WithHTTPClient(&http.Client{Timeout: cfg.UpstreamTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create anthropic client: %w", err)
	}

	chatService, err := usecase.NewChatService(client,
		usecase.DefaultModel,
		usecase.DefaultMaxTokens,
		usecase.DefaultMaxMessageLen,
		usecase.DefaultHistoryWindow,
	)
	if err != nil {
		return nil, fmt.Errorf("app: create chat service: %w", err)
	}

	opts := []handler.Option{
		handler.WithAllowedOrigins(cfg.AllowedOrigins),
		handler.WithLogger(logger),
	}
	if usage != nil {
		opts = append(opts, handler.WithUsageRecorder(usage))
	}
	return handler.NewHandler(chatService, opts...)
}
