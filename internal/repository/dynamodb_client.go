package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"portfolio-chat-proxy/internal/domain"
)

const (
	pkPrefixDay = "DAY#"
	skPrefixInv = "INV#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client writes invocation usage records to a DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// dayPK partitions records by UTC day so one day can be queried at once.
func dayPK(ts time.Time) string {
	return pkPrefixDay + ts.UTC().Format("2006-01-02")
}

func invocationSK(ts time.Time, requestID string) string {
	return skPrefixInv + ts.UTC().Format(time.RFC3339Nano) + "#" + requestID
}

// RecordInvocation writes one usage record. Records are insert-only.
func (c *Client) RecordInvocation(ctx context.Context, inv domain.Invocation) error {
	if inv.PK == "" || inv.SK == "" {
		return errors.New("repository: RecordInvocation: PK and SK are required")
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                invocationItem(inv),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: RecordInvocation: %w", err)
	}
	return nil
}

// NewInvocation constructs an Invocation keyed by the given time.
func NewInvocation(requestID string, ts time.Time) domain.Invocation {
	return domain.Invocation{
		PK:        dayPK(ts),
		SK:        invocationSK(ts, requestID),
		RequestID: requestID,
		CreatedAt: ts.UTC().Format(time.RFC3339),
		TTL:       ts.Add(ttlDuration).Unix(),
	}
}

func invocationItem(inv domain.Invocation) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: inv.PK},
		"SK":           &types.AttributeValueMemberS{Value: inv.SK},
		"requestId":    &types.AttributeValueMemberS{Value: inv.RequestID},
		"statusCode":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", inv.StatusCode)},
		"outcome":      &types.AttributeValueMemberS{Value: inv.Outcome},
		"inputTokens":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", inv.InputTokens)},
		"outputTokens": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", inv.OutputTokens)},
		"historyTurns": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", inv.HistoryTurns)},
		"latencyMs":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", inv.LatencyMs)},
		"createdAt":    &types.AttributeValueMemberS{Value: inv.CreatedAt},
		"ttl":          &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", inv.TTL)},
	}
	if inv.Origin != "" {
		item["origin"] = &types.AttributeValueMemberS{Value: inv.Origin}
	}
	if inv.Model != "" {
		item["model"] = &types.AttributeValueMemberS{Value: inv.Model}
	}
	return item
}
