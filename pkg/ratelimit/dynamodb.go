package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the subset of the DynamoDB client the limiter calls.
type DynamoDBAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type counterItem struct {
	PK        string `dynamodbav:"PK"`
	Count     int    `dynamodbav:"Count"`
	WindowEnd string `dynamodbav:"WindowEnd"`
	TTL       int64  `dynamodbav:"TTL"`
}

// DynamoDBLimiter counts requests per fixed window in a DynamoDB table so
// every instance behind the public API shares one budget. Counter items
// carry a TTL an hour past their window.
type DynamoDBLimiter struct {
	client DynamoDBAPI
	table  string
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewDynamoDBLimiter creates a limiter over table. scope namespaces the
// keys so several limiters can share a table.
func NewDynamoDBLimiter(client DynamoDBAPI, table, scope string, limit int, window time.Duration) *DynamoDBLimiter {
	return &DynamoDBLimiter{
		client: client,
		table:  table,
		scope:  scope,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *DynamoDBLimiter) partitionKey(key string, windowStart time.Time) string {
	return fmt.Sprintf("RATELIMIT#%s#%s#%d", l.scope, key, windowStart.Unix())
}

// Allow implements Limiter. Store failures admit the request and are
// returned alongside the decision.
func (l *DynamoDBLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	windowStart := l.now().Truncate(l.window)
	windowEnd := windowStart.Add(l.window)
	d := Decision{Limit: l.limit, ResetAt: windowEnd}

	out, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(l.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: l.partitionKey(key, windowStart)},
		},
		UpdateExpression:    aws.String("SET #count = if_not_exists(#count, :zero) + :incr, WindowEnd = :window_end, #ttl = :ttl"),
		ConditionExpression: aws.String("attribute_not_exists(#count) OR #count < :limit"),
		ExpressionAttributeNames: map[string]string{
			"#count": "Count",
			"#ttl":   "TTL",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero":       &types.AttributeValueMemberN{Value: "0"},
			":incr":       &types.AttributeValueMemberN{Value: "1"},
			":limit":      &types.AttributeValueMemberN{Value: strconv.Itoa(l.limit)},
			":window_end": &types.AttributeValueMemberS{Value: windowEnd.UTC().Format(time.RFC3339)},
			":ttl":        &types.AttributeValueMemberN{Value: strconv.FormatInt(windowEnd.Add(time.Hour).Unix(), 10)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return d, nil
		}
		d.Allowed = true
		d.Remaining = l.limit
		return d, fmt.Errorf("rate limiter store: %w", err)
	}

	var item counterItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		d.Allowed = true
		return d, fmt.Errorf("decode rate limit counter: %w", err)
	}

	d.Allowed = item.Count <= l.limit
	d.Remaining = max(l.limit-item.Count, 0)
	return d, nil
}

// Reset implements Limiter for the current window.
func (l *DynamoDBLimiter) Reset(ctx context.Context, key string) error {
	pk := l.partitionKey(key, l.now().Truncate(l.window))
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
		},
	})
	return err
}
