package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

const (
	lockKeyAttr    = "lock_key"
	ownerIDAttr    = "owner_id"
	expiresAtAttr  = "expires_at"
	conditionCheck = "attribute_not_exists(" + lockKeyAttr + ") OR " + expiresAtAttr + " < :now"
	releaseCond    = ownerIDAttr + " = :token"
)

// DynamoLocker implements Locker against a DynamoDB table keyed on
// lock_key (string, hash key): an env-loaded Config, a constructor with
// an immediate health check, methods that translate conditional-write
// failures into sentinel errors instead of leaking provider types.
type DynamoLocker struct {
	raw   *dynamodb.Client
	table string
}

// NewDynamoLocker builds a DynamoLocker from cfg, confirming the table
// exists via DescribeTable.
func NewDynamoLocker(ctx context.Context, cfg Config) (*DynamoLocker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	raw := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := raw.DescribeTable(healthCtx, &dynamodb.DescribeTableInput{TableName: aws.String(cfg.TableName)}); err != nil {
		return nil, fmt.Errorf("lock table health check failed: %w", err)
	}

	return &DynamoLocker{raw: raw, table: cfg.TableName}, nil
}

// Acquire implements Locker using a conditional PutItem: the item is
// written only if it does not exist yet, or its previous lease already
// expired.
func (l *DynamoLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	_, err := l.raw.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item: map[string]types.AttributeValue{
			lockKeyAttr:   &types.AttributeValueMemberS{Value: name},
			ownerIDAttr:   &types.AttributeValueMemberS{Value: token},
			expiresAtAttr: &types.AttributeValueMemberN{Value: formatUnix(expiresAt)},
		},
		ConditionExpression: aws.String(conditionCheck),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: formatUnix(now)},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return "", ErrHeld
		}

		return "", fmt.Errorf("lock: acquire %s: %w", name, err)
	}

	return token, nil
}

// Release implements Locker using a conditional DeleteItem so a run can
// never release a lock it does not hold (e.g. after its own lease expired
// and a second run already took over).
func (l *DynamoLocker) Release(ctx context.Context, name, token string) error {
	_, err := l.raw.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.table),
		Key: map[string]types.AttributeValue{
			lockKeyAttr: &types.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String(releaseCond),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":token": &types.AttributeValueMemberS{Value: token},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotHeld
		}

		return fmt.Errorf("lock: release %s: %w", name, err)
	}

	return nil
}

func isConditionFailed(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return true
	}

	var apiErr smithy.APIError

	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func formatUnix(t time.Time) string {
	return fmt.Sprintf("%d", t.Unix())
}
