// Package testsupport provides shared testcontainers-go bootstrap helpers
// for integration tests that need a real S3/DynamoDB-compatible backend.
package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"
)

// LocalStack bundles a running LocalStack container with ready-to-use S3
// and DynamoDB clients pointed at its endpoint.
type LocalStack struct {
	container *localstack.LocalStackContainer
	Endpoint  string
	S3        *s3.Client
	DynamoDB  *dynamodb.Client
}

// StartLocalStack launches a LocalStack container and returns clients wired
// to it. It registers a t.Cleanup that terminates the container when the
// test ends.
func StartLocalStack(ctx context.Context, t *testing.T) *LocalStack {
	t.Helper()

	container, err := localstack.Run(ctx, "localstack/localstack:3.0",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready.").WithStartupTimeout(120*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start localstack container: %v", err)
	}

	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	mappedPort, err := container.MappedPort(ctx, "4566/tcp")
	if err != nil {
		t.Fatalf("failed to get localstack port: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get localstack host: %v", err)
	}

	endpoint := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		t.Fatalf("failed to load aws config: %v", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	dynamoClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &LocalStack{container: container, Endpoint: endpoint, S3: s3Client, DynamoDB: dynamoClient}
}

// CreateBucket creates bucket on the LocalStack S3 endpoint, failing the
// test on error.
func (l *LocalStack) CreateBucket(ctx context.Context, t *testing.T, bucket string) {
	t.Helper()

	if _, err := l.S3.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		t.Fatalf("failed to create bucket %s: %v", bucket, err)
	}
}

// CreateLockTable creates a DynamoDB table with a string "lock_key"
// partition key, matching the schema internal/lock.DynamoLocker expects.
func (l *LocalStack) CreateLockTable(ctx context.Context, t *testing.T, table string) {
	t.Helper()

	_, err := l.DynamoDB.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(table),
		BillingMode: dynamodbtypes.BillingModePayPerRequest,
		AttributeDefinitions: []dynamodbtypes.AttributeDefinition{
			{AttributeName: aws.String("lock_key"), AttributeType: dynamodbtypes.ScalarAttributeTypeS},
		},
		KeySchema: []dynamodbtypes.KeySchemaElement{
			{AttributeName: aws.String("lock_key"), KeyType: dynamodbtypes.KeyTypeHash},
		},
	})
	if err != nil {
		t.Fatalf("failed to create lock table %s: %v", table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(l.DynamoDB)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, 30*time.Second); err != nil {
		t.Fatalf("lock table %s never became active: %v", table, err)
	}
}
