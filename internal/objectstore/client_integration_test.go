package objectstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/datapipe-io/pipeline/internal/objectstore"
	"github.com/datapipe-io/pipeline/internal/testsupport"
)

func TestS3ClientPutGetDeleteRoundTrips(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	stack := testsupport.StartLocalStack(ctx, t)

	const bucket = "pipeline-test"
	stack.CreateBucket(ctx, t, bucket)

	t.Setenv("PIPELINE_BUCKET", bucket)
	t.Setenv("PIPELINE_S3_ENDPOINT", stack.Endpoint)
	t.Setenv("PIPELINE_AWS_REGION", "us-east-1")

	cfg := objectstore.LoadConfig()

	client, err := objectstore.NewS3Client(ctx, cfg)
	if err != nil {
		t.Fatalf("NewS3Client: %v", err)
	}

	etag, err := client.Put(ctx, "greeting.txt", []byte("hello"), objectstore.PutOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	if etag == "" {
		t.Fatal("expected non-empty etag")
	}

	obj, err := client.Get(ctx, "greeting.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if string(obj.Body) != "hello" {
		t.Fatalf("got body %q", obj.Body)
	}

	if err := client.Delete(ctx, "greeting.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := client.Get(ctx, "greeting.txt"); !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestS3ClientPutIfMatchRejectsStaleETag(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	stack := testsupport.StartLocalStack(ctx, t)

	const bucket = "pipeline-test-cas"
	stack.CreateBucket(ctx, t, bucket)

	t.Setenv("PIPELINE_BUCKET", bucket)
	t.Setenv("PIPELINE_S3_ENDPOINT", stack.Endpoint)
	t.Setenv("PIPELINE_AWS_REGION", "us-east-1")

	client, err := objectstore.NewS3Client(ctx, objectstore.LoadConfig())
	if err != nil {
		t.Fatalf("NewS3Client: %v", err)
	}

	staleEtag, err := client.Put(ctx, "pointer.json", []byte("v1"), objectstore.PutOptions{})
	if err != nil {
		t.Fatalf("seed put: %v", err)
	}

	if _, err := client.Put(ctx, "pointer.json", []byte("v2"), objectstore.PutOptions{IfMatch: staleEtag}); err != nil {
		t.Fatalf("racing put: %v", err)
	}

	_, err = client.Put(ctx, "pointer.json", []byte("v3"), objectstore.PutOptions{IfMatch: staleEtag})

	var precond *objectstore.PreconditionFailedError
	if !errors.As(err, &precond) {
		t.Fatalf("expected PreconditionFailedError for stale etag, got %v", err)
	}
}
