package blob

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "artifacts")
	store, err := Open(ctx, Config{FSRoot: root})
	if err != nil || store.Driver() != DriverFilesystem {
		t.Fatalf("fs default: %v %v", store, err)
	}
	store, err = Open(ctx, Config{Driver: DriverMemory})
	if err != nil || store.Driver() != DriverMemory {
		t.Fatalf("memory: %v %v", store, err)
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected bucket error")
	}
	store, err = Open(ctx, Config{Driver: DriverS3, S3Bucket: "exports", S3Endpoint: "http://minio:9000", S3PathStyle: true})
	if err != nil || store.Driver() != DriverS3 {
		t.Fatalf("s3: %v %v", store, err)
	}
	if _, err := Open(ctx, Config{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if NewMockS3ForTests().Driver() != DriverS3 {
		t.Fatalf("expected mock s3 driver")
	}
}
