// Package blob selects and constructs the object store used for table
// export artifacts.
package blob

import (
	"context"
	"fmt"

	"mobiletables/internal/blob/core"
	"mobiletables/internal/infra/blob/fs"
	"mobiletables/internal/infra/blob/memory"
	"mobiletables/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
)

// Config selects the blob backend.
//
//	MOBILETABLES_BLOB_DRIVER: fs|s3|memory (default fs)
//	MOBILETABLES_BLOB_FS_ROOT: directory when driver=fs (default ./blobdata)
//	MOBILETABLES_BLOB_S3_*: bucket, region, endpoint, path style and static keys
type Config struct {
	Driver            Driver `env:"MOBILETABLES_BLOB_DRIVER" envDefault:"fs"`
	FSRoot            string `env:"MOBILETABLES_BLOB_FS_ROOT"`
	S3Bucket          string `env:"MOBILETABLES_BLOB_S3_BUCKET"`
	S3Region          string `env:"MOBILETABLES_BLOB_S3_REGION"`
	S3Endpoint        string `env:"MOBILETABLES_BLOB_S3_ENDPOINT"`
	S3PathStyle       bool   `env:"MOBILETABLES_BLOB_S3_PATH_STYLE"`
	S3AccessKeyID     string `env:"MOBILETABLES_BLOB_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"MOBILETABLES_BLOB_S3_SECRET_ACCESS_KEY"`
}

// Open constructs the store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		store, err := fs.New(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return memory.New(), nil
	case DriverS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("MOBILETABLES_BLOB_S3_BUCKET required for s3 driver")
		}
		store, err := s3.New(ctx, s3.Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PathStyle:       cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewMockS3ForTests exposes the fake-bucket S3 store to other packages' tests.
func NewMockS3ForTests() Store { return s3.NewMockForTests() }
