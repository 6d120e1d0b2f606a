package blob

import (
	"context"
	"fmt"
	"os"

	"wardcore/internal/infra/blob/fs"
	"wardcore/internal/infra/blob/memory"
	"wardcore/internal/infra/blob/s3"
)

// Open selects a blob.Store implementation using environment variables.
//
//	WARDCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	WARDCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./archivedata)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("WARDCORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		root := os.Getenv("WARDCORE_BLOB_FS_ROOT")
		return fs.New(root)
	case DriverS3:
		return s3.OpenFromEnv(ctx)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
