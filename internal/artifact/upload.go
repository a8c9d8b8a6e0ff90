// File: internal/artifact/upload.go
// Brief: Content upload to the provisioned bucket.

package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// UploaderAPI is the S3 subset the uploader uses.
type UploaderAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader syncs a built artifact directory into the content bucket.
type Uploader struct {
	api API
	log *zap.Logger
}

// API aliases UploaderAPI for the constructor signature.
type API = UploaderAPI

func NewUploader(api API, log *zap.Logger) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{api: api, log: log}
}

// Upload walks dir and puts every regular file under the same relative key in
// bucket, with content types derived from file extensions. Returns the number
// of objects uploaded.
func (u *Uploader) Upload(ctx context.Context, bucket, dir string) (int, error) {
	if bucket == "" {
		return 0, fmt.Errorf("bucket is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("artifact dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("artifact path %q is not a directory", dir)
	}

	count := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		_, err = u.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			Body:        f,
			ContentType: aws.String(contentType(path)),
		})
		if err != nil {
			return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
		}
		count++
		u.log.Debug("uploaded object", zap.String("bucket", bucket), zap.String("key", key))
		return nil
	})
	if err != nil {
		return count, err
	}
	u.log.Info("artifact uploaded", zap.String("bucket", bucket), zap.Int("objects", count))
	return count, nil
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
