package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

// minPartSize is the S3 minimum multipart part size (5 MiB).
const minPartSize int64 = 5 * 1024 * 1024

// Writer implements domain.BlobWriter. Paths are relative to the client
// prefix.
type Writer struct {
	c *Client
}

// NewWriter creates a Writer on c's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{c: c}
}

// Put uploads data with a single PutObject call.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	key := w.c.ObjectKey(path)
	_, err := w.c.S3().PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.c.Bucket()),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", key, err)
	}
	return nil
}

// PutMultipart uploads data through the multipart upload manager. partSize
// is raised to the S3 minimum when smaller.
func (w *Writer) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	if partSize < minPartSize {
		partSize = minPartSize
	}
	uploader := manager.NewUploader(w.c.S3(), func(u *manager.Uploader) {
		u.PartSize = partSize
	})

	key := w.c.ObjectKey(path)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.c.Bucket()),
		Key:    aws.String(key),
		Body:   data,
	})
	if err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", key, err)
	}
	return nil
}

var _ domain.BlobWriter = (*Writer)(nil)
