package cloud

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror copies the daily history export to a bucket after every archive.
type S3Mirror struct {
	svc    s3API
	bucket string
}

// NewS3Mirror loads the default AWS config for region.
func NewS3Mirror(ctx context.Context, region, bucket string) (*S3Mirror, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &S3Mirror{svc: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// ArchiveKey is the object key of the export written after archiving day.
func ArchiveKey(day domain.Day) string {
	return "archives/daily/" + string(day) + ".csv"
}

// UploadDaily stores the CSV export of the daily history under day's key.
func (m *S3Mirror) UploadDaily(ctx context.Context, day domain.Day, data []byte) error {
	_, err := m.svc.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(ArchiveKey(day)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
		Metadata: map[string]string{
			"uploaded-at": time.Now().Format(time.RFC3339),
			"day":         string(day),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive %s: %w", day, err)
	}
	return nil
}
