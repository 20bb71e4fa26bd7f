package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/angadhsingh1/ETL-Pipeline/internal/dataset"
)

// ObjectGetter is the subset of the S3 client used to fetch sources.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Source reads a batch snapshot from a local path or an s3://bucket/key
// location.
type Source struct {
	S3    ObjectGetter
	Sheet string
}

// Load fetches location and parses it according to its extension.
func (s *Source) Load(ctx context.Context, location string) (*dataset.Frame, error) {
	data, name, err := s.fetch(ctx, location)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(path.Ext(name)) {
	case ".csv", ".txt", "":
		return ReadCSV(bytes.NewReader(data))
	case ".xlsx", ".xlsm":
		return ReadXLSX(bytes.NewReader(data), s.Sheet)
	default:
		return nil, fmt.Errorf("unsupported source format %q", path.Ext(name))
	}
}

func (s *Source) fetch(ctx context.Context, location string) ([]byte, string, error) {
	if !strings.HasPrefix(location, "s3://") {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read source file: %w", err)
		}
		return data, location, nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, "", fmt.Errorf("invalid source location %q: %w", location, err)
	}
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, "", fmt.Errorf("invalid source location %q: want s3://bucket/key", location)
	}
	if s.S3 == nil {
		return nil, "", fmt.Errorf("source %q requires an S3 client", location)
	}

	data, err := getBlobFromS3(ctx, s.S3, bucket, key)
	if err != nil {
		return nil, "", err
	}
	return data, key, nil
}

func getBlobFromS3(ctx context.Context, client ObjectGetter, bucket, key string) ([]byte, error) {
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	return data, nil
}
