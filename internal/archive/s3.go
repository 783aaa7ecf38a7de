package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ignite/promo-dispatch/internal/domain"
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 writes archives to a bucket under prefix.
type S3 struct {
	client s3API
	bucket string
	prefix string
}

// NewS3 wraps an existing S3 client.
func NewS3(client *s3.Client, bucket, prefix string) *S3 {
	return newS3(client, bucket, prefix)
}

func newS3(client s3API, bucket, prefix string) *S3 {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

// NewS3FromConfig loads the default AWS config for region.
func NewS3FromConfig(ctx context.Context, region, bucket, prefix string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewS3(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func (a *S3) key(id, name string) string {
	return a.prefix + id + "/" + name
}

func (a *S3) Save(ctx context.Context, s *domain.CampaignSummary) error {
	if err := checkID(s.DispatchID); err != nil {
		return err
	}
	jsonData, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(s.DispatchID, summaryFile)),
		Body:        bytes.NewReader(jsonData),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("putting summary to S3: %w", err)
	}

	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(s.DispatchID, contentFile)),
		Body:        strings.NewReader(s.RenderedContent),
		ContentType: aws.String("text/html; charset=utf-8"),
	}); err != nil {
		return fmt.Errorf("putting content to S3: %w", err)
	}
	return nil
}

func (a *S3) Get(ctx context.Context, dispatchID string) (*domain.CampaignSummary, error) {
	if err := checkID(dispatchID); err != nil {
		return nil, err
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(dispatchID, summaryFile)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting object from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}
	var s domain.CampaignSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling S3 data: %w", err)
	}
	return &s, nil
}
