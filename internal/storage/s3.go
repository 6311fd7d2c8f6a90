package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"contactdesk/internal/config"
)

// S3 presigns uploads straight into a bucket. The service never sees the
// object bytes.
type S3 struct {
	presign *s3.PresignClient
	bucket  string
	method  string
	ttl     time.Duration
	now     func() time.Time
}

// NewS3 loads AWS configuration the standard way (env, shared config,
// instance role) unless static keys are configured.
func NewS3(ctx context.Context, cfg config.StorageConfig) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newS3(awsCfg, cfg), nil
}

func newS3(awsCfg aws.Config, cfg config.StorageConfig) *S3 {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})
	return &S3{
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		method:  methodFor(cfg.UploadMode),
		ttl:     cfg.UploadURLTTL,
		now:     time.Now,
	}
}

func (d *S3) Name() string { return config.DriverS3 }

func (d *S3) Authorize(ctx context.Context, key, contentType string) (*Authorization, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	expiresAt := d.now().Add(d.ttl)

	if d.method == MethodPost {
		req, err := d.presign.PresignPostObject(ctx, input, func(o *s3.PresignPostOptions) {
			o.Expires = d.ttl
			o.Conditions = []interface{}{
				[]interface{}{"eq", "$Content-Type", contentType},
			}
		})
		if err != nil {
			return nil, fmt.Errorf("presign post object: %w", err)
		}
		fields := make(map[string]string, len(req.Values)+2)
		for k, v := range req.Values {
			fields[k] = v
		}
		fields["key"] = key
		fields["Content-Type"] = contentType
		return &Authorization{
			Key:         key,
			ContentType: contentType,
			Method:      MethodPost,
			URL:         req.URL,
			Fields:      fields,
			PublicURL:   strings.TrimRight(req.URL, "/") + "/" + key,
			ExpiresAt:   expiresAt,
		}, nil
	}

	req, err := d.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(d.ttl))
	if err != nil {
		return nil, fmt.Errorf("presign put object: %w", err)
	}
	public, err := stripQuery(req.URL)
	if err != nil {
		return nil, err
	}
	return &Authorization{
		Key:         key,
		ContentType: contentType,
		Method:      MethodPut,
		URL:         req.URL,
		PublicURL:   public,
		ExpiresAt:   expiresAt,
	}, nil
}

func stripQuery(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse presigned url: %w", err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
