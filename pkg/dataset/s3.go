package dataset

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the connection settings for S3 and S3-compatible stores.
// Empty credentials fall back to the default AWS credential chain.
type S3Config struct {
	Region          string `mapstructure:"region"`
	EndpointURL     string `mapstructure:"endpoint_url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// S3Source reads a dataset object from a bucket.
type S3Source struct {
	Bucket string
	Key    string
	Config S3Config
}

func (s *S3Source) Name() string {
	return fmt.Sprintf("s3://%s/%s", s.Bucket, s.Key)
}

// Open issues a GetObject request and returns the object body.
func (s *S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", s.Name(), err)
	}
	return out.Body, nil
}

func (s *S3Source) client(ctx context.Context) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if s.Config.Region != "" {
		opts = append(opts, config.WithRegion(s.Config.Region))
	}
	if s.Config.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.Config.AccessKeyID,
			s.Config.SecretAccessKey,
			"",
		)))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if s.Config.EndpointURL != "" {
			o.BaseEndpoint = aws.String(s.Config.EndpointURL)
			o.UsePathStyle = true
		}
	}), nil
}
