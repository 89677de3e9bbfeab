// Package objstore provides read access to the public dataset bucket through
// its S3-compatible XML API, and the catalog scanner built on top of it.
package objstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Object is one discovered object-store entry.
type Object struct {
	Key  string
	URI  string
	Size int64
}

// Lister pages through the bucket's flat key namespace.
type Lister interface {
	// ListPartitions returns the top-level key prefixes under root
	// (delimiter-terminated), used to fan the scan out.
	ListPartitions(ctx context.Context, root string) ([]string, error)

	// ListPage returns one page of objects under prefix. A non-empty next
	// token means more pages follow.
	ListPage(ctx context.Context, prefix, token string) (objs []Object, next string, err error)
}

// Fetcher retrieves an object's content.
type Fetcher interface {
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
}

// Config holds client connection settings. The dataset bucket allows
// unauthenticated reads, so credentials are optional and only used when both
// keys are set (e.g. interoperability HMAC keys).
type Config struct {
	Endpoint  string // S3-compatible endpoint, e.g. https://storage.googleapis.com
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	URIScheme string // Scheme for canonical URIs, e.g. "gs" or "s3".
}

// Client implements Lister and Fetcher over an S3-compatible endpoint.
type Client struct {
	cfg    Config
	client *s3.Client
	logger *zap.Logger
}

// NewClient creates a read-only object-store client.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objstore: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.URIScheme == "" {
		cfg.URIScheme = "gs"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	} else {
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objstore: load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// Path-style keeps the bucket out of the hostname, which the
		// storage.googleapis.com interoperability endpoint expects.
		o.UsePathStyle = true
	})

	return &Client{cfg: cfg, client: client, logger: logger}, nil
}

// CanonicalURI renders the stable identifier recorded in the index.
func (c *Client) CanonicalURI(key string) string {
	return fmt.Sprintf("%s://%s/%s", c.cfg.URIScheme, c.cfg.Bucket, key)
}

// ListPartitions lists the delimiter-terminated prefixes directly under root.
func (c *Client) ListPartitions(ctx context.Context, root string) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.cfg.Bucket),
		Delimiter: aws.String("/"),
	}
	if root != "" {
		input.Prefix = aws.String(root)
	}

	var prefixes []string
	for {
		out, err := c.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("objstore: list partitions under %q: %w", root, err)
		}
		for _, p := range out.CommonPrefixes {
			if p.Prefix != nil {
				prefixes = append(prefixes, *p.Prefix)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return prefixes, nil
}

// ListPage returns one page of objects under prefix.
func (c *Client) ListPage(ctx context.Context, prefix, token string) ([]Object, string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.cfg.Bucket),
		Prefix: aws.String(prefix),
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	out, err := c.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("objstore: list page under %q: %w", prefix, err)
	}

	objs := make([]Object, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		o := Object{Key: *obj.Key, URI: c.CanonicalURI(*obj.Key)}
		if obj.Size != nil {
			o.Size = *obj.Size
		}
		objs = append(objs, o)
	}

	next := ""
	if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
		next = *out.NextContinuationToken
	}
	return objs, next, nil
}

// Fetch retrieves an object's content as a stream.
func (c *Client) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("objstore: get object %s: %w", key, err)
	}
	return out.Body, nil
}
