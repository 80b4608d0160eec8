// Package objstore holds site bundles and uploaded assets in S3-compatible
// object storage.
package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	BundleBucket  string
	AssetBucket   string
	PublicBaseURL string
}

type Client struct {
	mc            *minio.Client
	bundleBucket  string
	assetBucket   string
	publicBaseURL string
}

func New(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return &Client{
		mc:            mc,
		bundleBucket:  cfg.BundleBucket,
		assetBucket:   cfg.AssetBucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// EnsureBuckets creates the bundle and asset buckets if they do not exist.
// The bundle bucket gets an anonymous read policy so preview URLs resolve
// without signing.
func (c *Client) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{c.bundleBucket, c.assetBucket} {
		exists, err := c.mc.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if exists {
			continue
		}
		if err := c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, c.bundleBucket)
	if err := c.mc.SetBucketPolicy(ctx, c.bundleBucket, policy); err != nil {
		return fmt.Errorf("set bundle bucket policy: %w", err)
	}
	return nil
}

// PutBundle uploads a finished site archive and returns its public URL.
func (c *Client) PutBundle(ctx context.Context, key string, data []byte) (string, error) {
	_, err := c.mc.PutObject(ctx, c.bundleBucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return "", fmt.Errorf("put bundle %s: %w", key, err)
	}
	return c.publicURL(c.bundleBucket, key), nil
}

// GetBundle streams a previously uploaded archive. The caller closes the
// returned reader.
func (c *Client) GetBundle(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, c.bundleBucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get bundle %s: %w", key, err)
	}
	// GetObject defers the request; Stat forces it so missing keys surface
	// here instead of on first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat bundle %s: %w", key, err)
	}
	return obj, nil
}

// PutAsset stores an uploaded file (images and attachments referenced from
// documents) and returns its public URL.
func (c *Client) PutAsset(ctx context.Context, key string, contentType string, size int64, body io.Reader) (string, error) {
	_, err := c.mc.PutObject(ctx, c.assetBucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put asset %s: %w", key, err)
	}
	return c.publicURL(c.assetBucket, key), nil
}

func (c *Client) DeleteBundle(ctx context.Context, key string) error {
	if err := c.mc.RemoveObject(ctx, c.bundleBucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete bundle %s: %w", key, err)
	}
	return nil
}

func (c *Client) publicURL(bucket, key string) string {
	if c.publicBaseURL != "" {
		return c.publicBaseURL + "/" + bucket + "/" + key
	}
	scheme := "http"
	if c.mc.EndpointURL().Scheme == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, c.mc.EndpointURL().Host, bucket, key)
}
