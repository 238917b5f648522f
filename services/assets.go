package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// UploadsPrefix is the public URL path and object key prefix of stored images.
const UploadsPrefix = "uploads"

// AssetStore keeps uploaded images. Save returns the public path recorded on a
// post; Delete takes that same path back.
type AssetStore interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, publicPath string) error
}

// DiskAssetStore writes images below a local directory served at /uploads/.
type DiskAssetStore struct {
	dir string
}

// NewDiskAssetStore creates dir if needed.
func NewDiskAssetStore(dir string) (*DiskAssetStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskAssetStore{dir: dir}, nil
}

func (s *DiskAssetStore) Dir() string {
	return s.dir
}

func (s *DiskAssetStore) Save(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	name = filepath.Base(name)
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return "/" + UploadsPrefix + "/" + name, nil
}

// Delete removes the file behind publicPath. A missing file yields an error
// matching fs.ErrNotExist.
func (s *DiskAssetStore) Delete(_ context.Context, publicPath string) error {
	name := path.Base(publicPath)
	if name == "." || name == "/" {
		return fmt.Errorf("invalid asset path %q", publicPath)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3AssetStore keeps images in an S3 (or S3-compatible) bucket under uploads/.
type S3AssetStore struct {
	client        s3API
	bucket        string
	publicBaseURL string
}

// NewS3AssetStore loads the default AWS credential chain. A non-empty endpoint
// switches to path-style addressing for S3-compatible servers.
func NewS3AssetStore(ctx context.Context, bucket, endpoint, publicBaseURL string) (*S3AssetStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required for the s3 asset store")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("https://%s.s3.amazonaws.com", bucket)
	}
	return newS3AssetStore(client, bucket, publicBaseURL), nil
}

func newS3AssetStore(client s3API, bucket, publicBaseURL string) *S3AssetStore {
	return &S3AssetStore{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *S3AssetStore) key(name string) string {
	return UploadsPrefix + "/" + path.Base(name)
}

func (s *S3AssetStore) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	key := s.key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.publicBaseURL + "/" + key, nil
}

func (s *S3AssetStore) Delete(ctx context.Context, publicPath string) error {
	key := s.key(publicPath)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
