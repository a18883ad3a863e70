package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	dirCacheSize = 4096
	dirCacheTTL  = 5 * time.Minute
)

// S3Config describes the bucket an S3Remote writes to
type S3Config struct {
	BucketName    string
	Region        string
	AccessKey     string
	SecretKey     string
	Endpoint      string
	UseAccelerate bool
}

// s3API is the subset of *s3.Client used by S3Remote
type s3API interface {
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Remote is a Remote backed by an S3 compatible bucket.
// Directories are zero byte marker objects whose key ends with "/".
type S3Remote struct {
	client s3API
	bucket string
	// prefixes known to exist, saves a list call per uploaded file
	dirs *expirable.LRU[string, struct{}]
}

func NewS3Remote(client s3API, bucket string) *S3Remote {
	return &S3Remote{
		client: client,
		bucket: bucket,
		dirs:   expirable.NewLRU[string, struct{}](dirCacheSize, nil, dirCacheTTL),
	}
}

// NewS3RemoteWithConfig builds the S3 client from cfg.
// Static credentials are used when an access key is set, otherwise the default AWS credential chain.
func NewS3RemoteWithConfig(ctx context.Context, cfg *S3Config) (*S3Remote, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          16,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UseAccelerate {
			o.UseAccelerate = true
		}
	})

	return NewS3Remote(client, cfg.BucketName), nil
}

// ===================================================================================================

func (r *S3Remote) Exists(ctx context.Context, p string) (bool, error) {
	if !strings.HasSuffix(p, "/") {
		_, err := r.headObject(ctx, objectKey(p))
		if err == nil {
			return true, nil
		} else if !errors.Is(err, ErrNotFound) {
			return false, err
		}
	}
	return r.dirExists(ctx, p)
}

func (r *S3Remote) CreateDirectory(ctx context.Context, p string) error {
	key := objectKey(p)
	if key == "" {
		return nil
	}

	segments := strings.Split(key, "/")
	for i := range segments {
		marker := strings.Join(segments[:i+1], "/") + "/"
		if _, err := r.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        &r.bucket,
			Key:           aws.String(marker),
			Body:          strings.NewReader(""),
			ContentLength: aws.Int64(0),
		}); err != nil {
			return fmt.Errorf("create directory marker %s: %w", marker, err)
		}
		r.dirs.Add(marker, struct{}{})
	}
	return nil
}

func (r *S3Remote) Upload(ctx context.Context, params *UploadParams) (bool, error) {
	return upload(ctx, r, params)
}

func (r *S3Remote) List(ctx context.Context, p string, recursive bool) ([]*Entry, error) {
	prefix := prefixKey(p)
	input := &s3.ListObjectsV2Input{
		Bucket: &r.bucket,
		Prefix: aws.String(prefix),
	}
	if !recursive {
		input.Delimiter = aws.String("/")
	}

	var entries []*Entry
	paginator := s3.NewListObjectsV2Paginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", p, err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			if strings.HasSuffix(key, "/") {
				entries = append(entries, &Entry{FullPath: "/" + key, Kind: EntryDirectory})
				continue
			}
			entries = append(entries, &Entry{FullPath: "/" + key, Kind: EntryFile, Size: aws.ToInt64(obj.Size)})
		}

		for _, cp := range page.CommonPrefixes {
			entries = append(entries, &Entry{FullPath: "/" + aws.ToString(cp.Prefix), Kind: EntryDirectory})
		}
	}

	return entries, nil
}

// Delete removes the object at exactly the listed key. Unlike uploads, the path is not
// cleaned: "/a//b.txt" and "/a/b.txt" are distinct objects in a bucket.
func (r *S3Remote) Delete(ctx context.Context, p string) error {
	return r.deleteKey(ctx, strings.TrimPrefix(p, "/"))
}

// ===================================================================================================

func (r *S3Remote) headObject(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	resp, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &r.bucket,
		Key:    &key,
	})
	if isNotFound(err) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *S3Remote) stat(ctx context.Context, p string) (*objectInfo, error) {
	resp, err := r.headObject(ctx, objectKey(p))
	if errors.Is(err, ErrNotFound) {
		if ok, dirErr := r.dirExists(ctx, p); dirErr == nil && ok {
			return &objectInfo{IsDir: true}, nil
		}
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &objectInfo{Size: aws.ToInt64(resp.ContentLength)}, nil
}

// checksum is the object ETag when it is a plain md5; multipart ETags carry a "-" suffix.
func (r *S3Remote) checksum(ctx context.Context, p string) (string, error) {
	resp, err := r.headObject(ctx, objectKey(p))
	if err != nil {
		return "", err
	}
	etag := strings.ReplaceAll(aws.ToString(resp.ETag), "\"", "")
	if strings.Contains(etag, "-") {
		return "", nil
	}
	return etag, nil
}

func (r *S3Remote) dirExists(ctx context.Context, p string) (bool, error) {
	prefix := prefixKey(p)
	if prefix == "" {
		return true, nil
	}
	if r.dirs.Contains(prefix) {
		return true, nil
	}

	resp, err := r.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  &r.bucket,
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	exists := len(resp.Contents) > 0 || len(resp.CommonPrefixes) > 0
	if exists {
		r.dirs.Add(prefix, struct{}{})
	}
	return exists, nil
}

func (r *S3Remote) mkdirAll(ctx context.Context, p string) error {
	return r.CreateDirectory(ctx, p)
}

func (r *S3Remote) write(ctx context.Context, p string, body io.Reader, size int64, appendMode bool) error {
	if appendMode {
		return ErrUnsupportedPolicy
	}

	// the body is a plain stream, so the payload is sent unsigned instead of hashed up front
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &r.bucket,
		Key:           aws.String(objectKey(p)),
		Body:          body,
		ContentLength: aws.Int64(size),
	}, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	return err
}

func (r *S3Remote) remove(ctx context.Context, p string) error {
	return r.deleteKey(ctx, objectKey(p))
}

func (r *S3Remote) deleteKey(ctx context.Context, key string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &r.bucket,
		Key:    aws.String(key),
	})
	if err == nil {
		// a prefix without a marker disappears with its last object
		r.dirs.Purge()
	}
	return err
}

func (r *S3Remote) supportsAppend() bool {
	return false
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

var (
	_ Remote      = (*S3Remote)(nil)
	_ objectStore = (*S3Remote)(nil)
)
