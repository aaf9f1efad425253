package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/etpamelo/gallerybox/internal/utils"
)

// S3Store implements Store on an S3 compatible bucket.
// The object ETag is the version, conditional writes use If-Match / If-None-Match.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Store(client *s3.Client, bucket, prefix string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func NewS3StoreWithConfig(cfg *S3Config) (*S3Store, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   50,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: DefaultTimeout,
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3Store(client, cfg.BucketName, cfg.Prefix), nil
}

func (s *S3Store) key(path string) string {
	return s.prefix + path
}

func (s *S3Store) Get(ctx context.Context, path string) (*Object, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		return nil, s3Error("get", path, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Op: "get", Path: path, Message: "read body: " + err.Error()}
	}

	return &Object{
		Handle:  VersionedHandle{Path: path, Version: aws.ToString(resp.ETag)},
		Content: content,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, handle VersionedHandle, content []byte, _ string) (*Commit, error) {
	path, err := CleanPath(handle.Path)
	if err != nil {
		return nil, err
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(path)),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(utils.DetectContentType(path)),
	}
	if handle.IsCreate() {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(handle.Version)
	}

	resp, err := s.client.PutObject(ctx, input)
	if err != nil {
		return nil, s3Error("put", path, err)
	}

	return &Commit{
		Handle: VersionedHandle{Path: path, Version: aws.ToString(resp.ETag)},
		SHA:    aws.ToString(resp.VersionId),
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, handle VersionedHandle, _ string) (*Commit, error) {
	path, err := CleanPath(handle.Path)
	if err != nil {
		return nil, err
	}
	if handle.IsCreate() {
		return nil, mismatch("delete", path, "delete requires a version")
	}

	resp, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket:  aws.String(s.bucket),
		Key:     aws.String(s.key(path)),
		IfMatch: aws.String(handle.Version),
	})
	if err != nil {
		return nil, s3Error("delete", path, err)
	}

	return &Commit{
		Handle: VersionedHandle{Path: path},
		SHA:    aws.ToString(resp.VersionId),
	}, nil
}

func s3Error(op, path string, err error) error {
	upErr := &UpstreamError{Op: op, Path: path, Message: err.Error()}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		upErr.Status = http.StatusNotFound
		upErr.Err = ErrNotFound
		return upErr
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		upErr.Status = respErr.HTTPStatusCode()
		switch upErr.Status {
		case http.StatusNotFound:
			upErr.Err = ErrNotFound
		case http.StatusPreconditionFailed, http.StatusConflict:
			// 409 is ConditionalRequestConflict, a concurrent conditional write won
			upErr.Err = ErrVersionMismatch
		}
	}
	return upErr
}

var _ Store = (*S3Store)(nil)
