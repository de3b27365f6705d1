// Package blobsvc stores the content of uploaded files.
package blobsvc

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/petition"
)

type s3Store struct {
	client *s3.Client
	bucket string
}

var _ petition.AttachmentStore = (*s3Store)(nil) // interface compliance check

// NewS3Store uses the default AWS credentials chain; conf.S3.Endpoint targets S3-compatible servers (e.g. MinIO).
func NewS3Store(ctx context.Context, conf *core.Config) (*s3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(conf.S3.Region))
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}

	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
	}
	if conf.S3.Endpoint != "" {
		opts.BaseEndpoint = aws.String(conf.S3.Endpoint)
		opts.UsePathStyle = true
	}
	return &s3Store{client: s3.New(opts), bucket: conf.S3.Bucket}, nil
}

// Put buffers the content so the request body can be signed.
func (s *s3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if _, err := io.Copy(buf, r); err != nil {
		return errors.Wrap(err, "reading content")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(int64(buf.Len())),
		ContentType:   aws.String(contentType),
		ACL:           types.ObjectCannedACLPrivate,
	})
	return errors.Wrap(err, "putting object")
}

func (s *s3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, petition.ErrAttachmentNotFound
		}
		return nil, errors.Wrap(err, "getting object")
	}
	return out.Body, nil
}

func (s *s3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return errors.Wrap(err, "deleting object")
}
