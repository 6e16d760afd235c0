package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Options struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Archive keeps progress snapshots in one bucket. Objects are written with
// server-side encryption since they carry reading history tied to an email.
type S3Archive struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

func NewS3Archive(ctx context.Context, opts S3Options) (*S3Archive, error) {
	if opts.Bucket == "" {
		return nil, errors.New("AWS_S3_BUCKET is required")
	}
	load := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		load = append(load, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, load...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg)
	return &S3Archive{client: client, presign: s3.NewPresignClient(client), bucket: opts.Bucket}, nil
}

// PutJSON writes body under key. meta ends up as x-amz-meta-* headers.
func (a *S3Archive) PutJSON(ctx context.Context, key string, body []byte, meta map[string]string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentLength:        aws.Int64(int64(len(body))),
		ContentType:          aws.String("application/json"),
		Metadata:             meta,
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	return err
}

func (a *S3Archive) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	return err
}

// PresignDownload returns a link that saves the object as filename.
func (a *S3Archive) PresignDownload(ctx context.Context, key string, expiry time.Duration, filename string) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}
	if filename != "" {
		quoted := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(filename)
		input.ResponseContentDisposition = aws.String(`attachment; filename="` + quoted + `"`)
		input.ResponseContentType = aws.String("application/json")
	}
	req, err := a.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
