// Package secrets resolves the HS512 signing key, either from configuration
// or from an object in an S3-compatible bucket (AWS S3, MinIO).
package secrets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/shared"
)

// maxSecretSize bounds how much of the S3 object is read.
const maxSecretSize = 16 << 10

// ObjectGetter is the part of *s3.Client used here.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3Client = func(cfg aws.Config, optFns ...func(*s3.Options)) ObjectGetter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// DecodeKey decodes a standard base64 secret. Surrounding whitespace, such
// as a trailing newline in a file, is ignored.
func DecodeKey(encoded []byte) ([]byte, error) {
	encoded = bytes.TrimSpace(encoded)
	if len(encoded) == 0 {
		return nil, errors.New("empty secret key")
	}
	key := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(key, encoded)
	if err != nil {
		shared.WipeByteArray(key)
		return nil, fmt.Errorf("secret key is not valid base64: %w", err)
	}
	return key[:n], nil
}

// NewS3Client builds a client from the static credentials in cfg. A non-empty
// S3BaseEndpoint switches to path-style addressing, which MinIO expects.
func NewS3Client(ctx context.Context, cfg *sc.Config) (ObjectGetter, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3Client(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// FetchKey downloads bucket/object and decodes it with DecodeKey.
func FetchKey(ctx context.Context, client ObjectGetter, bucket, object string) ([]byte, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(object),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, object, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(out.Body, maxSecretSize))
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, object, err)
	}
	defer shared.WipeByteArray(raw)

	return DecodeKey(raw)
}

// SigningKey returns the decoded signing key named by cfg. The caller should
// wipe it once the signer has been built.
func SigningKey(ctx context.Context, cfg *sc.Config) ([]byte, error) {
	if cfg.SecretKeyS3Object == "" {
		return DecodeKey([]byte(cfg.SecretKey))
	}

	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return FetchKey(ctx, client, cfg.SecretKeyS3Bucket, cfg.SecretKeyS3Object)
}
