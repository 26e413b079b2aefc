package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/samber/lo"
	"go.notebook.dev/notebook/config"
	"go.notebook.dev/notebook/core"
	"go.uber.org/zap"
)

var _ core.StorageService = (*StorageServiceDefault)(nil)

func init() {
	core.RegisterService(core.ServiceInfo{
		ID: core.STORAGE_SERVICE,
		Factory: func() (core.Service, []core.ContextBuilderOption, error) {
			return NewStorageService()
		},
	})
}

// StorageServiceDefault talks to the S3 compatible bucket holding every user file.
type StorageServiceDefault struct {
	ctx    core.Context
	client *s3.Client
	bucket string
	logger *core.Logger
}

func NewStorageService() (*StorageServiceDefault, []core.ContextBuilderOption, error) {
	storage := &StorageServiceDefault{}

	opts := core.ContextOptions(
		core.ContextWithStartupFunc(func(ctx core.Context) error {
			storage.ctx = ctx
			storage.logger = ctx.Logger()

			cfg := ctx.Config().Config().Core.Storage.S3
			client, err := NewS3Client(ctx, cfg)
			if err != nil {
				return err
			}

			storage.client = client
			storage.bucket = cfg.Bucket
			return nil
		}),
	)

	return storage, opts, nil
}

// NewStorageServiceWithClient builds the service around an existing client.
func NewStorageServiceWithClient(client *s3.Client, bucket string, logger *core.Logger) *StorageServiceDefault {
	return &StorageServiceDefault{
		client: client,
		bucket: bucket,
		logger: logger,
	}
}

func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if service == s3.ServiceID {
			return aws.Endpoint{
				URL:           cfg.Endpoint,
				SigningRegion: cfg.Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion(cfg.Region),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
		awsConfig.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

func (s *StorageServiceDefault) InitiateMultipartUpload(ctx context.Context, key string, contentType string) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := s.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", classifyStoreError(err)
	}

	s.logger.Debug("multipart upload initiated", zap.String("key", key), zap.String("upload", aws.ToString(out.UploadId)))

	return aws.ToString(out.UploadId), nil
}

func (s *StorageServiceDefault) UploadPart(ctx context.Context, key string, uploadID string, partNumber int32, data []byte) (string, error) {
	out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", classifyStoreError(err)
	}

	return aws.ToString(out.ETag), nil
}

func (s *StorageServiceDefault) ListUploadedParts(ctx context.Context, key string, uploadID string) ([]core.UploadedPart, error) {
	paginator := s3.NewListPartsPaginator(s.client, &s3.ListPartsInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})

	var parts []core.UploadedPart
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classifyStoreError(err)
		}

		parts = append(parts, lo.Map(page.Parts, func(p types.Part, _ int) core.UploadedPart {
			return core.UploadedPart{
				PartNumber: aws.ToInt32(p.PartNumber),
				ETag:       aws.ToString(p.ETag),
				Size:       aws.ToInt64(p.Size),
			}
		})...)
	}

	return parts, nil
}

func (s *StorageServiceDefault) CompleteMultipartUpload(ctx context.Context, key string, uploadID string, parts []core.CompletedPart) error {
	completed := lo.Map(parts, func(p core.CompletedPart, _ int) types.CompletedPart {
		return types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		}
	})

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return classifyStoreError(err)
	}

	return nil
}

func (s *StorageServiceDefault) AbortMultipartUpload(ctx context.Context, key string, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return classifyStoreError(err)
	}

	return nil
}

func (s *StorageServiceDefault) GetObjectRange(ctx context.Context, key string, start int64, end int64) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		return nil, classifyStoreError(err)
	}

	return out.Body, nil
}

func (s *StorageServiceDefault) PutObject(ctx context.Context, key string, contentType string, data io.Reader, size int64) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          data,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return classifyStoreError(err)
	}

	return nil
}

func (s *StorageServiceDefault) StatObject(ctx context.Context, key string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, classifyStoreError(err)
	}

	return aws.ToInt64(out.ContentLength), nil
}

func (s *StorageServiceDefault) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyStoreError(err)
	}

	return nil
}

func (s *StorageServiceDefault) ListMultipartUploads(ctx context.Context, prefix string) ([]core.PendingMultipartUpload, error) {
	input := &s3.ListMultipartUploadsInput{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}

	var uploads []core.PendingMultipartUpload
	for {
		out, err := s.client.ListMultipartUploads(ctx, input)
		if err != nil {
			return nil, classifyStoreError(err)
		}

		for _, u := range out.Uploads {
			uploads = append(uploads, core.PendingMultipartUpload{
				Key:       aws.ToString(u.Key),
				UploadID:  aws.ToString(u.UploadId),
				Initiated: aws.ToTime(u.Initiated),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}

		input.KeyMarker = out.NextKeyMarker
		input.UploadIdMarker = out.NextUploadIdMarker
	}

	return uploads, nil
}

// classifyStoreError maps S3 error codes onto the store sentinels the upload
// orchestrator branches on, keeping the original error in the chain.
func classifyStoreError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "NoSuchUpload":
		return fmt.Errorf("%w: %w", core.ErrNoSuchUpload, err)
	case "InvalidPart", "InvalidPartOrder", "EntityTooSmall":
		return fmt.Errorf("%w: %w", core.ErrPartRejected, err)
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%w: %w", core.ErrNoSuchKey, err)
	case "KeyTooLongError":
		return fmt.Errorf("%w: %w", core.ErrKeyRejected, err)
	}

	return err
}
