package blobfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kbasehq/knowledge-engine/internal/config"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
)

// S3 is a BlobFS backed by an S3-compatible bucket (AWS S3, MinIO,
// etc). Chunked writes land as temporary per-chunk objects and are
// assembled server-side with UploadPartCopy on Finalize, so chunk
// bytes never pass back through this process a second time.
//
// S3's multipart upload requires every part but the last to be at
// least 5 MiB; callers using chunk sizes below that on non-final
// chunks will see Finalize fail.
type S3 struct {
	client *s3.Client
	bucket string

	mu      sync.Mutex
	uploads map[string]string // path -> in-progress multipart upload id
}

// NewS3 builds an S3 BlobFS from config.S3Config.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var awsOpts []func(*awsconfig.LoadOptions) error
	awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &S3{
		client:  s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:  cfg.Bucket,
		uploads: make(map[string]string),
	}, nil
}

func (s *S3) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, kberrors.New(kberrors.NotFound, "blob not found: "+path)
		}
		return nil, kberrors.Wrap(kberrors.StorageError, "s3 get", err)
	}
	return out.Body, nil
}

func (s *S3) Put(ctx context.Context, path string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "read blob payload", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
		Body:   strings.NewReader(string(data)),
	})
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "s3 put", err)
	}
	return nil
}

func (s *S3) partKey(path string, chunkNumber int) string {
	return fmt.Sprintf("%s.part.%05d", path, chunkNumber)
}

func (s *S3) WriteChunk(ctx context.Context, path string, chunkNumber int, _ int64, r io.Reader) error {
	return s.Put(ctx, s.partKey(path, chunkNumber), r)
}

// Finalize assembles every uploaded chunk part for path, in ascending
// chunk-number order, into the final object via S3 multipart
// UploadPartCopy, then deletes the temporary parts.
func (s *S3) Finalize(ctx context.Context, path string) error {
	parts, err := s.listParts(ctx, path)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return kberrors.New(kberrors.Integrity, "no uploaded chunks to finalize for "+path)
	}

	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "s3 create multipart upload", err)
	}
	uploadID := aws.ToString(created.UploadId)

	var completed []s3types.CompletedPart
	for i, partKey := range parts {
		partNumber := int32(i + 1)
		copyResult, err := s.client.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(path),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int32(partNumber),
			CopySource: aws.String(s.bucket + "/" + partKey),
		})
		if err != nil {
			_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
				Bucket: aws.String(s.bucket), Key: aws.String(path), UploadId: aws.String(uploadID),
			})
			return kberrors.Wrap(kberrors.StorageError, "s3 upload part copy", err)
		}
		completed = append(completed, s3types.CompletedPart{
			ETag:       copyResult.CopyPartResult.ETag,
			PartNumber: aws.Int32(partNumber),
		})
	}

	if _, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(path),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: completed},
	}); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "s3 complete multipart upload", err)
	}

	for _, partKey := range parts {
		_ = s.Delete(ctx, partKey)
	}
	return nil
}

func (s *S3) listParts(ctx context.Context, path string) ([]string, error) {
	prefix := path + ".part."
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, kberrors.Wrap(kberrors.StorageError, "s3 list chunk parts", err)
	}
	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *S3) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil && !isNotFound(err) {
		return kberrors.Wrap(kberrors.StorageError, "s3 delete", err)
	}
	return nil
}

func (s *S3) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, kberrors.Wrap(kberrors.StorageError, "s3 head", err)
	}
	return true, nil
}

func (s *S3) Size(ctx context.Context, path string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, kberrors.New(kberrors.NotFound, "blob not found: "+path)
		}
		return 0, kberrors.Wrap(kberrors.StorageError, "s3 head", err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (s *S3) Move(ctx context.Context, src, dst string) error {
	if _, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + src),
		Key:        aws.String(dst),
	}); err != nil {
		if isNotFound(err) {
			return kberrors.New(kberrors.NotFound, "blob not found: "+src)
		}
		return kberrors.Wrap(kberrors.StorageError, "s3 copy for move", err)
	}
	return s.Delete(ctx, src)
}

func isNotFound(err error) bool {
	var notFound *s3types.NotFound
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &notFound) ||
		errors.As(err, &noSuchKey) ||
		strings.Contains(err.Error(), "NotFound") ||
		strings.Contains(err.Error(), "NoSuchKey")
}

var _ BlobFS = (*S3)(nil)
