package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// PhotoService archives analyzed photos in S3-compatible storage and hands
// out presigned URLs for retrieval. Archival is best-effort; the analysis
// flow never fails on a storage error here.
type PhotoService interface {
	Upload(ctx context.Context, objectKey string, data []byte, contentType string) error
	GetPresignedURL(ctx context.Context, objectKey string) (string, error)
}

type photoService struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	logger        zerolog.Logger
}

// NewPhotoService creates a new PhotoService.
func NewPhotoService(s3Client *s3.Client, bucketName string, logger zerolog.Logger) PhotoService {
	return &photoService{
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    bucketName,
		logger:        logger.With().Str("service", "PhotoService").Logger(),
	}
}

func (s *photoService) Upload(ctx context.Context, objectKey string, data []byte, contentType string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("object_key", objectKey).Msg("Failed to archive photo")
		return fmt.Errorf("failed to upload photo %s: %w", objectKey, err)
	}
	return nil
}

// GetPresignedURL generates a presigned URL for downloading an archived photo.
func (s *photoService) GetPresignedURL(ctx context.Context, objectKey string) (string, error) {
	resp, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		s.logger.Error().Err(err).Str("object_key", objectKey).Msg("Failed to generate presigned URL")
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return resp.URL, nil
}
