package services

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/google/uuid"

	"github.com/kendall-kelly/helphub-api/utils"
)

// ImageService manages volunteer profile images
type ImageService interface {
	// UploadImage validates and stores an image for a volunteer, returning its key
	UploadImage(ctx context.Context, volunteerID uuid.UUID, fileHeader *multipart.FileHeader) (string, error)

	// GetImageURL returns a temporary URL for a stored image
	GetImageURL(ctx context.Context, imageKey string) (string, error)

	DeleteImage(ctx context.Context, imageKey string) error
}

// S3ImageService implements ImageService on top of S3Interface
type S3ImageService struct {
	s3Service S3Interface
}

// NewImageService creates an image service backed by storage
func NewImageService(storage S3Interface) *S3ImageService {
	return &S3ImageService{s3Service: storage}
}

func (s *S3ImageService) UploadImage(ctx context.Context, volunteerID uuid.UUID, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	key, err := s.s3Service.UploadFile(ctx, "volunteers/"+volunteerID.String(), fileHeader)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return key, nil
}

func (s *S3ImageService) GetImageURL(ctx context.Context, imageKey string) (string, error) {
	if imageKey == "" {
		return "", nil
	}

	url, err := s.s3Service.GetPresignedURL(ctx, imageKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate image URL: %w", err)
	}
	return url, nil
}

func (s *S3ImageService) DeleteImage(ctx context.Context, imageKey string) error {
	if imageKey == "" {
		return nil
	}

	if err := s.s3Service.DeleteFile(ctx, imageKey); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
