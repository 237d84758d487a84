package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"sync"
	"time"

	"github.com/kendall-kelly/helphub-api/utils"
)

// MockS3Service keeps objects in memory
type MockS3Service struct {
	uploadedFiles map[string][]byte
	mu            sync.RWMutex
	now           func() time.Time
}

// NewMockS3Service creates an empty in-memory bucket
func NewMockS3Service() *MockS3Service {
	return &MockS3Service{
		uploadedFiles: make(map[string][]byte),
		now:           time.Now,
	}
}

// UploadFile stores the content under the same key layout as S3Service
func (m *MockS3Service) UploadFile(ctx context.Context, prefix string, fileHeader *multipart.FileHeader) (string, error) {
	content, err := utils.ReadUploadedFile(fileHeader)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s3Key := objectKey(prefix, m.now(), fileHeader.Filename)
	// two uploads in the same second must not collide
	for i := 1; ; i++ {
		if _, taken := m.uploadedFiles[s3Key]; !taken {
			break
		}
		s3Key = objectKey(prefix, m.now().Add(time.Duration(i)*time.Second), fileHeader.Filename)
	}
	m.uploadedFiles[s3Key] = content

	return s3Key, nil
}

// GetPresignedURL fails for keys that were never uploaded
func (m *MockS3Service) GetPresignedURL(ctx context.Context, s3Key string) (string, error) {
	if s3Key == "" {
		return "", nil
	}

	m.mu.RLock()
	_, exists := m.uploadedFiles[s3Key]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("file not found in mock S3: %s", s3Key)
	}

	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", s3Key), nil
}

func (m *MockS3Service) DeleteFile(ctx context.Context, s3Key string) error {
	if s3Key == "" {
		return nil
	}

	m.mu.Lock()
	delete(m.uploadedFiles, s3Key)
	m.mu.Unlock()

	return nil
}

// FileExists checks if a key is stored
func (m *MockS3Service) FileExists(s3Key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.uploadedFiles[s3Key]
	return exists
}

// Count returns the number of stored objects
func (m *MockS3Service) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.uploadedFiles)
}
