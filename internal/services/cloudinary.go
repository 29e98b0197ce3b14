package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore keeps uploads in Cloudinary. The object reference is the
// secure delivery URL, which is already durable.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

func (s *CloudinaryStore) Put(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	res, err := s.cld.Upload.Upload(ctx, body, uploader.UploadParams{
		PublicID:     path,
		Folder:       s.folder,
		ResourceType: "auto",
	})
	if err == nil && res.Error.Message != "" {
		err = errors.New(res.Error.Message)
	}
	if err != nil {
		objectsStored.WithLabelValues("cloudinary", "failed").Inc()
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	objectsStored.WithLabelValues("cloudinary", "ok").Inc()
	return res.SecureURL, nil
}

func (s *CloudinaryStore) URL(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", ErrNotFound
	}
	return ref, nil
}
