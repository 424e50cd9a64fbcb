package storage

import (
	"context"
	"io"
)

type UploadResult struct {
	Key      string
	Location string
}

// FileUploader stores user avatars and resolves their public URLs. The
// engine itself only resolves; uploads happen through the profile surface.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	GetPublicURL(key string) string
}
