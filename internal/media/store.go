package media

import (
	"context"
	"errors"
	"mime/multipart"
)

const (
	FolderEvents = "events"
	FolderUsers  = "users"
)

var (
	ErrNotManaged = errors.New("url is not managed by this media store")
	ErrNoFile     = errors.New("no file provided")
)

// Store uploads images to a media host and deletes them again by URL.
type Store interface {
	Upload(ctx context.Context, file *multipart.FileHeader, folder string) (string, error)
	Delete(ctx context.Context, url string) error
}
