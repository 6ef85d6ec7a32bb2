package model

import (
	"context"
	"io"
)

// Storage is the blob backend for credential ciphertexts too large to keep
// inline. It only ever sees encrypted bytes.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
