// Package storage defines the blob store that holds uploaded file bytes under opaque keys.
package storage

import (
	"context"
	"io"
)

// Object is an open stored file.
type Object interface {
	io.ReadCloser
	ContentLength() int64
}

// Storage backends return domain.ErrObjectNotFound for missing keys.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (Object, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

type object struct {
	io.ReadCloser
	size int64
}

func (o *object) ContentLength() int64 { return o.size }

// NewObject wraps rc with a known size.
func NewObject(rc io.ReadCloser, size int64) Object {
	return &object{ReadCloser: rc, size: size}
}
