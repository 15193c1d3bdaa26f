package storage

import (
	"context"
	"io"
	"time"
)

// Package storage contains the blob-storage abstraction the submission
// system writes uploaded files through, plus the path/dedup logic layered on
// top of it. Implementations must avoid local disk and rely on streaming I/O
// only.

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1
// and the implementation will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the blob-storage collaborator. Keys are opaque strings produced
// by PathFor; the backend never interprets them beyond prefix semantics.
type Storage interface {
	// Exists reports whether an object is present under the given key.
	Exists(ctx context.Context, key string) (bool, error)
	// Put uploads an object under the given key using the provided reader.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
}
