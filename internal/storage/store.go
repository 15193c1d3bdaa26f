package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrInvalidScope = errors.New("invalid assignment scope")
	ErrNotFound     = errors.New("blob not found")
)

// ChunkSize is the block size used when streaming blobs back to clients.
const ChunkSize = 8 * 1024

// SubmissionStore maps (assignment scope, content hash, filename) onto blob
// keys and provides deduplicated save plus streaming read on top of the
// Storage collaborator.
type SubmissionStore struct {
	blobs Storage
	log   *zap.Logger
}

// NewSubmissionStore constructs a SubmissionStore over the given blob
// backend. The logger must not be nil.
func NewSubmissionStore(blobs Storage, log *zap.Logger) *SubmissionStore {
	return &SubmissionStore{blobs: blobs, log: log}
}

// PathFor derives the deterministic blob key for an upload: the scope id,
// the content hash, and the original filename's extension (with its leading
// dot, or nothing if the filename has none). Two students uploading
// byte-identical files with the same extension land on the same key.
func (s *SubmissionStore) PathFor(scopeID, contentHash, filename string) (string, error) {
	if err := validateScope(scopeID); err != nil {
		return "", err
	}
	return scopeID + "/" + contentHash + filepath.Ext(filename), nil
}

func validateScope(scopeID string) error {
	switch {
	case scopeID == "":
		return fmt.Errorf("%w: empty", ErrInvalidScope)
	case strings.HasPrefix(scopeID, "/"):
		return fmt.Errorf("%w: absolute path %q", ErrInvalidScope, scopeID)
	case strings.Contains(scopeID, "..") || strings.Contains(scopeID, `\`):
		return fmt.Errorf("%w: traversal in %q", ErrInvalidScope, scopeID)
	}
	return nil
}

// Save persists the stream under key unless a blob is already there, making
// repeat saves of identical content a no-op. The write itself is delegated
// to the backend, which is trusted to not leave partial objects behind.
func (s *SubmissionStore) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	exists, err := s.blobs.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check blob existence: %w", err)
	}
	if exists {
		s.log.Debug("blob already stored, skipping save", zap.String("key", key))
		return nil
	}
	if _, err := s.blobs.Put(ctx, key, r, PutObjectOptions{Size: size, ContentType: contentType}); err != nil {
		return fmt.Errorf("save blob: %w", err)
	}
	s.log.Info("blob stored", zap.String("key", key), zap.Int64("size", size))
	return nil
}

// Open returns a streaming reader over the blob at key. The caller owns the
// reader; StreamOut takes that ownership over when used.
func (s *SubmissionStore) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	rc, info, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, ObjectInfo{}, fmt.Errorf("open blob: %w", err)
	}
	return rc, info, nil
}

// StreamOut yields the blob content in chunks of at most chunkSize bytes
// (ChunkSize when chunkSize <= 0). The sequence is finite and single-use:
// restarting requires a fresh Open. Each chunk aliases a single reused
// buffer and is only valid until the next iteration; consumers that keep
// the bytes must copy them. The reader is closed when the loop finishes,
// errors, or the consumer breaks out early.
func (s *SubmissionStore) StreamOut(rc io.ReadCloser, chunkSize int) iter.Seq2[[]byte, error] {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}
	return func(yield func([]byte, error) bool) {
		defer rc.Close()
		buf := make([]byte, chunkSize)
		for {
			n, err := rc.Read(buf)
			if n > 0 {
				if !yield(buf[:n], nil) {
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					yield(nil, err)
				}
				return
			}
		}
	}
}
