// Package blobfs implements the C14 blob filesystem port: directory
// and file CRUD abstracted from the OS, with Local, S3, and Memory
// adapters. Paths are the engine's own layout (spec §7):
// "libraries/{library_id}/{file_id}/{filename}" for finalised files
// and "libraries/{library_id}/.uploads/{session_id}" for in-flight
// uploads — never OS paths, so callers stay backend-agnostic.
package blobfs

import (
	"context"
	"fmt"
	"io"
)

// BlobFS is the narrow storage interface the upload session manager
// and indexer depend on. Implementations must be safe for concurrent
// use.
type BlobFS interface {
	// Get opens a blob for reading. The caller must close the reader.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Put writes r as the entire contents of path, replacing any
	// existing blob there.
	Put(ctx context.Context, path string, r io.Reader) error

	// WriteChunk writes r at chunkNumber*chunkSize within the blob at
	// path, growing the blob as needed. Chunks may arrive out of
	// order; a given chunkNumber may be rewritten.
	WriteChunk(ctx context.Context, path string, chunkNumber int, chunkSize int64, r io.Reader) error

	// Finalize signals that every chunk of a chunked write has
	// arrived, for adapters (S3) that need an explicit completion
	// step. Adapters with direct random-access writes (Local, Memory)
	// treat this as a no-op.
	Finalize(ctx context.Context, path string) error

	// Delete removes a blob. Not an error if it doesn't exist.
	Delete(ctx context.Context, path string) error

	// Exists reports whether a blob is present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Size returns the current size of the blob at path.
	Size(ctx context.Context, path string) (int64, error)

	// Move relocates a blob from src to dst, used to promote a
	// finalised upload from its temp path to its permanent one.
	Move(ctx context.Context, src, dst string) error
}

// LibraryFilePath returns the finalised-file path for a library file,
// per spec §7's layout.
func LibraryFilePath(libraryID, fileID, filename string) string {
	return fmt.Sprintf("libraries/%s/%s/%s", libraryID, fileID, filename)
}

// UploadTempPath returns the in-flight-upload blob path for a session,
// per spec §7's layout.
func UploadTempPath(libraryID, sessionID string) string {
	return fmt.Sprintf("libraries/%s/.uploads/%s", libraryID, sessionID)
}
