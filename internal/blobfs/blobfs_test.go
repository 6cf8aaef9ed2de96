package blobfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func testBackends(t *testing.T) map[string]BlobFS {
	t.Helper()
	return map[string]BlobFS{
		"memory": NewMemory(),
		"local":  NewLocal(t.TempDir()),
	}
}

func TestPutAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, fs := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := fs.Put(ctx, "libraries/lib1/file1/doc.md", bytes.NewReader([]byte("hello world"))); err != nil {
				t.Fatalf("put: %v", err)
			}
			rc, err := fs.Get(ctx, "libraries/lib1/file1/doc.md")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(data) != "hello world" {
				t.Fatalf("unexpected content: %q", data)
			}
		})
	}
}

func TestWriteChunkAssemblesInOrder(t *testing.T) {
	ctx := context.Background()
	for name, fs := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			path := "libraries/lib1/.uploads/session1"
			const chunkSize = 4
			if err := fs.WriteChunk(ctx, path, 1, chunkSize, bytes.NewReader([]byte("WXYZ"))); err != nil {
				t.Fatalf("write chunk 1: %v", err)
			}
			if err := fs.WriteChunk(ctx, path, 0, chunkSize, bytes.NewReader([]byte("ABCD"))); err != nil {
				t.Fatalf("write chunk 0: %v", err)
			}
			if err := fs.Finalize(ctx, path); err != nil {
				t.Fatalf("finalize: %v", err)
			}
			rc, err := fs.Get(ctx, path)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			defer rc.Close()
			data, _ := io.ReadAll(rc)
			if string(data) != "ABCDWXYZ" {
				t.Fatalf("expected assembled chunks in order, got %q", data)
			}
		})
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, fs := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := fs.Delete(ctx, "does/not/exist"); err != nil {
				t.Fatalf("expected idempotent delete of missing blob, got %v", err)
			}
		})
	}
}

func TestMoveRelocatesBlob(t *testing.T) {
	ctx := context.Background()
	for name, fs := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := fs.Put(ctx, "src/path", bytes.NewReader([]byte("payload"))); err != nil {
				t.Fatalf("put: %v", err)
			}
			if err := fs.Move(ctx, "src/path", "dst/path"); err != nil {
				t.Fatalf("move: %v", err)
			}
			if exists, _ := fs.Exists(ctx, "src/path"); exists {
				t.Fatalf("expected src to be gone after move")
			}
			if exists, _ := fs.Exists(ctx, "dst/path"); !exists {
				t.Fatalf("expected dst to exist after move")
			}
		})
	}
}

func TestLibraryFilePathAndUploadTempPathLayout(t *testing.T) {
	if got := LibraryFilePath("lib1", "file1", "report.md"); got != "libraries/lib1/file1/report.md" {
		t.Fatalf("unexpected LibraryFilePath: %q", got)
	}
	if got := UploadTempPath("lib1", "sess1"); got != "libraries/lib1/.uploads/sess1" {
		t.Fatalf("unexpected UploadTempPath: %q", got)
	}
}

func TestLocalResolvesUnderRoot(t *testing.T) {
	root := t.TempDir()
	fs := NewLocal(root)
	if err := fs.Put(context.Background(), "a/b/c.txt", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("put: %v", err)
	}
	full := filepath.Join(root, "a", "b", "c.txt")
	if data, err := os.ReadFile(full); err != nil || string(data) != "x" {
		t.Fatalf("expected file at %s, err=%v data=%q", full, err, data)
	}
}
