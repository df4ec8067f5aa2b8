package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kino/internal/ports"
)

func TestPutObject(t *testing.T) {
	root := t.TempDir()
	fs := New(root, "http://localhost:8080/media/")
	ctx := context.Background()

	out, err := fs.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   "videos/vid_1.mp4",
		ContentType: "video/mp4",
		Reader:      strings.NewReader("mp4 bytes"),
		Size:        9,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.ObjectKey != "videos/vid_1.mp4" {
		t.Errorf("unexpected object key %q", out.ObjectKey)
	}
	if out.Size != 9 {
		t.Errorf("unexpected size %d", out.Size)
	}
	// Trailing slash on the base URL is normalized away.
	if out.URL != "http://localhost:8080/media/videos/vid_1.mp4" {
		t.Errorf("unexpected url %q", out.URL)
	}

	data, err := os.ReadFile(filepath.Join(root, "videos", "vid_1.mp4"))
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(data) != "mp4 bytes" {
		t.Errorf("unexpected contents %q", data)
	}
}

func TestPutObjectRequiresKey(t *testing.T) {
	fs := New(t.TempDir(), "http://localhost:8080")
	_, err := fs.PutObject(context.Background(), ports.PutObjectInput{Reader: strings.NewReader("x")})
	if err == nil {
		t.Fatal("expected error for empty object key")
	}
}

func TestGetObject(t *testing.T) {
	root := t.TempDir()
	fs := New(root, "http://localhost:8080")
	ctx := context.Background()

	if _, err := fs.PutObject(ctx, ports.PutObjectInput{
		ObjectKey: "videos/vid_1.mp4",
		Reader:    strings.NewReader("mp4 bytes"),
	}); err != nil {
		t.Fatal(err)
	}

	rc, contentType, size, err := fs.GetObject(ctx, "videos/vid_1.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()

	if contentType != "video/mp4" {
		t.Errorf("unexpected content type %q", contentType)
	}
	if size != 9 {
		t.Errorf("unexpected size %d", size)
	}

	data, _ := io.ReadAll(rc)
	if string(data) != "mp4 bytes" {
		t.Errorf("unexpected contents %q", data)
	}
}

func TestGetObjectMissing(t *testing.T) {
	fs := New(t.TempDir(), "http://localhost:8080")
	if _, _, _, err := fs.GetObject(context.Background(), "videos/missing.mp4"); err == nil {
		t.Fatal("expected error for missing object")
	}
}

func TestDeleteObject(t *testing.T) {
	root := t.TempDir()
	fs := New(root, "http://localhost:8080")
	ctx := context.Background()

	if _, err := fs.PutObject(ctx, ports.PutObjectInput{
		ObjectKey: "videos/vid_1.mp4",
		Reader:    strings.NewReader("x"),
	}); err != nil {
		t.Fatal(err)
	}

	if err := fs.DeleteObject(ctx, "videos/vid_1.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "videos", "vid_1.mp4")); !os.IsNotExist(err) {
		t.Error("expected object to be gone")
	}
}
