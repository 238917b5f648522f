package services

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestDiskAssetStore_SaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskAssetStore(dir)
	if err != nil {
		t.Fatalf("NewDiskAssetStore() error = %v", err)
	}
	ctx := context.Background()

	publicPath, err := store.Save(ctx, "featuredImage-1-2.png", strings.NewReader("png-bytes"), 9, "image/png")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if publicPath != "/uploads/featuredImage-1-2.png" {
		t.Errorf("Save() = %q, want /uploads/featuredImage-1-2.png", publicPath)
	}

	data, err := os.ReadFile(filepath.Join(dir, "featuredImage-1-2.png"))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("stored content = %q", data)
	}

	if err := store.Delete(ctx, publicPath); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "featuredImage-1-2.png")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("file still present after Delete(): %v", err)
	}

	if err := store.Delete(ctx, publicPath); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Delete(missing) error = %v, want fs.ErrNotExist", err)
	}
}

func TestDiskAssetStore_ConfinedToDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "uploads")
	store, err := NewDiskAssetStore(dir)
	if err != nil {
		t.Fatalf("NewDiskAssetStore() error = %v", err)
	}

	outside := filepath.Join(root, "keep.txt")
	if err := os.WriteFile(outside, []byte("keep"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_ = store.Delete(context.Background(), "/uploads/../keep.txt")
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("file outside the upload dir was touched: %v", err)
	}
}

type fakeS3 struct {
	puts    map[string]string
	deletes []string
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, _ := io.ReadAll(in.Body)
	f.puts[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3AssetStore(t *testing.T) {
	client := &fakeS3{puts: map[string]string{}}
	store := newS3AssetStore(client, "agency-assets", "https://cdn.agency.local/")
	ctx := context.Background()

	url, err := store.Save(ctx, "image-1-2.webp", strings.NewReader("webp"), 4, "image/webp")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if url != "https://cdn.agency.local/uploads/image-1-2.webp" {
		t.Errorf("Save() = %q", url)
	}
	if got := client.puts["agency-assets/uploads/image-1-2.webp"]; got != "webp" {
		t.Errorf("object body = %q, want webp", got)
	}

	if err := store.Delete(ctx, url); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(client.deletes) != 1 || client.deletes[0] != "agency-assets/uploads/image-1-2.webp" {
		t.Errorf("deletes = %v", client.deletes)
	}

	client.putErr = errors.New("slow down")
	if _, err := store.Save(ctx, "image-3-4.png", strings.NewReader("png"), 3, "image/png"); err == nil {
		t.Error("Save() expected error when PutObject fails")
	}
}
