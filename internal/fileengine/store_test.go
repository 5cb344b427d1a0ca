package fileengine

import (
	"context"
	"testing"
)

func TestStoreUploadDownloadDiskOnly(t *testing.T) {
	store := NewStore(t.TempDir(), 0, false)
	ctx := context.Background()

	if err := store.Upload(ctx, "a.txt", []byte("hello"), false); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	data, err := store.Download(ctx, "a.txt")
	if err != nil || string(data) != "hello" {
		t.Fatalf("Download = %q, %v", data, err)
	}
}

func TestStoreUploadRejectsExistingWithoutOverwrite(t *testing.T) {
	store := NewStore(t.TempDir(), 0, false)
	ctx := context.Background()
	if err := store.Upload(ctx, "a.txt", []byte("v1"), false); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if err := store.Upload(ctx, "a.txt", []byte("v2"), false); err == nil {
		t.Fatal("expected FileExists error on second upload without overwrite")
	}
	if err := store.Upload(ctx, "a.txt", []byte("v2"), true); err != nil {
		t.Fatalf("overwrite upload should succeed, got %v", err)
	}
}

func TestStoreMemoryBufferedUploadFlushesToDisk(t *testing.T) {
	store := NewStore(t.TempDir(), 10, true)
	ctx := context.Background()

	if err := store.Upload(ctx, "a.txt", []byte("buffered"), false); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	data, err := store.Download(ctx, "a.txt")
	if err != nil || string(data) != "buffered" {
		t.Fatalf("Download from memory = %q, %v", data, err)
	}
	if err := store.FlushDirty(); err != nil {
		t.Fatalf("FlushDirty: %v", err)
	}

	fresh := NewStore(store.root, 10, false)
	onDisk, err := fresh.Download(ctx, "a.txt")
	if err != nil || string(onDisk) != "buffered" {
		t.Fatalf("expected flushed data readable from a fresh disk-only store, got %q, %v", onDisk, err)
	}
}

func TestStoreDownloadMissingFile(t *testing.T) {
	store := NewStore(t.TempDir(), 0, false)
	if _, err := store.Download(context.Background(), "nope.txt"); err == nil {
		t.Fatal("expected FileNotFound error")
	}
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(t.TempDir(), 10, true)
	ctx := context.Background()
	_ = store.Upload(ctx, "a.txt", []byte("x"), false)
	if err := store.Delete(ctx, "a.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Download(ctx, "a.txt"); err == nil {
		t.Fatal("expected FileNotFound after delete")
	}
}
