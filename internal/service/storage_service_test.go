package service

import (
	"classtutor_backend/internal/config"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorageFetch(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "worksheet.pdf"), []byte("pdf bytes"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	p := &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: root}}
	data, contentType, err := p.Fetch(context.Background(), "worksheet.pdf")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != "pdf bytes" {
		t.Errorf("data = %q, want file contents", data)
	}
	if contentType != "application/pdf" {
		t.Errorf("contentType = %q, want application/pdf", contentType)
	}
}

func TestLocalStorageFetchConfinesTraversal(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "store")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(base, "secret.txt"), []byte("top secret"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	p := &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: root}}
	if _, _, err := p.Fetch(context.Background(), "../secret.txt"); err == nil {
		t.Error("Fetch() escaped the storage root")
	}
}

func TestNewStorageProviderDefaultsToLocal(t *testing.T) {
	f, err := NewStorageProvider(&config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStorageProvider() error = %v", err)
	}
	if _, ok := f.(*LocalStorageProvider); !ok {
		t.Errorf("provider type = %T, want *LocalStorageProvider", f)
	}
}
