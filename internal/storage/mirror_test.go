package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMirrorStoresContentAddressed(t *testing.T) {
	payload := []byte("fake png bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	m, err := NewFileMirror(dir, "/media")
	if err != nil {
		t.Fatalf("NewFileMirror() error = %v", err)
	}

	url, err := m.Mirror(context.Background(), srv.URL+"/generated/img.png")
	if err != nil {
		t.Fatalf("Mirror() error = %v", err)
	}

	if !strings.HasPrefix(url, "/media/") {
		t.Errorf("mirrored URL = %q, want /media/ prefix", url)
	}
	if !strings.HasSuffix(url, ".png") {
		t.Errorf("mirrored URL = %q, want .png extension", url)
	}

	stored, err := os.ReadFile(filepath.Join(dir, filepath.Base(url)))
	if err != nil {
		t.Fatalf("read mirrored file: %v", err)
	}
	if string(stored) != string(payload) {
		t.Error("mirrored content differs from upstream")
	}
}

func TestMirrorIdempotentForSameContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("same bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	m, err := NewFileMirror(dir, "/media")
	if err != nil {
		t.Fatalf("NewFileMirror() error = %v", err)
	}

	first, err := m.Mirror(context.Background(), srv.URL+"/a.png")
	if err != nil {
		t.Fatalf("Mirror() error = %v", err)
	}
	second, err := m.Mirror(context.Background(), srv.URL+"/b.png")
	if err != nil {
		t.Fatalf("Mirror() error = %v", err)
	}

	if first != second {
		t.Errorf("identical content mirrored to %q and %q", first, second)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d files, want 1", len(entries))
	}
}

func TestMirrorRejectsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	m, err := NewFileMirror(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("NewFileMirror() error = %v", err)
	}

	if _, err := m.Mirror(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Error("Mirror() should fail on upstream 404")
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://x/img.png", ".png"},
		{"https://x/img.jpg", ".jpg"},
		{"https://x/img.webp", ".webp"},
		{"https://x/img", ".png"},
		{"https://x/img.exe", ".png"},
	}
	for _, tt := range tests {
		if got := extensionFor(tt.url); got != tt.want {
			t.Errorf("extensionFor(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
