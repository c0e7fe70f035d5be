package uploads

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func encodeJPEG(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return &buf
}

func TestSaveReencodesAsJPEG(t *testing.T) {
	store, err := NewStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	url, err := store.Save(encodeJPEG(t, 640, 480))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !strings.HasPrefix(url, "/uploads/") || !strings.HasSuffix(url, ".jpg") {
		t.Errorf("unexpected URL shape: %s", url)
	}

	path := filepath.Join(store.Dir(), filepath.Base(url))
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(raw)); err != nil {
		t.Errorf("stored file is not a valid JPEG: %v", err)
	}
	// Re-encoded output never carries an EXIF segment (0xFFE1).
	if bytes.Contains(raw, []byte{0xFF, 0xE1}) {
		t.Error("stored file contains an EXIF marker")
	}
}

func TestSaveAcceptsPNG(t *testing.T) {
	store, err := NewStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	url, err := store.Save(&buf)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(url, ".jpg") {
		t.Errorf("PNG input should be stored as JPEG, got %s", url)
	}
}

func TestSaveRejectsNonImages(t *testing.T) {
	store, err := NewStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	_, err = store.Save(strings.NewReader("#!/bin/sh\nrm -rf /\n"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSaveScalesDownLargeImages(t *testing.T) {
	store, err := NewStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	url, err := store.Save(encodeJPEG(t, 4000, 2000))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	f, err := os.Open(filepath.Join(store.Dir(), filepath.Base(url)))
	if err != nil {
		t.Fatalf("open stored file: %v", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.Width > 1920 || cfg.Height > 1920 {
		t.Errorf("stored image not scaled down: %dx%d", cfg.Width, cfg.Height)
	}
	// Aspect ratio preserved (2:1)
	if cfg.Width != 2*cfg.Height {
		t.Errorf("aspect ratio not preserved: %dx%d", cfg.Width, cfg.Height)
	}
}
