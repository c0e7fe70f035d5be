// Package uploads stores evidence images. Every image is decoded and
// re-encoded before it touches disk, which drops EXIF metadata (GPS
// position, camera serial, timestamps) on the floor; the original bytes
// are never written.
package uploads

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // decoder registration
	"image/jpeg"
	_ "image/png" // decoder registration
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

const (
	// MaxUploadBytes caps the accepted request body.
	MaxUploadBytes = 10 << 20 // 10MB

	// maxDimension bounds the longest side of a stored image.
	maxDimension = 1920

	jpegQuality = 85
)

type Store struct {
	dir     string
	baseURL string
}

// NewStore creates the upload directory if needed. baseURL is the
// public path prefix the stored files are served under.
func NewStore(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{dir: dir, baseURL: baseURL}, nil
}

// Dir returns the on-disk directory, for static file serving.
func (s *Store) Dir() string { return s.dir }

// Save decodes the image, scales it down to at most 1920px on the
// longest side, and writes it back out as a fresh JPEG under a random
// name. Returns the public URL of the stored file.
func (s *Store) Save(r io.Reader) (string, error) {
	img, format, err := image.Decode(io.LimitReader(r, MaxUploadBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	switch format {
	case "jpeg", "png", "gif":
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	img = scaleDown(img)

	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate file name: %w", err)
	}
	name := hex.EncodeToString(raw) + ".jpg"

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	return s.baseURL + "/" + name, nil
}

func scaleDown(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDimension && h <= maxDimension {
		return img
	}

	scale := float64(maxDimension) / float64(w)
	if h > w {
		scale = float64(maxDimension) / float64(h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
