package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"strings"
	"sync"
)

// ErrEmptyImage is returned when a base64 payload decodes to nothing.
var ErrEmptyImage = errors.New("imaging: empty image data")

// ImageCache provides thread-safe caching of decoded images keyed by path.
//
// The analyzer loads the same ECG file several times per request (encoding
// for the model calls, annotation per model, strip reading), so decoded
// images and raw bytes are kept until evicted.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]cachedImage
}

type cachedImage struct {
	img    image.Image
	format string
	raw    []byte
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]cachedImage),
	}
}

// Load retrieves an image from the cache or reads and decodes it from disk.
//
// Supported formats are PNG, JPEG, and GIF. Different spellings of the same
// path are cached separately.
func (c *ImageCache) Load(path string) (image.Image, error) {
	entry, err := c.load(path)
	if err != nil {
		return nil, err
	}
	return entry.img, nil
}

func (c *ImageCache) load(path string) (cachedImage, error) {
	c.mu.RLock()
	if entry, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return entry, nil
	}
	c.mu.RUnlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cachedImage{}, fmt.Errorf("failed to open image: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return cachedImage{}, fmt.Errorf("failed to decode image: %w", err)
	}

	entry := cachedImage{img: img, format: format, raw: raw}
	c.mu.Lock()
	c.images[path] = entry
	c.mu.Unlock()

	return entry, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]cachedImage)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// EncodedImage is an image in the transportable form sent to hosted models:
// plain base64 without a data URL prefix.
type EncodedImage struct {
	// Base64 is the standard base64 encoding of the original file bytes.
	Base64 string `json:"image_base64"`

	// MimeType is derived from the decoded format, e.g. "image/jpeg".
	MimeType string `json:"mime_type"`

	// Format is the decoder name: "png", "jpeg" or "gif".
	Format string `json:"format"`

	// Width and Height are the decoded image dimensions in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`

	// SizeBytes is the size of the original file.
	SizeBytes int `json:"size_bytes"`
}

// EncodeFile loads an image through the cache and returns its original bytes
// as base64 along with basic metadata. The file is validated by decoding it,
// so only supported images are ever sent to a model.
func (c *ImageCache) EncodeFile(path string) (*EncodedImage, error) {
	entry, err := c.load(path)
	if err != nil {
		return nil, err
	}
	b := entry.img.Bounds()
	return &EncodedImage{
		Base64:    base64.StdEncoding.EncodeToString(entry.raw),
		MimeType:  mimeFor(entry.format),
		Format:    entry.format,
		Width:     b.Dx(),
		Height:    b.Dy(),
		SizeBytes: len(entry.raw),
	}, nil
}

// StripDataURL removes a "data:<mime>;base64," prefix and returns the bare
// payload and the declared MIME type. Strings without a prefix are returned
// unchanged with an empty MIME type.
func StripDataURL(s string) (payload, mimeType string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s, ""
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok {
		return s, ""
	}
	mimeType = strings.TrimPrefix(header, "data:")
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return payload, mimeType
}

// DecodeBase64 decodes a base64 image, with or without a data URL prefix,
// and returns the image, its format and the bare payload.
func DecodeBase64(s string) (image.Image, string, string, error) {
	payload, _ := StripDataURL(s)
	if payload == "" {
		return nil, "", "", ErrEmptyImage
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to decode base64: %w", err)
	}
	if len(raw) == 0 {
		return nil, "", "", ErrEmptyImage
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, payload, nil
}

func mimeFor(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
