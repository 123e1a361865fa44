// Package intake turns user supplied images into in-memory assets that the
// analysis sessions can hold and the browser can display.
package intake

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // register decoder
)

// DefaultMaxBytes is the upload limit advertised to users.
const DefaultMaxBytes int64 = 10 << 20

// Origin records how an image entered a session.
type Origin string

const (
	OriginUpload Origin = "upload"
	OriginDrop   Origin = "drop"
	OriginSample Origin = "sample"
)

// ParseOrigin maps form input onto an Origin. Anything other than "drop"
// counts as a regular upload.
func ParseOrigin(raw string) Origin {
	if Origin(raw) == OriginDrop {
		return OriginDrop
	}
	return OriginUpload
}

// Asset is an accepted image. Assets are never mutated after creation.
type Asset struct {
	ID        string            `json:"id"`
	Origin    Origin            `json:"origin"`
	Name      string            `json:"name"`
	MediaType string            `json:"media_type"`
	Size      int64             `json:"size"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	SHA1      string            `json:"sha1"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Data      []byte            `json:"-"`
}

// DataURL returns the asset as a data: URL suitable for an <img> src.
func (a *Asset) DataURL() string {
	if a == nil {
		return ""
	}
	return "data:" + a.MediaType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

var supportedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// exifTags lists the EXIF fields copied into Asset.Metadata.
var exifTags = map[string]bool{
	"Make":             true,
	"Model":            true,
	"Software":         true,
	"DateTimeOriginal": true,
	"GPSLatitude":      true,
	"GPSLatitudeRef":   true,
	"GPSLongitude":     true,
	"GPSLongitudeRef":  true,
}

// Options configures an Intaker.
type Options struct {
	MaxBytes int64
	Now      func() time.Time
}

// Intaker validates and converts image sources.
type Intaker struct {
	maxBytes int64
	now      func() time.Time
	samples  *sampleSet
}

// New builds an Intaker. Zero options fall back to DefaultMaxBytes and time.Now.
func New(opts Options) *Intaker {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Intaker{maxBytes: opts.MaxBytes, now: opts.Now, samples: defaultSamples}
}

// MaxBytes returns the configured upload limit.
func (in *Intaker) MaxBytes() int64 {
	return in.maxBytes
}

// FromReader reads at most MaxBytes from r and converts the content.
func (in *Intaker) FromReader(r io.Reader, name string, origin Origin) (*Asset, error) {
	data, err := io.ReadAll(io.LimitReader(r, in.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	return in.FromBytes(data, name, origin)
}

// FromBytes validates data and builds an Asset from it.
func (in *Intaker) FromBytes(data []byte, name string, origin Origin) (*Asset, error) {
	if int64(len(data)) > in.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrPayloadTooLarge, in.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnsupportedFormat)
	}

	mime := mimetype.Detect(data)
	if !mimetype.EqualsAny(mime.String(), supportedTypes...) {
		return nil, fmt.Errorf("%w: detected %s", ErrUnsupportedFormat, mime.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	sum := sha1.Sum(data) //nolint:gosec
	return &Asset{
		ID:        uuid.NewString(),
		Origin:    origin,
		Name:      name,
		MediaType: mime.String(),
		Size:      int64(len(data)),
		Width:     cfg.Width,
		Height:    cfg.Height,
		SHA1:      hex.EncodeToString(sum[:]),
		Metadata:  extractMetadata(data),
		CreatedAt: in.now().UTC(),
		Data:      data,
	}, nil
}

// FromSample returns a fresh asset for one of the bundled sample images.
func (in *Intaker) FromSample(name string) (*Asset, error) {
	data, err := in.samples.bytes(name)
	if err != nil {
		return nil, err
	}
	return in.FromBytes(data, name, OriginSample)
}

// SampleNames lists the bundled sample images.
func (in *Intaker) SampleNames() []string {
	return in.samples.names()
}

func extractMetadata(data []byte) map[string]string {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return nil
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil
	}

	var meta map[string]string
	for _, entry := range entries {
		if !exifTags[entry.TagName] {
			continue
		}
		if meta == nil {
			meta = make(map[string]string)
		}
		meta[entry.TagName] = entry.Formatted
	}
	return meta
}
