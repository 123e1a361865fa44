package intake

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{G: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestFromBytesAcceptsPNG(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := New(Options{Now: func() time.Time { return fixed }})

	data := encodePNG(t, 12, 7)
	asset, err := in.FromBytes(data, "leaf.png", OriginUpload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset.MediaType != "image/png" {
		t.Fatalf("unexpected media type: %s", asset.MediaType)
	}
	if asset.Width != 12 || asset.Height != 7 {
		t.Fatalf("unexpected dimensions: %dx%d", asset.Width, asset.Height)
	}
	if asset.Size != int64(len(data)) || asset.Origin != OriginUpload || asset.Name != "leaf.png" {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if !asset.CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected created at: %v", asset.CreatedAt)
	}
	if len(asset.SHA1) != 40 {
		t.Fatalf("unexpected sha1: %q", asset.SHA1)
	}
	if !strings.HasPrefix(asset.DataURL(), "data:image/png;base64,") {
		t.Fatalf("unexpected data url prefix: %.40s", asset.DataURL())
	}
}

func TestFromBytesAssignsDistinctIDs(t *testing.T) {
	in := New(Options{})
	data := encodePNG(t, 2, 2)

	first, err := in.FromBytes(data, "a.png", OriginDrop)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := in.FromBytes(data, "a.png", OriginDrop)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("expected distinct asset ids")
	}
	if first.SHA1 != second.SHA1 {
		t.Fatal("expected identical content hashes")
	}
}

func TestFromBytesRejectsInvalidInput(t *testing.T) {
	pngHeaderOnly := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 16)...)

	cases := map[string]struct {
		data []byte
		want error
	}{
		"empty":        {nil, ErrUnsupportedFormat},
		"text":         {[]byte("hello, this is not an image"), ErrUnsupportedFormat},
		"pdf":          {[]byte("%PDF-1.7\n1 0 obj\n"), ErrUnsupportedFormat},
		"corrupt png":  {pngHeaderOnly, ErrUnsupportedFormat},
		"over the cap": {bytes.Repeat([]byte{0xff}, 65), ErrPayloadTooLarge},
	}

	in := New(Options{MaxBytes: 64})
	for name, tc := range cases {
		_, err := in.FromBytes(tc.data, name, OriginUpload)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, err)
		}
	}
}

func TestFromReaderEnforcesLimit(t *testing.T) {
	data := encodePNG(t, 32, 32)
	in := New(Options{MaxBytes: int64(len(data) - 1)})

	if _, err := in.FromReader(bytes.NewReader(data), "big.png", OriginUpload); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}

	exact := New(Options{MaxBytes: int64(len(data))})
	if _, err := exact.FromReader(bytes.NewReader(data), "fits.png", OriginUpload); err != nil {
		t.Fatalf("expected image at the limit to be accepted, got %v", err)
	}
}

func TestFromReaderReportsReadFailure(t *testing.T) {
	in := New(Options{})
	if _, err := in.FromReader(failingReader{}, "x.png", OriginUpload); !errors.Is(err, ErrReadFailure) {
		t.Fatalf("expected ErrReadFailure, got %v", err)
	}
}

func TestSamples(t *testing.T) {
	in := New(Options{})

	names := in.SampleNames()
	if strings.Join(names, ",") != "diseased,fresh-produce,healthy" {
		t.Fatalf("unexpected sample names: %v", names)
	}

	for _, name := range names {
		asset, err := in.FromSample(name)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if asset.Origin != OriginSample || asset.Name != name {
			t.Fatalf("%s: unexpected asset: %+v", name, asset)
		}
		if asset.Width != sampleSize || asset.Height != sampleSize {
			t.Fatalf("%s: unexpected dimensions %dx%d", name, asset.Width, asset.Height)
		}
	}

	diseased, _ := in.FromSample("diseased")
	healthy, _ := in.FromSample("healthy")
	if diseased.SHA1 == healthy.SHA1 {
		t.Fatal("expected samples to differ")
	}

	if _, err := in.FromSample("mystery"); !errors.Is(err, ErrUnknownSample) {
		t.Fatalf("expected ErrUnknownSample, got %v", err)
	}
}

func TestParseOrigin(t *testing.T) {
	if ParseOrigin("drop") != OriginDrop {
		t.Fatal("expected drop origin")
	}
	if ParseOrigin("") != OriginUpload || ParseOrigin("sample") != OriginUpload {
		t.Fatal("expected unknown origins to map to upload")
	}
}
