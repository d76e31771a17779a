package signature

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func canvas(fill color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, fill)
		}
	}
	return img
}

func TestDecodeRejectsBlankCanvas(t *testing.T) {
	for name, img := range map[string]image.Image{
		"white":       canvas(color.White),
		"transparent": image.NewRGBA(image.Rect(0, 0, 40, 20)),
	} {
		if _, err := Decode(encodePNG(t, img)); !errors.Is(err, ErrEmpty) {
			t.Fatalf("%s: expected ErrEmpty, got %v", name, err)
		}
	}
}

func TestDecodeAcceptsStroke(t *testing.T) {
	img := canvas(color.White)
	for x := 5; x < 35; x++ {
		img.Set(x, 10, color.Black)
	}
	data := encodePNG(t, img)
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ContentType != "image/png" || got.Width != 40 || got.Height != 20 || got.Extension() != ".png" {
		t.Fatalf("unexpected image %+v", got)
	}
}

func TestParseDataURL(t *testing.T) {
	img := canvas(color.White)
	img.Set(3, 3, color.RGBA{0, 0, 255, 255})
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(encodePNG(t, img))
	if _, err := ParseDataURL(url); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := ParseDataURL(""); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected empty input to be ErrEmpty, got %v", err)
	}
	if _, err := ParseDataURL("data:image/png;base64,@@@"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected bad base64 to be ErrInvalid, got %v", err)
	}
	if _, err := ParseDataURL("hello"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected non data url to be ErrInvalid, got %v", err)
	}
	text := "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hi there"))
	if _, err := ParseDataURL(text); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected text payload to be ErrInvalid, got %v", err)
	}
}

// withDimensions rewrites the IHDR chunk of a PNG to declare width x height
// and fixes up its checksum. The pixel data is left as it was.
func withDimensions(t *testing.T, data []byte, width, height uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	// 8-byte signature, then length(4) "IHDR"(4) data(13) crc(4).
	if string(out[12:16]) != "IHDR" {
		t.Fatalf("unexpected first chunk %q", out[12:16])
	}
	binary.BigEndian.PutUint32(out[16:20], width)
	binary.BigEndian.PutUint32(out[20:24], height)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDecodeRejectsOversizedDimensions(t *testing.T) {
	img := canvas(color.White)
	img.Set(1, 1, color.Black)
	huge := withDimensions(t, encodePNG(t, img), 12000, 12000)
	if _, err := Decode(huge); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	wide := withDimensions(t, encodePNG(t, img), MaxSide+1, 1)
	if _, err := Decode(wide); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge for a wide image, got %v", err)
	}
}
