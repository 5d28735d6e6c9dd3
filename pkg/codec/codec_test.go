package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 40, G: 160, B: 90, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// stripDHT drops every Huffman table segment before the scan, which is what
// a UVC camera sends.
func stripDHT(t *testing.T, data []byte) []byte {
	t.Helper()
	out := append([]byte(nil), data[:2]...)
	for i := 2; i < len(data); {
		m := data[i+1]
		if m == markerSOS {
			return append(out, data[i:]...)
		}
		n := 2 + int(binary.BigEndian.Uint16(data[i+2:]))
		if m != markerDHT {
			out = append(out, data[i:i+n]...)
		}
		i += n
	}
	t.Fatal("no scan found")
	return nil
}

func TestDHTSegment(t *testing.T) {
	if len(dhtSegment) != 420 {
		t.Fatalf("segment is %d bytes, want 420", len(dhtSegment))
	}
	if l := binary.BigEndian.Uint16(dhtSegment[2:]); l != 0x1a2 {
		t.Fatalf("segment length field = %#x", l)
	}
	for _, tt := range []struct {
		bits   [16]byte
		values []byte
	}{
		{dcLumaBits, dcValues},
		{dcChromaBits, dcValues},
		{acLumaBits, acLumaValues},
		{acChromaBits, acChromaValues},
	} {
		sum := 0
		for _, b := range tt.bits {
			sum += int(b)
		}
		if sum != len(tt.values) {
			t.Fatalf("bit counts add up to %d, %d values", sum, len(tt.values))
		}
	}
}

func TestNormalizeMJPEG(t *testing.T) {
	full := testJPEG(t, 32, 16)
	bare := stripDHT(t, full)
	if _, err := imaging.Decode(bytes.NewReader(bare)); err == nil {
		t.Fatal("frame without tables should not decode")
	}

	fixed, err := NormalizeMJPEG(bare)
	if err != nil {
		t.Fatal(err)
	}
	if len(fixed) != len(bare)+len(dhtSegment) {
		t.Fatalf("fixed frame is %d bytes", len(fixed))
	}
	img, err := imaging.Decode(bytes.NewReader(fixed))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, 32, 16) {
		t.Fatalf("bounds = %v", img.Bounds())
	}

	same, err := NormalizeMJPEG(full)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(same, full) {
		t.Fatal("frame with tables must pass through unchanged")
	}
}

func TestNormalizeNotJPEG(t *testing.T) {
	for _, in := range [][]byte{nil, []byte("RIFF...."), {0xff, 0xd8, 0x00, 0x00}} {
		if _, err := NormalizeMJPEG(in); !errors.Is(err, ErrNotJPEG) {
			t.Fatalf("%x: err = %v, want ErrNotJPEG", in, err)
		}
	}
}

func TestEncoders(t *testing.T) {
	frame := stripDHT(t, testJPEG(t, 64, 48))

	if _, err := New(101); err == nil {
		t.Fatal("expected quality error")
	}
	for _, q := range []int{0, 50} {
		enc, err := New(q)
		if err != nil {
			t.Fatal(err)
		}
		var buf bytes.Buffer
		if err := enc.Encode(&buf, frame, 64, 48); err != nil {
			t.Fatalf("quality %d: %s", q, err)
		}
		img, err := imaging.Decode(&buf)
		if err != nil {
			t.Fatalf("quality %d: %s", q, err)
		}
		if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
			t.Fatalf("quality %d: bounds %v", q, img.Bounds())
		}
	}
}

func TestThumbnail(t *testing.T) {
	var buf bytes.Buffer
	if err := Thumbnail(&buf, bytes.NewReader(testJPEG(t, 640, 480)), 160, 160); err != nil {
		t.Fatal(err)
	}
	img, err := imaging.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 160 || img.Bounds().Dy() != 120 {
		t.Fatalf("thumbnail bounds = %v", img.Bounds())
	}
}
