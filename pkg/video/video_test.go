package video

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"webcam-shutter/pkg/camera"
)

func jpegFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 200, A: 255})
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestBuilder(t *testing.T) {
	p := filepath.Join(t.TempDir(), "burst.avi")
	b, err := NewBuilder(p, 32, 24, 5)
	if err != nil {
		t.Fatal(err)
	}

	data := jpegFrame(t, 32, 24)
	for i := 0; i < 3; i++ {
		if err := b.Persist(camera.Frame{Index: i, Width: 32, Height: 24, Data: data}); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Persist(camera.Frame{Width: 64, Height: 48, Data: data}); err == nil {
		t.Fatal("expected size mismatch error")
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if b.GetCnt() != 3 {
		t.Fatalf("cnt = %d", b.GetCnt())
	}

	avi, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(avi, []byte("RIFF")) || !bytes.Contains(avi, []byte("AVI ")) {
		t.Fatal("not an avi file")
	}
}
