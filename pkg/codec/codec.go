// Package codec turns captured MJPEG frames into files.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

const DefaultQuality = 75

// Encoder writes one frame of the given size to dst.
type Encoder interface {
	Encode(dst io.Writer, frame []byte, width, height int) error
}

// New returns a re-encoding encoder for quality in 1..100 and a passthrough
// one for 0.
func New(quality int) (Encoder, error) {
	switch {
	case quality == 0:
		return Passthrough{}, nil
	case quality < 1 || quality > 100:
		return nil, fmt.Errorf("codec: jpeg quality %d out of range", quality)
	}
	return Reencoder{Quality: quality}, nil
}

// Passthrough writes the frame as the camera compressed it, adding the
// Huffman tables when needed.
type Passthrough struct{}

func (Passthrough) Encode(dst io.Writer, frame []byte, _, _ int) error {
	data, err := NormalizeMJPEG(frame)
	if err != nil {
		return err
	}
	_, err = dst.Write(data)
	return err
}

// Reencoder decodes the frame and compresses it again at Quality.
type Reencoder struct {
	Quality int
}

func (r Reencoder) Encode(dst io.Writer, frame []byte, width, height int) error {
	data, err := NormalizeMJPEG(frame)
	if err != nil {
		return err
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("codec: decode frame: %w", err)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}
	return imaging.Encode(dst, img, imaging.JPEG, imaging.JPEGQuality(r.Quality))
}

// Thumbnail scales the JPEG in src to fit within maxWidth x maxHeight.
func Thumbnail(dst io.Writer, src io.Reader, maxWidth, maxHeight int) error {
	img, err := imaging.Decode(src)
	if err != nil {
		return fmt.Errorf("codec: decode image: %w", err)
	}
	thumb := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	return imaging.Encode(dst, thumb, imaging.JPEG, imaging.JPEGQuality(DefaultQuality))
}
