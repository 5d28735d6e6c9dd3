// Package video packs a burst of frames into an MJPEG AVI file.
package video

import (
	"fmt"

	"github.com/icza/mjpeg"

	"webcam-shutter/pkg/camera"
	"webcam-shutter/pkg/codec"
)

// Builder is a camera.Consumer writing every frame into one AVI file.
type Builder struct {
	path   string
	width  int
	height int
	fps    int

	cnt int
	aw  mjpeg.AviWriter
}

func NewBuilder(path string, width, height, fps int) (*Builder, error) {
	if fps < 1 {
		return nil, fmt.Errorf("video: fps must be positive, got %d", fps)
	}
	aw, err := mjpeg.New(path, int32(width), int32(height), int32(fps))
	if err != nil {
		return nil, err
	}

	return &Builder{
		path:   path,
		width:  width,
		height: height,
		fps:    fps,
		aw:     aw,
	}, nil
}

// Persist appends f. The frame bytes are copied by the writer before it
// returns.
func (b *Builder) Persist(f camera.Frame) error {
	if f.Width != b.width || f.Height != b.height {
		return fmt.Errorf("video: frame is %dx%d, stream is %dx%d", f.Width, f.Height, b.width, b.height)
	}
	data, err := codec.NormalizeMJPEG(f.Data)
	if err != nil {
		return err
	}
	if err = b.aw.AddFrame(data); err != nil {
		return err
	}
	b.cnt++

	return nil
}

func (b *Builder) Close() error {
	return b.aw.Close()
}

func (b *Builder) GetCnt() int {
	return b.cnt
}

func (b *Builder) Path() string {
	return b.path
}
