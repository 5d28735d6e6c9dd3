//go:build !linux

package v4l2

import (
	"io/fs"
	"os"
	"time"
)

// Device is unavailable outside Linux; Open always fails.
type Device struct{}

func Stat(path string) (fs.FileMode, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Mode(), nil
}

func Open(string) (*Device, error) { return nil, ErrUnsupportedPlatform }

func (d *Device) Name() string                           { return "" }
func (d *Device) Fd() uintptr                            { return ^uintptr(0) }
func (d *Device) QueryCapability() (Capability, error)   { return Capability{}, ErrUnsupportedPlatform }
func (d *Device) ResetCrop() error                       { return ErrUnsupportedPlatform }
func (d *Device) SetFormat(PixFormat) (PixFormat, error) { return PixFormat{}, ErrUnsupportedPlatform }
func (d *Device) SetControl(uint32, int32) error         { return ErrUnsupportedPlatform }
func (d *Device) RequestBuffers(uint32) (uint32, error)  { return 0, ErrUnsupportedPlatform }
func (d *Device) QueryBuffer(uint32) (BufferInfo, error) { return BufferInfo{}, ErrUnsupportedPlatform }
func (d *Device) Map(BufferInfo) ([]byte, error)         { return nil, ErrUnsupportedPlatform }
func (d *Device) Unmap([]byte) error                     { return ErrUnsupportedPlatform }
func (d *Device) Queue(uint32) error                     { return ErrUnsupportedPlatform }
func (d *Device) Dequeue() (Buffer, error)               { return Buffer{}, ErrUnsupportedPlatform }
func (d *Device) StreamOn() error                        { return ErrUnsupportedPlatform }
func (d *Device) StreamOff() error                       { return ErrUnsupportedPlatform }
func (d *Device) WaitReady(time.Duration) (bool, error)  { return false, ErrUnsupportedPlatform }
func (d *Device) Close() error                           { return ErrUnsupportedPlatform }
