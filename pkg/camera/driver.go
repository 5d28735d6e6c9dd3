package camera

import (
	"io/fs"
	"time"

	"webcam-shutter/pkg/v4l2"
)

// Device is the set of driver requests a Session issues against an open
// capture node. *v4l2.Device implements it; tests substitute a fake.
type Device interface {
	QueryCapability() (v4l2.Capability, error)
	ResetCrop() error
	SetFormat(v4l2.PixFormat) (v4l2.PixFormat, error)
	SetControl(id uint32, value int32) error
	RequestBuffers(count uint32) (uint32, error)
	QueryBuffer(index uint32) (v4l2.BufferInfo, error)
	Map(v4l2.BufferInfo) ([]byte, error)
	Unmap([]byte) error
	Queue(index uint32) error
	Dequeue() (v4l2.Buffer, error)
	StreamOn() error
	StreamOff() error
	WaitReady(timeout time.Duration) (bool, error)
	Close() error
}

// Driver locates and opens devices.
type Driver interface {
	Stat(path string) (fs.FileMode, error)
	Open(path string) (Device, error)
}

type linuxDriver struct{}

func (linuxDriver) Stat(path string) (fs.FileMode, error) {
	return v4l2.Stat(path)
}

func (linuxDriver) Open(path string) (Device, error) {
	d, err := v4l2.Open(path)
	if err != nil {
		return nil, err
	}
	return d, nil
}
