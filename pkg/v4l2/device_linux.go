//go:build linux

package v4l2

import (
	"io/fs"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device is an open V4L2 capture node. Every method maps to exactly one
// system call and returns the raw unix.Errno on failure.
type Device struct {
	path string
	fd   int
}

// Stat reports the file mode of path, following symlinks such as the
// /dev/v4l/by-id aliases.
func Stat(path string) (fs.FileMode, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Mode(), nil
}

// Open opens path non-blocking so that DQBUF reports EAGAIN instead of
// sleeping when no buffer is ready.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &Device{path: path, fd: fd}, nil
}

func (d *Device) Name() string { return d.path }

func (d *Device) Fd() uintptr { return uintptr(d.fd) }

func (d *Device) QueryCapability() (Capability, error) {
	var raw rawCapability
	if err := ioctl(d.fd, vidiocQueryCap, unsafe.Pointer(&raw)); err != nil {
		return Capability{}, err
	}
	return Capability{
		Driver:       cString(raw.Driver[:]),
		Card:         cString(raw.Card[:]),
		BusInfo:      cString(raw.BusInfo[:]),
		Version:      raw.Version,
		Capabilities: raw.Capabilities,
		DeviceCaps:   raw.DeviceCaps,
	}, nil
}

// ResetCrop sets the capture crop rectangle to the driver default.
func (d *Device) ResetCrop() error {
	cropCap := rawCropCap{Type: BufTypeVideoCapture}
	if err := ioctl(d.fd, vidiocCropCap, unsafe.Pointer(&cropCap)); err != nil {
		return err
	}
	crop := rawCrop{Type: BufTypeVideoCapture, C: cropCap.DefRect}
	return ioctl(d.fd, vidiocSCrop, unsafe.Pointer(&crop))
}

// SetFormat pushes pf with VIDIOC_S_FMT and returns what the driver wrote
// back, which may differ from the request.
func (d *Device) SetFormat(pf PixFormat) (PixFormat, error) {
	f := rawFormat{Type: BufTypeVideoCapture}
	pix := f.pix()
	pix.Width = pf.Width
	pix.Height = pf.Height
	pix.PixelFormat = pf.PixelFormat
	pix.Field = pf.Field
	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, err
	}
	return PixFormat{
		Width:        pix.Width,
		Height:       pix.Height,
		PixelFormat:  pix.PixelFormat,
		Field:        pix.Field,
		BytesPerLine: pix.BytesPerLine,
		SizeImage:    pix.SizeImage,
	}, nil
}

func (d *Device) SetControl(id uint32, value int32) error {
	ctrl := rawControl{ID: id, Value: value}
	return ioctl(d.fd, vidiocSCtrl, unsafe.Pointer(&ctrl))
}

// RequestBuffers asks for count mmap buffers and returns how many the
// driver granted.
func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	req := rawRequestBuffers{
		Count:  count,
		Type:   BufTypeVideoCapture,
		Memory: MemoryMMAP,
	}
	if err := ioctl(d.fd, vidiocReqBufs, unsafe.Pointer(&req)); err != nil {
		return 0, err
	}
	return req.Count, nil
}

func (d *Device) QueryBuffer(index uint32) (BufferInfo, error) {
	buf := rawBuffer{
		Index:  index,
		Type:   BufTypeVideoCapture,
		Memory: MemoryMMAP,
	}
	if err := ioctl(d.fd, vidiocQueryBuf, unsafe.Pointer(&buf)); err != nil {
		return BufferInfo{}, err
	}
	return BufferInfo{Index: index, Offset: buf.offset(), Length: buf.Length}, nil
}

func (d *Device) Map(info BufferInfo) ([]byte, error) {
	return unix.Mmap(
		d.fd,
		int64(info.Offset),
		int(info.Length),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
}

func (d *Device) Unmap(b []byte) error {
	return unix.Munmap(b)
}

func (d *Device) Queue(index uint32) error {
	buf := rawBuffer{
		Index:  index,
		Type:   BufTypeVideoCapture,
		Memory: MemoryMMAP,
	}
	return ioctl(d.fd, vidiocQBuf, unsafe.Pointer(&buf))
}

func (d *Device) Dequeue() (Buffer, error) {
	buf := rawBuffer{
		Type:   BufTypeVideoCapture,
		Memory: MemoryMMAP,
	}
	if err := ioctl(d.fd, vidiocDQBuf, unsafe.Pointer(&buf)); err != nil {
		return Buffer{}, err
	}
	return Buffer{
		Index:     buf.Index,
		BytesUsed: buf.BytesUsed,
		Flags:     buf.Flags,
		Sequence:  buf.Sequence,
		Timestamp: time.Duration(buf.Timestamp.Nano()),
	}, nil
}

func (d *Device) StreamOn() error {
	typ := int32(BufTypeVideoCapture)
	return ioctl(d.fd, vidiocStreamOn, unsafe.Pointer(&typ))
}

func (d *Device) StreamOff() error {
	typ := int32(BufTypeVideoCapture)
	return ioctl(d.fd, vidiocStreamOff, unsafe.Pointer(&typ))
}

// WaitReady blocks in select(2) until a buffer can be dequeued or timeout
// elapses. It reports false on timeout.
func (d *Device) WaitReady(timeout time.Duration) (bool, error) {
	var fds unix.FdSet
	fds.Zero()
	fds.Set(d.fd)
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(d.fd+1, &fds, nil, nil, &tv)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Device) Close() error {
	return unix.Close(d.fd)
}
