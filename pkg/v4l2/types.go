package v4l2

import (
	"errors"
	"strings"
	"time"
)

// Capability bits from linux/videodev2.h.
const (
	CapVideoCapture uint32 = 0x00000001
	CapStreaming    uint32 = 0x04000000
	CapDeviceCaps   uint32 = 0x80000000
)

const (
	BufTypeVideoCapture uint32 = 1
	MemoryMMAP          uint32 = 1
	FieldAny            uint32 = 0
)

var (
	PixelFmtMJPEG = FourCC("MJPG")
	PixelFmtJPEG  = FourCC("JPEG")
)

var ErrUnsupportedPlatform = errors.New("v4l2: not supported on this platform")

// FourCC packs a four character code the way the kernel does.
func FourCC(code string) uint32 {
	var b [4]byte
	copy(b[:], code)
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func FourCCString(v uint32) string {
	b := []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	return strings.TrimRight(string(b), "\x00 ")
}

type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
}

// Caps returns the capability set of the opened node, preferring the
// per-node device caps when the driver fills them in.
func (c Capability) Caps() uint32 {
	if c.Capabilities&CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

func (c Capability) IsVideoCaptureSupported() bool {
	return c.Caps()&CapVideoCapture != 0
}

func (c Capability) IsStreamingSupported() bool {
	return c.Caps()&CapStreaming != 0
}

type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
}

// BufferInfo describes a kernel buffer as returned by VIDIOC_QUERYBUF.
type BufferInfo struct {
	Index  uint32
	Offset uint32
	Length uint32
}

// Buffer is the result of a successful VIDIOC_DQBUF.
type Buffer struct {
	Index     uint32
	BytesUsed uint32
	Flags     uint32
	Sequence  uint32
	// Timestamp is taken by the driver, usually on the monotonic clock.
	Timestamp time.Duration
}
