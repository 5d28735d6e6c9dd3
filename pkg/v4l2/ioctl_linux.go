//go:build linux

package v4l2

import (
	"bytes"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Kernel layouts from linux/videodev2.h. Field order and padding must match
// the C structs exactly, the request numbers below encode their sizes.

type rawCapability struct {
	Driver       [16]byte
	Card         [32]byte
	BusInfo      [32]byte
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
	Reserved     [3]uint32
}

type rawRect struct {
	Left   int32
	Top    int32
	Width  uint32
	Height uint32
}

type rawFract struct {
	Numerator   uint32
	Denominator uint32
}

type rawCropCap struct {
	Type        uint32
	Bounds      rawRect
	DefRect     rawRect
	PixelAspect rawFract
}

type rawCrop struct {
	Type uint32
	C    rawRect
}

type rawPixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
	Priv         uint32
	Flags        uint32
	YcbcrEnc     uint32
	Quantization uint32
	XferFunc     uint32
}

// rawFormat carries the fmt union; the union holds pointers so it is
// pointer aligned after the 32-bit type field.
type rawFormat struct {
	Type uint32
	_    [unsafe.Sizeof(uintptr(0)) - 4]byte
	Fmt  [200]byte
}

func (f *rawFormat) pix() *rawPixFormat {
	return (*rawPixFormat)(unsafe.Pointer(&f.Fmt[0]))
}

type rawControl struct {
	ID    uint32
	Value int32
}

type rawRequestBuffers struct {
	Count    uint32
	Type     uint32
	Memory   uint32
	Reserved [2]uint32
}

type rawTimecode struct {
	Type     uint32
	Flags    uint32
	Frames   uint8
	Seconds  uint8
	Minutes  uint8
	Hours    uint8
	UserBits [4]uint8
}

type rawBuffer struct {
	Index     uint32
	Type      uint32
	BytesUsed uint32
	Flags     uint32
	Field     uint32
	Timestamp unix.Timeval
	Timecode  rawTimecode
	Sequence  uint32
	Memory    uint32
	// m union: offset / userptr / planes / fd
	M         uintptr
	Length    uint32
	Reserved2 uint32
	Reserved  uint32
}

func (b *rawBuffer) offset() uint32 {
	return *(*uint32)(unsafe.Pointer(&b.M))
}

const (
	// [ dir(2) ][ size(14) ][ type(8) ][ nr(8) ]
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirShift) |
		(size << iocSizeShift) |
		(typ << iocTypeShift) |
		(nr << iocNRShift)
}

func ior(nr, size uintptr) uintptr  { return ioc(iocRead, 'V', nr, size) }
func iow(nr, size uintptr) uintptr  { return ioc(iocWrite, 'V', nr, size) }
func iowr(nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, 'V', nr, size) }

var (
	vidiocQueryCap  = ior(0, unsafe.Sizeof(rawCapability{}))
	vidiocSFmt      = iowr(5, unsafe.Sizeof(rawFormat{}))
	vidiocReqBufs   = iowr(8, unsafe.Sizeof(rawRequestBuffers{}))
	vidiocQueryBuf  = iowr(9, unsafe.Sizeof(rawBuffer{}))
	vidiocQBuf      = iowr(15, unsafe.Sizeof(rawBuffer{}))
	vidiocDQBuf     = iowr(17, unsafe.Sizeof(rawBuffer{}))
	vidiocStreamOn  = iow(18, unsafe.Sizeof(int32(0)))
	vidiocStreamOff = iow(19, unsafe.Sizeof(int32(0)))
	vidiocSCtrl     = iowr(28, unsafe.Sizeof(rawControl{}))
	vidiocCropCap   = iowr(58, unsafe.Sizeof(rawCropCap{}))
	vidiocSCrop     = iow(60, unsafe.Sizeof(rawCrop{}))
)

// ioctl issues a single request. EINTR is returned to the caller, which
// decides whether to retry.
func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
