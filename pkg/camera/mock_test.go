package camera

import (
	"io/fs"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"webcam-shutter/pkg/v4l2"
)

type waitResult struct {
	ready bool
	err   error
}

type dequeueResult struct {
	index uint32
	used  uint32
	err   error
}

// mockDevice is a scripted capture node. Zero values describe a healthy
// device granting what it is asked for.
type mockDevice struct {
	caps         v4l2.Capability
	capsErr      error
	cropErr      error
	formatErr    error
	reqErr       error
	granted      uint32
	bufLen       uint32
	mapFailAt    int
	unmapFailAt  int
	queueFailAt  map[uint32]error
	streamOnErr  error
	streamOffErr error
	closeErr     error

	waits     []waitResult
	waitSleep time.Duration
	dequeues  []dequeueResult
	// drained is returned for every dequeue once the script runs out,
	// instead of a half filled buffer.
	drained *dequeueResult

	// recorded
	calls       []string
	format      v4l2.PixFormat
	controls    map[uint32]int32
	requested   int
	mapCalls    int
	regions     [][]byte
	unmapped    []int
	queued      map[uint32]bool
	held        map[uint32]bool
	maxHeld     int
	streaming   bool
	streamOffs  int
	closed      int
	waitCalls   int
	dequeueCall int
}

func newMockDevice() *mockDevice {
	return &mockDevice{
		caps: v4l2.Capability{
			Driver:       "mock",
			Card:         "Mock Camera",
			Capabilities: v4l2.CapVideoCapture | v4l2.CapStreaming,
		},
		bufLen:      64,
		mapFailAt:   -1,
		unmapFailAt: -1,
		queueFailAt: map[uint32]error{},
		controls:    map[uint32]int32{},
		queued:      map[uint32]bool{},
		held:        map[uint32]bool{},
	}
}

func (m *mockDevice) record(call string) { m.calls = append(m.calls, call) }

func (m *mockDevice) QueryCapability() (v4l2.Capability, error) {
	m.record("QUERYCAP")
	return m.caps, m.capsErr
}

func (m *mockDevice) ResetCrop() error {
	m.record("S_CROP")
	return m.cropErr
}

func (m *mockDevice) SetFormat(pf v4l2.PixFormat) (v4l2.PixFormat, error) {
	m.record("S_FMT")
	if m.formatErr != nil {
		return v4l2.PixFormat{}, m.formatErr
	}
	m.format = pf
	return pf, nil
}

func (m *mockDevice) SetControl(id uint32, value int32) error {
	m.record("S_CTRL")
	m.controls[id] = value
	return nil
}

func (m *mockDevice) RequestBuffers(count uint32) (uint32, error) {
	m.record("REQBUFS")
	m.requested++
	if m.reqErr != nil {
		return 0, m.reqErr
	}
	if m.granted == 0 {
		return count, nil
	}
	return m.granted, nil
}

func (m *mockDevice) QueryBuffer(index uint32) (v4l2.BufferInfo, error) {
	m.record("QUERYBUF")
	return v4l2.BufferInfo{Index: index, Offset: index * m.bufLen, Length: m.bufLen}, nil
}

func (m *mockDevice) Map(info v4l2.BufferInfo) ([]byte, error) {
	m.record("mmap")
	m.mapCalls++
	if int(info.Index) == m.mapFailAt {
		return nil, unix.ENOMEM
	}
	b := make([]byte, info.Length)
	for i := range b {
		b[i] = byte(info.Index + 1)
	}
	m.regions = append(m.regions, b)
	return b, nil
}

func (m *mockDevice) Unmap(b []byte) error {
	m.record("munmap")
	for i, r := range m.regions {
		if len(r) > 0 && len(b) > 0 && &r[0] == &b[0] {
			m.unmapped = append(m.unmapped, i)
			if i == m.unmapFailAt {
				return unix.EINVAL
			}
			return nil
		}
	}
	return unix.EINVAL
}

func (m *mockDevice) Queue(index uint32) error {
	m.record("QBUF")
	if err := m.queueFailAt[index]; err != nil {
		return err
	}
	if m.queued[index] {
		return unix.EINVAL
	}
	m.queued[index] = true
	delete(m.held, index)
	return nil
}

func (m *mockDevice) Dequeue() (v4l2.Buffer, error) {
	m.record("DQBUF")
	m.dequeueCall++
	var r dequeueResult
	if len(m.dequeues) > 0 {
		r, m.dequeues = m.dequeues[0], m.dequeues[1:]
	} else if m.drained != nil {
		r = *m.drained
		r.index = m.lowestQueued()
	} else {
		r = dequeueResult{index: m.lowestQueued(), used: m.bufLen / 2}
	}
	if r.err != nil {
		return v4l2.Buffer{}, r.err
	}
	if !m.streaming {
		return v4l2.Buffer{}, unix.EINVAL
	}
	if r.index < uint32(len(m.regions)) {
		if !m.queued[r.index] {
			return v4l2.Buffer{}, unix.EINVAL
		}
		delete(m.queued, r.index)
		m.held[r.index] = true
		m.maxHeld = max(m.maxHeld, len(m.held))
	}
	return v4l2.Buffer{Index: r.index, BytesUsed: r.used, Sequence: uint32(m.dequeueCall)}, nil
}

func (m *mockDevice) lowestQueued() uint32 {
	for i := uint32(0); i < uint32(len(m.regions)); i++ {
		if m.queued[i] {
			return i
		}
	}
	return 0
}

func (m *mockDevice) StreamOn() error {
	m.record("STREAMON")
	if m.streamOnErr != nil {
		return m.streamOnErr
	}
	m.streaming = true
	return nil
}

func (m *mockDevice) StreamOff() error {
	m.record("STREAMOFF")
	m.streamOffs++
	if m.streamOffErr != nil {
		return m.streamOffErr
	}
	m.streaming = false
	m.queued = map[uint32]bool{}
	m.held = map[uint32]bool{}
	return nil
}

func (m *mockDevice) WaitReady(timeout time.Duration) (bool, error) {
	m.record("select")
	m.waitCalls++
	if len(m.waits) == 0 {
		return true, nil
	}
	r := m.waits[0]
	m.waits = m.waits[1:]
	if !r.ready && r.err == nil {
		time.Sleep(min(timeout, m.waitSleep))
	}
	return r.ready, r.err
}

func (m *mockDevice) Close() error {
	m.record("close")
	m.closed++
	return m.closeErr
}

type mockDriver struct {
	mode    fs.FileMode
	statErr error
	openErr error
	dev     *mockDevice
	opens   int
}

func newMockDriver(dev *mockDevice) *mockDriver {
	return &mockDriver{mode: fs.ModeDevice | fs.ModeCharDevice | 0660, dev: dev}
}

func (d *mockDriver) Stat(string) (fs.FileMode, error) {
	return d.mode, d.statErr
}

func (d *mockDriver) Open(string) (Device, error) {
	d.opens++
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.dev, nil
}

func openMock(t *testing.T, dev *mockDevice, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithDriver(newMockDriver(dev)), WithLogger(zap.NewNop().Sugar())}, opts...)
	s, err := Open("/dev/video0", 640, 480, opts...)
	checkErr(t, err)
	return s
}

func checkErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func countCalls(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}
