package camera

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"

	"webcam-shutter/pkg/v4l2"
)

// Owner tells which side may touch a slot's memory.
type Owner int

const (
	KernelOwned Owner = iota
	UserOwned
)

func (o Owner) String() string {
	if o == UserOwned {
		return "user"
	}
	return "kernel"
}

// Slot is one mapped driver buffer.
type Slot struct {
	index uint32
	data  []byte
	owner Owner
	used  int
}

func (s *Slot) Index() int { return int(s.index) }

func (s *Slot) Owner() Owner { return s.owner }

// Len is the size of the mapping, not of the last frame.
func (s *Slot) Len() int { return len(s.data) }

// Bytes returns the part of the mapping filled by the last frame. The slot
// must be user owned.
func (s *Slot) Bytes() []byte {
	if s.owner != UserOwned {
		panic(fmt.Sprintf("camera: read of buffer %d while owned by the kernel", s.index))
	}
	return s.data[:s.used]
}

// pool is the fixed ring of mapped buffers of one session.
type pool struct {
	s     *Session
	slots []*Slot
	// lent is the single slot handed out by dequeue and not yet queued back.
	lent *Slot
}

// mapPool requests count buffers and maps every one the driver grants. If any
// mapping fails, the ones already made are unmapped before returning.
func mapPool(s *Session, count uint32) (*pool, error) {
	var granted uint32
	err := retryInterrupted(func() (err error) {
		granted, err = s.dev.RequestBuffers(count)
		return err
	})
	if err != nil {
		return nil, s.fail("request buffers (VIDIOC_REQBUFS)", ErrRequestBuffers, -1, err)
	}
	if granted < MinBufferCount {
		return nil, s.fail("request buffers (VIDIOC_REQBUFS)", ErrInsufficientBuffers, -1,
			fmt.Errorf("requested %d, granted %d", count, granted))
	}

	p := &pool{s: s, slots: make([]*Slot, 0, granted)}
	var total uint64
	for i := uint32(0); i < granted; i++ {
		var info v4l2.BufferInfo
		err := retryInterrupted(func() (err error) {
			info, err = s.dev.QueryBuffer(i)
			return err
		})
		if err != nil {
			return nil, multierr.Append(
				s.fail("query buffer (VIDIOC_QUERYBUF)", ErrMapFailed, int(i), err),
				p.release(),
			)
		}
		data, err := s.dev.Map(info)
		if err != nil {
			return nil, multierr.Append(
				s.fail("mmap", ErrMapFailed, int(i), err),
				p.release(),
			)
		}
		p.slots = append(p.slots, &Slot{index: i, data: data})
		total += uint64(len(data))
	}
	s.logger.Infof("camera: %s mapped %d buffers (%s)", s.path, granted, humanize.Bytes(total))

	return p, nil
}

func (p *pool) size() int { return len(p.slots) }

// queue hands slot to the driver. The ownership tag only changes when the
// driver accepts it.
func (p *pool) queue(slot *Slot) error {
	err := retryInterrupted(func() error {
		return p.s.dev.Queue(slot.index)
	})
	if err != nil {
		return err
	}
	slot.owner = KernelOwned
	slot.used = 0
	if p.lent == slot {
		p.lent = nil
	}
	return nil
}

// dequeue takes the next filled buffer from the driver. Errors from the
// driver are returned unwrapped so the caller can classify them.
func (p *pool) dequeue() (*Slot, v4l2.Buffer, error) {
	if p.lent != nil {
		panic(fmt.Sprintf("camera: dequeue while buffer %d is still held", p.lent.index))
	}
	var buf v4l2.Buffer
	err := retryInterrupted(func() (err error) {
		buf, err = p.s.dev.Dequeue()
		return err
	})
	if err != nil {
		return nil, buf, err
	}
	if int(buf.Index) >= len(p.slots) {
		return nil, buf, p.s.fail("dequeue buffer (VIDIOC_DQBUF)", ErrInvalidBuffer, int(buf.Index),
			fmt.Errorf("index %d outside %d mapped buffers", buf.Index, len(p.slots)))
	}
	slot := p.slots[buf.Index]
	slot.owner = UserOwned
	slot.used = min(int(buf.BytesUsed), len(slot.data))
	p.lent = slot

	return slot, buf, nil
}

// reclaim marks every slot as returned after STREAMOFF emptied the queues.
func (p *pool) reclaim() {
	for _, slot := range p.slots {
		slot.owner = KernelOwned
		slot.used = 0
	}
	p.lent = nil
}

// release unmaps every slot, continuing past failures, and empties the
// table.
func (p *pool) release() error {
	var err error
	for _, slot := range p.slots {
		if uerr := p.s.dev.Unmap(slot.data); uerr != nil {
			err = multierr.Append(err, p.s.fail("munmap", ErrUnmapFailed, int(slot.index), uerr))
		}
		slot.data = nil
	}
	p.slots = nil
	p.lent = nil
	return err
}

func (p *pool) owners() []Owner {
	res := make([]Owner, len(p.slots))
	for i, slot := range p.slots {
		res[i] = slot.owner
	}
	return res
}
