// Package storage keeps captured shots on disk.
//
// Layout under the root directory:
//
//	shots/<20060102_150405.000>.jpg
//	shots/info.json
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"webcam-shutter/pkg/camera"
	"webcam-shutter/pkg/clock"
	"webcam-shutter/pkg/codec"
	"webcam-shutter/pkg/storage/consts"
	"webcam-shutter/pkg/storage/util"
	"webcam-shutter/pkg/types"
	"webcam-shutter/pkg/utils"
)

var (
	ErrNotFound = errors.New("shot not found")
	ErrNoShots  = errors.New("no shots yet")
)

type Info struct {
	Count     int       `json:"count"`
	Latest    string    `json:"latest"`
	LastBurst string    `json:"lastBurst,omitempty"`
	UpdateAt  time.Time `json:"updateAt"`
}

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

func WithEncoder(e codec.Encoder) Option {
	return func(s *Store) {
		s.enc = e
	}
}

// WithExt sets the file extension of new shots, ".jpg" by default.
func WithExt(ext string) Option {
	return func(s *Store) {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.ext = ext
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Store writes frames as files and is a camera.Consumer. It is safe for
// concurrent use.
type Store struct {
	mu sync.Mutex

	root   string
	dir    string
	clock  clock.Clock
	enc    codec.Encoder
	ext    string
	logger *zap.SugaredLogger
}

func New(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("storage path can not be empty")
	}
	s := &Store{
		root:   root,
		dir:    filepath.Join(root, consts.DefaultShotsDir),
		clock:  clock.System{},
		enc:    codec.Passthrough{},
		ext:    consts.DefaultImageExt,
		logger: utils.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := util.MkdirAll(s.dir); err != nil {
		return nil, err
	}
	if err := s.checkInitInfo(); err != nil {
		return nil, err
	}

	return s, nil
}

// Root is the directory exported over WebDAV.
func (s *Store) Root() string { return s.root }

// Persist saves one frame under a name derived from the current time.
func (s *Store) Persist(f camera.Frame) error {
	_, err := s.save(f, "")
	return err
}

func (s *Store) save(f camera.Frame, burst string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.loadInfo()
	if err != nil {
		return "", err
	}

	name, file, err := s.create(s.clock.Now())
	if err != nil {
		return "", err
	}
	p := file.Name()
	err = s.enc.Encode(file, f.Data, f.Width, f.Height)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(p)
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	info.Count++
	info.Latest = name
	if burst != "" {
		info.LastBurst = burst
	}
	if err = s.dumpInfo(info); err != nil {
		return "", err
	}
	if st, err := os.Stat(p); err == nil {
		s.logger.Debugf("storage: saved %s (%s)", name, humanize.Bytes(uint64(st.Size())))
	}

	return name, nil
}

// create opens a new file named after t. Shots taken within the same
// millisecond get a _1, _2... suffix.
func (s *Store) create(t time.Time) (string, *os.File, error) {
	base := t.Format(consts.NameLayout)
	name := base + s.ext
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, consts.DefaultFilePerm)
		if err == nil {
			return name, f, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", nil, err
		}
		name = fmt.Sprintf("%s_%d%s", base, i, s.ext)
	}
}

// List returns the shots oldest first.
func (s *Store) List() ([]types.File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	res := make([]types.File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), s.ext) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// removed while listing
			continue
		}
		res = append(res, types.File{
			Name:    e.Name(),
			Size:    humanize.Bytes(uint64(fi.Size())),
			Bytes:   fi.Size(),
			ModTime: fi.ModTime(),
		})
	}

	return res, nil
}

func (s *Store) Latest() (string, error) {
	info, err := s.Info()
	if err != nil {
		return "", err
	}
	if info.Latest == "" {
		return "", ErrNoShots
	}

	return info.Latest, nil
}

// Path returns the file path of the shot called name.
func (s *Store) Path(name string) (string, error) {
	if !strings.HasSuffix(name, s.ext) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	p, err := util.Join(s.dir, name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, err)
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return p, nil
}

func (s *Store) Info() (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.loadInfo()
	if err != nil {
		return Info{}, err
	}
	return *info, nil
}

func (s *Store) loadInfo() (*Info, error) {
	data, err := os.ReadFile(s.infoPath())
	if err != nil {
		return nil, fmt.Errorf("read shot info err: %w", err)
	}
	info := &Info{}
	if err = json.Unmarshal(data, info); err != nil {
		return nil, fmt.Errorf("unmarshal shot info err: %w", err)
	}

	return info, nil
}

func (s *Store) dumpInfo(info *Info) error {
	info.UpdateAt = time.Now()
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}

	return os.WriteFile(s.infoPath(), data, consts.DefaultFilePerm)
}

func (s *Store) checkInitInfo() error {
	_, err := os.Stat(s.infoPath())
	if errors.Is(err, fs.ErrNotExist) {
		return s.dumpInfo(&Info{})
	}

	return err
}

func (s *Store) infoPath() string {
	return filepath.Join(s.dir, consts.DefaultInfoFile)
}

// Burst collects the shots of one capture request.
type Burst struct {
	ID    string
	s     *Store
	files []string
}

func (s *Store) NewBurst() *Burst {
	return &Burst{ID: uuid.NewString(), s: s}
}

func (b *Burst) Persist(f camera.Frame) error {
	name, err := b.s.save(f, b.ID)
	if err != nil {
		return err
	}
	b.files = append(b.files, name)
	return nil
}

func (b *Burst) Files() []string { return b.files }

func (b *Burst) Result(captured int) types.Burst {
	return types.Burst{ID: b.ID, Files: b.files, Captured: captured}
}
