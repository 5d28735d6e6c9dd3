// Package api is the HTTP control surface of the daemon.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vincent-vinf/go-jsend"
	"go.uber.org/zap"

	"webcam-shutter/pkg/camera"
	"webcam-shutter/pkg/codec"
	"webcam-shutter/pkg/schedule"
	"webcam-shutter/pkg/storage"
	"webcam-shutter/pkg/utils"
	"webcam-shutter/pkg/utils/ps"
)

const (
	webDavStart    = "start"
	webDavShutdown = "shutdown"

	MaxBurst         = 100
	DefaultThumbSize = 160
)

type Shooter interface {
	Shoot(ctx context.Context, n int, c camera.Consumer) (int, error)
	Status() camera.Status
}

type WebDAV interface {
	Start() (string, error)
	Stop() error
	IsRunning() bool
}

type Option func(*Server)

func WithWebDAV(w WebDAV) Option {
	return func(s *Server) { s.dav = w }
}

func WithScheduler(sch *schedule.Scheduler) Option {
	return func(s *Server) { s.sched = sch }
}

func WithThumbSize(px int) Option {
	return func(s *Server) { s.thumbSize = px }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Server) { s.logger = l }
}

type Server struct {
	shooter   Shooter
	store     *storage.Store
	dav       WebDAV
	sched     *schedule.Scheduler
	thumbSize int
	logger    *zap.SugaredLogger
}

type Status struct {
	Camera   camera.Status    `json:"camera"`
	Store    storage.Info     `json:"store"`
	Disk     *ps.Disk         `json:"disk,omitempty"`
	WebDAV   bool             `json:"webdav"`
	Schedule *schedule.Status `json:"schedule,omitempty"`
}

func New(shooter Shooter, store *storage.Store, opts ...Option) *Server {
	s := &Server{
		shooter:   shooter,
		store:     store,
		thumbSize: DefaultThumbSize,
		logger:    utils.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(utils.Cors())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("page not found"))
	})

	apiRouter := r.Group("/api")
	apiRouter.GET("/status", s.status)
	apiRouter.PUT("/webdav", s.ctlWebdav)

	shotRouter := apiRouter.Group("/shots")
	shotRouter.POST("", s.shoot)
	shotRouter.GET("", s.listShots)
	shotRouter.GET("/latest", s.latestShot)
	shotRouter.GET("/:name", s.getShot)
	shotRouter.GET("/:name/thumb", s.getThumb)

	return r
}

func (s *Server) shoot(c *gin.Context) {
	count := 1
	if q := c.Query("count"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > MaxBurst {
			c.JSON(http.StatusBadRequest, jsend.SimpleErr(fmt.Sprintf("count must be between 1 and %d", MaxBurst)))
			return
		}
		count = n
	}

	burst := s.store.NewBurst()
	n, err := s.shooter.Shoot(c.Request.Context(), count, burst)
	if err != nil {
		s.logger.Errorf("api: burst %s stopped after %d frame(s): %s", burst.ID, n, err)
		c.JSON(captureErrStatus(err), jsend.SimpleErr(err.Error()))
		return
	}

	c.JSON(http.StatusOK, jsend.Success(burst.Result(n)))
}

func captureErrStatus(err error) int {
	switch {
	case errors.Is(err, camera.ErrCaptureTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, camera.ErrNotFound),
		errors.Is(err, camera.ErrOpenFailed),
		errors.Is(err, camera.ErrUnsupportedDevice):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		// client went away
		return 499
	}
	return http.StatusInternalServerError
}

func (s *Server) listShots(c *gin.Context) {
	files, err := s.store.List()
	if err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(files))
}

func (s *Server) latestShot(c *gin.Context) {
	name, err := s.store.Latest()
	if errors.Is(err, storage.ErrNoShots) {
		c.JSON(http.StatusNotFound, jsend.SimpleErr(err.Error()))
		return
	}
	if err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(name))
}

func (s *Server) getShot(c *gin.Context) {
	p, ok := s.shotPath(c)
	if !ok {
		return
	}
	c.File(p)
}

func (s *Server) getThumb(c *gin.Context) {
	p, ok := s.shotPath(c)
	if !ok {
		return
	}
	f, err := os.Open(p)
	if err != nil {
		internalErr(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "image/jpeg")
	if err := codec.Thumbnail(c.Writer, f, s.thumbSize, s.thumbSize); err != nil {
		internalErr(c, err)
	}
}

func (s *Server) shotPath(c *gin.Context) (string, bool) {
	p, err := s.store.Path(c.Param("name"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("shot not found"))
		return "", false
	}
	if err != nil {
		internalErr(c, err)
		return "", false
	}
	return p, true
}

func (s *Server) status(c *gin.Context) {
	info, err := s.store.Info()
	if err != nil {
		internalErr(c, err)
		return
	}
	st := Status{
		Camera: s.shooter.Status(),
		Store:  info,
	}
	if d, err := ps.DiskUsage(s.store.Root()); err == nil {
		st.Disk = &d
	} else {
		s.logger.Warnf("api: disk usage: %s", err)
	}
	if s.dav != nil {
		st.WebDAV = s.dav.IsRunning()
	}
	if s.sched != nil {
		sch := s.sched.Status()
		st.Schedule = &sch
	}

	c.JSON(http.StatusOK, jsend.Success(st))
}

func (s *Server) ctlWebdav(c *gin.Context) {
	if s.dav == nil {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("webdav is not configured"))
		return
	}
	switch c.Query("op") {
	case webDavStart:
		addr, err := s.dav.Start()
		if err != nil {
			internalErr(c, err)
			return
		}
		c.JSON(http.StatusOK, jsend.Success(addr))
	case webDavShutdown:
		if err := s.dav.Stop(); err != nil {
			internalErr(c, err)
			return
		}
		c.JSON(http.StatusOK, jsend.Success(nil))
	default:
		c.JSON(http.StatusBadRequest, jsend.SimpleErr("unknown operation"))
	}
}

func internalErr(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
}
