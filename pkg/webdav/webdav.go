// Package webdav exports the shot directory read-write over WebDAV on demand.
package webdav

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"webcam-shutter/pkg/utils"
)

type Webdav struct {
	lock   sync.Mutex
	port   int
	dir    string
	svr    *http.Server
	addr   string
	logger *zap.SugaredLogger
}

func New(port int, dir string) *Webdav {
	return &Webdav{
		port:   port,
		dir:    dir,
		logger: utils.GetLogger(),
	}
}

// Start begins serving and returns the listen address. Starting a running
// server returns its address.
func (w *Webdav) Start() (string, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.svr != nil {
		return w.addr, nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", w.port))
	if err != nil {
		return "", fmt.Errorf("webdav listen: %w", err)
	}
	svr := &http.Server{Handler: Handler(w.dir, w.logger)}
	go func() {
		if err := svr.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Errorf("webdav server err: %s", err)
		}
	}()
	w.svr = svr
	w.addr = ln.Addr().String()
	w.logger.Infof("webdav: serving %s on %s", w.dir, w.addr)

	return w.addr, nil
}

// Stop shuts the server down. Stopping a stopped server is a no-op.
func (w *Webdav) Stop() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.svr == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := w.svr.Shutdown(ctx)
	w.svr = nil
	w.addr = ""
	w.logger.Info("webdav: stopped")

	return err
}

func (w *Webdav) IsRunning() bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.svr != nil
}

func Handler(dir string, logger *zap.SugaredLogger) http.Handler {
	return &webdav.Handler{
		FileSystem: webdav.Dir(dir),
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				logger.Errorf("WEBDAV [%s]: %s, err: %s", r.Method, r.URL, err)
			}
		},
	}
}
