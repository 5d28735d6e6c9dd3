package webdav

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestHandler(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("jpeg"), 0600); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(Handler(dir, zap.NewNop().Sugar()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "jpeg" {
		t.Fatalf("GET = %d %q", resp.StatusCode, body)
	}
}

func TestStartStop(t *testing.T) {
	w := New(0, t.TempDir())
	w.logger = zap.NewNop().Sugar()

	addr, err := w.Start()
	if err != nil {
		t.Fatal(err)
	}
	again, err := w.Start()
	if err != nil || again != addr {
		t.Fatalf("second start = %q, %v", again, err)
	}
	if !w.IsRunning() {
		t.Fatal("not running")
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	req, _ := http.NewRequest("PROPFIND", "http://127.0.0.1:"+port+"/", nil)
	req.Header.Set("Depth", "0")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMultiStatus {
		t.Fatalf("PROPFIND = %d", resp.StatusCode)
	}

	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	if w.IsRunning() {
		t.Fatal("still running")
	}
}
