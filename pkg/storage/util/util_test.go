package util

import (
	"path/filepath"
	"testing"
)

func TestJoin(t *testing.T) {
	p, err := Join("/srv/shots", "20240101_120000.000.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if p != filepath.Join("/srv/shots", "20240101_120000.000.jpg") {
		t.Fatalf("path = %s", p)
	}

	for _, name := range []string{"", "..", "../etc/passwd", "a/b.jpg", ".hidden", "info.json/"} {
		if _, err := Join("/srv/shots", name); err == nil {
			t.Errorf("%q accepted", name)
		}
	}
}
