package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"webcam-shutter/pkg/storage/consts"
)

func MkdirAll(dirs ...string) error {
	for _, d := range dirs {
		err := os.MkdirAll(d, consts.DefaultDirPerm)
		if err != nil {
			return err
		}
	}

	return nil
}

// Join returns dir/name, rejecting names that would leave dir.
func Join(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	return filepath.Join(dir, name), nil
}
