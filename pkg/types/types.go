package types

import (
	"time"
)

type File struct {
	Name string `json:"name"`
	// Size is human readable, e.g. "84 kB".
	Size    string    `json:"size"`
	Bytes   int64     `json:"bytes"`
	ModTime time.Time `json:"modTime"`
}

// Burst is the result of one shot request.
type Burst struct {
	ID       string   `json:"id"`
	Files    []string `json:"files"`
	Captured int      `json:"captured"`
}
